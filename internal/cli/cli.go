package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/pnaclgen/internal/app"
	"github.com/vk/pnaclgen/internal/configuration"
)

// Environment variables consulted when the matching flag is not given.
const (
	EnvSDKRoot = "NACL_SDK_ROOT"
	EnvPrefix  = "PREFIX"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// LookupEnv reads an environment variable; os.LookupEnv satisfies it.
type LookupEnv func(key string) (string, bool)

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer, lookupEnv LookupEnv) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("pnaclgen", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
pnaclgen - Generates a Ninja build file for pthreadpool and the PNaCl toolchain.

Usage:
  pnaclgen [options] [ROOT]

Arguments:
  ROOT
    Project root containing src/, include/, test/ and bench/. Defaults to the
    current directory.

Environment:
  NACL_SDK_ROOT  NaCl SDK location, used when --sdk-root is not given.
  PREFIX         Install prefix, used when --prefix is not given.

Options:
`)
		flagSet.PrintDefaults()
	}

	sdkRootFlag := flagSet.String("sdk-root", "", "Path to the NaCl SDK. Falls back to $"+EnvSDKRoot+".")
	prefixFlag := flagSet.String("prefix", "", "Install prefix. Falls back to $"+EnvPrefix+", then "+app.DefaultPrefix+".")
	rootFlag := flagSet.String("root", "", "Project root directory (alternative to the ROOT argument).")
	outputFlag := flagSet.String("output", "", "Path of the generated build file. Defaults to ROOT/"+app.DefaultOutput+".")
	hostFlag := flagSet.String("host", "", "Host platform of the toolchain: 'windows', 'linux' or 'darwin'. Defaults to the running platform.")
	archFlag := flagSet.String("arch", configuration.DefaultArch, "Architecture portable executables are translated for.")
	benchFlag := flagSet.Bool("bench", false, "Also generate the benchmark executables under the 'bench' target.")
	graphYAMLFlag := flagSet.String("graph-yaml", "", "Also write the generated graph as YAML to this path.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	root := *rootFlag
	switch {
	case flagSet.NArg() > 1:
		return nil, false, &ExitError{Code: 2, Message: "too many arguments: expected at most one ROOT"}
	case flagSet.NArg() == 1 && root != "":
		return nil, false, &ExitError{Code: 2, Message: "ROOT given both as argument and with --root"}
	case flagSet.NArg() == 1:
		root = flagSet.Arg(0)
	}

	sdkRoot := fromEnv(*sdkRootFlag, EnvSDKRoot, lookupEnv)
	if sdkRoot == "" {
		return nil, false, &ExitError{Code: 2, Message: "NaCl SDK location is required: pass --sdk-root or set " + EnvSDKRoot}
	}
	prefix := fromEnv(*prefixFlag, EnvPrefix, lookupEnv)
	slog.Debug("Locations determined.", "root", root, "sdk_root", sdkRoot, "prefix", prefix)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		RootDir:       root,
		SDKRoot:       sdkRoot,
		PrefixDir:     prefix,
		OutputPath:    *outputFlag,
		GraphYAMLPath: *graphYAMLFlag,
		Host:          *hostFlag,
		Arch:          *archFlag,
		Bench:         *benchFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func fromEnv(value, key string, lookupEnv LookupEnv) string {
	if value != "" || lookupEnv == nil {
		return value
	}
	if env, ok := lookupEnv(key); ok {
		return env
	}
	return ""
}
