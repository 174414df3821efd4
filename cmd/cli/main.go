package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/pnaclgen/internal/app"
	"github.com/vk/pnaclgen/internal/cli"
)

// main is the entrypoint for the pnaclgen application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:], os.LookupEnv); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string, lookupEnv cli.LookupEnv) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW, lookupEnv)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// A panic during generation is a bug; report it as an ordinary failure.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application panicked | %v", r)
		}
	}()

	return app.NewApp(outW, appConfig).Run(context.Background())
}
