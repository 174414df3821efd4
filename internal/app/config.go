package app

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/vk/pnaclgen/internal/configuration"
	"github.com/vk/pnaclgen/internal/toolchain"
)

// DefaultPrefix is the install prefix used when none is configured.
const DefaultPrefix = "/usr/local"

// DefaultOutput is the build file name, relative to the root directory.
const DefaultOutput = "build.ninja"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	RootDir    string // project tree
	SDKRoot    string // NaCl SDK, not checked for existence
	PrefixDir  string
	OutputPath string // build.ninja destination

	// GraphYAMLPath, when set, receives a YAML dump of the generated graph.
	GraphYAMLPath string

	Host  string
	Arch  string
	Bench bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.SDKRoot == "" {
		return nil, errors.New("SDKRoot is a required configuration field and cannot be empty")
	}
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	if cfg.PrefixDir == "" {
		cfg.PrefixDir = DefaultPrefix
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(cfg.RootDir, DefaultOutput)
	}
	if cfg.Arch == "" {
		cfg.Arch = configuration.DefaultArch
	}
	if cfg.Host == "" {
		host, err := toolchain.HostPlatform()
		if err != nil {
			return nil, err
		}
		cfg.Host = host.String()
	}
	if _, err := toolchain.ParsePlatform(cfg.Host); err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}
	if cfg.GraphYAMLPath != "" && filepath.Clean(cfg.GraphYAMLPath) == filepath.Clean(cfg.OutputPath) {
		return nil, errors.New("graph YAML path must differ from the output path")
	}
	return &cfg, nil
}
