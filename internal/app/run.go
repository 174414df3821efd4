package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vk/pnaclgen/internal/configuration"
	"github.com/vk/pnaclgen/internal/ctxlog"
	"github.com/vk/pnaclgen/internal/fsutil"
	"github.com/vk/pnaclgen/internal/ninja"
	"github.com/vk/pnaclgen/internal/toolchain"
)

const outputMode = 0o644

// Run generates the build graph and writes it to the configured output path.
// Nothing is written unless the whole graph was generated and validated and
// every requested file could be staged.
func (a *App) Run(ctx context.Context) error {
	ctx = a.context(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	w, p, err := a.Generate(ctx)
	if err != nil {
		return err
	}

	files := []fsutil.File{{
		Path: a.config.OutputPath,
		Write: func(out io.Writer) error {
			_, err := w.WriteTo(out)
			return err
		},
	}}
	if a.config.GraphYAMLPath != "" {
		files = append(files, fsutil.File{Path: a.config.GraphYAMLPath, Write: w.WriteYAML})
	}
	if err := fsutil.WriteFilesAtomic(outputMode, files...); err != nil {
		return err
	}
	if a.config.GraphYAMLPath != "" {
		logger.Debug("Graph YAML written.", "path", a.config.GraphYAMLPath)
	}

	logger.Info("Build file generated.",
		"path", a.config.OutputPath,
		"edges", len(w.Snapshot().Edges),
		"archive", p.Archive,
		"test", p.TestNative,
	)
	return nil
}

// Generate builds and validates the graph in memory without writing it.
func (a *App) Generate(ctx context.Context) (*ninja.Writer, *Pipeline, error) {
	ctx = a.context(ctx)
	logger := ctxlog.FromContext(ctx)

	host, err := toolchain.ParsePlatform(a.config.Host)
	if err != nil {
		return nil, nil, err
	}
	tc, err := toolchain.Resolve(host)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve toolchain: %w", err)
	}
	logger.Debug("Toolchain resolved.", "host", host, "toolchain_dir", tc.ToolchainDir)

	w := ninja.NewWriter()
	cfg, err := configuration.New(ctx, w, tc, configuration.Options{
		SDKRoot: a.config.SDKRoot,
		Arch:    a.config.Arch,
	})
	if err != nil {
		return nil, nil, err
	}

	s, err := configuration.NewSession(a.config.RootDir, a.config.PrefixDir)
	if err != nil {
		return nil, nil, err
	}

	p, err := BuildPipeline(ctx, w, cfg, s, a.config.Bench)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build graph: %w", err)
	}

	if err := w.Validate(); err != nil {
		return nil, nil, err
	}
	if !w.InEmissionOrder() {
		return nil, nil, errors.New("invalid build graph: edges are not in dependency order")
	}

	for _, missing := range fsutil.Missing(sourceFiles(w)) {
		logger.Warn("Source file does not exist; the build will fail until it is created.", "path", missing)
	}
	return w, p, nil
}

// sourceFiles returns edge inputs that no edge produces, skipping paths
// that expand a build variable.
func sourceFiles(w *ninja.Writer) []string {
	var sources []string
	seen := make(map[string]bool)
	for _, e := range w.Snapshot().Edges {
		for _, in := range e.Inputs {
			if seen[in] || w.Produces(in) || strings.Contains(in, "$") {
				continue
			}
			seen[in] = true
			sources = append(sources, in)
		}
	}
	return sources
}
