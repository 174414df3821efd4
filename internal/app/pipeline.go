package app

import (
	"context"
	"fmt"

	"github.com/vk/pnaclgen/internal/configuration"
	"github.com/vk/pnaclgen/internal/ctxlog"
	"github.com/vk/pnaclgen/internal/ninja"
)

const (
	// InstallTarget copies the public header and the library into the prefix.
	InstallTarget = "install"
	// TestTarget runs the unit test binary in the sandbox loader.
	TestTarget = "test"
	// BenchTarget builds the benchmark executables.
	BenchTarget = "bench"
)

const (
	libraryName    = "pthreadpool"
	publicHeader   = "include/pthreadpool.h"
	testBinaryName = "pthreadpool-test"
	sdkIncludeDir  = "$nacl_sdk_dir/include"
	sdkLibraryDir  = "$nacl_sdk_dir/lib/pnacl/Release"
)

var benchmarks = []struct {
	name   string
	source string
}{
	{"latency-bench", "latency.cc"},
	{"throughput-bench", "throughput.cc"},
}

// Pipeline lists the notable outputs of a generated graph.
type Pipeline struct {
	Archive    string
	TestNative string
	Installed  []string
	Benchmarks []string
}

// BuildPipeline emits the pthreadpool library, its unit test, the optional
// benchmarks and the install step, then declares the meta and default targets.
// The session is switched between phases as it goes.
func BuildPipeline(ctx context.Context, w *ninja.Writer, c *configuration.Configuration, s *configuration.Session, bench bool) (*Pipeline, error) {
	p := &Pipeline{}

	libCtx := ctxlog.With(ctx, "phase", "library")
	s.Phase("src", "build/pnacl", "lib", s.Root("include"), s.Root("src"))
	logPhase(libCtx, s)
	object, err := c.CompileC(libCtx, s, libraryName+".c")
	if err != nil {
		return nil, err
	}
	if p.Archive, err = c.Archive(libCtx, s, []string{object}, "lib"+libraryName+".a"); err != nil {
		return nil, err
	}

	testCtx := ctxlog.With(ctx, "phase", "test")
	s.Phase("test", "build/pnacl/test", "bin", s.Root("include"), sdkIncludeDir)
	logPhase(testCtx, s)
	if p.TestNative, err = nativeExecutable(testCtx, c, s, testBinaryName, libraryName+".cc", p.Archive, "gtest"); err != nil {
		return nil, err
	}
	if err := c.Run(testCtx, s, p.TestNative, TestTarget); err != nil {
		return nil, err
	}

	if bench {
		benchCtx := ctxlog.With(ctx, "phase", "bench")
		s.Phase("bench", "build/pnacl/bench", "bin", s.Root("include"), sdkIncludeDir)
		logPhase(benchCtx, s)
		for _, b := range benchmarks {
			native, err := nativeExecutable(benchCtx, c, s, b.name, b.source, p.Archive, "benchmark")
			if err != nil {
				return nil, err
			}
			p.Benchmarks = append(p.Benchmarks, native)
		}
		if err := w.DeclareMetaTarget(BenchTarget, p.Benchmarks); err != nil {
			return nil, err
		}
	}

	installCtx := ctxlog.With(ctx, "phase", "install")
	header, err := c.Install(installCtx, s, publicHeader, publicHeader, configuration.DefaultInstallMode)
	if err != nil {
		return nil, err
	}
	library, err := c.Install(installCtx, s, p.Archive, "lib/lib"+libraryName+".a", configuration.DefaultInstallMode)
	if err != nil {
		return nil, err
	}
	p.Installed = []string{header, library}
	if err := w.DeclareMetaTarget(InstallTarget, p.Installed); err != nil {
		return nil, err
	}

	if err := w.DeclareDefaults(p.Archive, p.TestNative); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Pipeline emitted.", "bench", bench, "installed", len(p.Installed))
	return p, nil
}

func logPhase(ctx context.Context, s *configuration.Session) {
	ctxlog.FromContext(ctx).Debug("Session switched.",
		"source_dir", s.SourceDir,
		"build_dir", s.BuildDir,
		"artifact_dir", s.ArtifactDir,
	)
}

// nativeExecutable compiles one C++ source of the current phase, links it
// against archive and lib, then finalizes and translates the result.
func nativeExecutable(ctx context.Context, c *configuration.Configuration, s *configuration.Session, name, source, archive, lib string) (string, error) {
	object, err := c.CompileCXX(ctx, s, source)
	if err != nil {
		return "", err
	}
	binary, err := c.Link(ctx, s, configuration.CXX, []string{object, archive}, name+".bc", []string{sdkLibraryDir}, []string{lib})
	if err != nil {
		return "", err
	}
	portable, err := c.Finalize(ctx, s, binary, name+".pexe")
	if err != nil {
		return "", err
	}
	native, err := c.Translate(ctx, s, portable, fmt.Sprintf("%s.%s.nexe", name, c.Arch()))
	if err != nil {
		return "", err
	}
	return native, nil
}
