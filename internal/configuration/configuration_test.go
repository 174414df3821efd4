package configuration

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pnaclgen/internal/ninja"
	"github.com/vk/pnaclgen/internal/rules"
	"github.com/vk/pnaclgen/internal/toolchain"
)

func newTestSession() *Session {
	return &Session{
		RootDir:      "/proj",
		SourceDir:    "/proj/src",
		BuildDir:     "/proj/build",
		ArtifactDir:  "/proj/lib",
		PrefixDir:    "/usr/local",
		ObjectSuffix: DefaultObjectSuffix,
	}
}

func newTestConfiguration(t *testing.T) (*Configuration, *ninja.Writer) {
	t.Helper()
	tc, err := toolchain.Resolve(toolchain.Linux)
	require.NoError(t, err)
	w := ninja.NewWriter()
	c, err := New(context.Background(), w, tc, Options{SDKRoot: "/opt/nacl_sdk"})
	require.NoError(t, err)
	return c, w
}

func TestNew_DeclaresVariablesAndRules(t *testing.T) {
	_, w := newTestConfiguration(t)
	g := w.Snapshot()

	sdk, ok := g.Variable("nacl_sdk_dir")
	require.True(t, ok)
	assert.Equal(t, "/opt/nacl_sdk", sdk)

	cc, ok := g.Variable("pnacl_cc")
	require.True(t, ok)
	assert.Equal(t, "$nacl_sdk_dir/toolchain/linux_pnacl/bin/pnacl-clang", cc)

	for _, r := range rules.Catalog() {
		assert.True(t, w.HasRule(r.Name), "rule %s", r.Name)
	}
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	tc, err := toolchain.Resolve(toolchain.Linux)
	require.NoError(t, err)

	t.Run("missing SDK root", func(t *testing.T) {
		_, err := New(ctx, ninja.NewWriter(), tc, Options{})
		assert.ErrorContains(t, err, "SDK root is required")
	})

	t.Run("missing toolchain", func(t *testing.T) {
		_, err := New(ctx, ninja.NewWriter(), nil, Options{SDKRoot: "/sdk"})
		assert.Error(t, err)
	})

	t.Run("declaring twice on one writer", func(t *testing.T) {
		w := ninja.NewWriter()
		_, err := New(ctx, w, tc, Options{SDKRoot: "/sdk"})
		require.NoError(t, err)

		_, err = New(ctx, w, tc, Options{SDKRoot: "/sdk"})
		var dup *ninja.DuplicateVariableError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "nacl_sdk_dir", dup.Name)
	})
}

func TestCompile_DefaultObjectPath(t *testing.T) {
	// --- Arrange ---
	c, w := newTestConfiguration(t)
	s := newTestSession()

	// --- Act ---
	object, err := c.CompileC(context.Background(), s, "foo/bar.c")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "/proj/build/foo/bar.c.bc", object)

	edge, ok := w.Snapshot().EdgeFor(object)
	require.True(t, ok)
	assert.Equal(t, rules.CC, edge.Rule)
	assert.Equal(t, []string{"/proj/src/foo/bar.c"}, edge.Inputs)
	assert.Equal(t, "foo/bar.c", edge.Variables[rules.VarDescPath])
	assert.NotContains(t, edge.Variables, rules.VarIncludes, "empty include list must omit the variable")
}

func TestCompile_IncludeFlags(t *testing.T) {
	c, w := newTestConfiguration(t)
	s := newTestSession()
	s.IncludeDirs = []string{"/proj/include", "$nacl_sdk_dir/include"}

	object, err := c.CompileCXX(context.Background(), s, "pthreadpool.cc")

	require.NoError(t, err)
	edge, _ := w.Snapshot().EdgeFor(object)
	assert.Equal(t, rules.CXX, edge.Rule)
	assert.Equal(t, "-I/proj/include '-I$nacl_sdk_dir/include'", edge.Variables[rules.VarIncludes])
}

func TestCompile_DistinctSourcesGetDistinctObjects(t *testing.T) {
	c, _ := newTestConfiguration(t)
	s := newTestSession()
	sources := []string{"a.c", "b.c", "sub/a.c", "sub/b.c", "/proj/src/deep/x/a.c", "a.cc"}

	seen := make(map[string]string)
	for _, src := range sources {
		lang := C
		if src == "a.cc" {
			lang = CXX
		}
		object, err := c.Compile(context.Background(), s, lang, src, "")
		require.NoError(t, err, src)
		prev, dup := seen[object]
		require.False(t, dup, "%s and %s both map to %s", prev, src, object)
		seen[object] = src
	}
}

func TestCompile_ExplicitObject(t *testing.T) {
	c, _ := newTestConfiguration(t)
	s := newTestSession()

	rel, err := c.CompileC(context.Background(), s, "a.c")
	require.NoError(t, err)
	explicit, err := c.Compile(context.Background(), s, C, "a.c", "custom/a.o")
	require.NoError(t, err)
	absolute, err := c.Compile(context.Background(), s, C, "a.c", "/elsewhere/../tmp/a.o")
	require.NoError(t, err)

	assert.Equal(t, "/proj/build/a.c.bc", rel)
	assert.Equal(t, "/proj/build/custom/a.o", explicit)
	assert.Equal(t, "/tmp/a.o", absolute)
}

func TestCompile_SourceOutsideSourceDir(t *testing.T) {
	c, _ := newTestConfiguration(t)
	s := newTestSession()

	_, err := c.CompileC(context.Background(), s, "../include/x.c")
	assert.ErrorContains(t, err, "not inside source dir")

	object, err := c.Compile(context.Background(), s, C, "../include/x.c", "x.c.bc")
	require.NoError(t, err)
	assert.Equal(t, "/proj/build/x.c.bc", object)
}

func TestCompile_IsIdempotent(t *testing.T) {
	s := newTestSession()
	s.IncludeDirs = []string{"/proj/include"}

	first, err := compileEdge(s, C, "foo/bar.c", "")
	require.NoError(t, err)
	second, err := compileEdge(s, C, "foo/bar.c", "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Two independent runs produce byte-identical graphs.
	render := func() string {
		c, w := newTestConfiguration(t)
		_, err := c.CompileC(context.Background(), s, "foo/bar.c")
		require.NoError(t, err)
		return w.String()
	}
	assert.Equal(t, render(), render())
}

func TestCompile_DuplicateOutputIsFatal(t *testing.T) {
	c, w := newTestConfiguration(t)
	s := newTestSession()
	_, err := c.CompileC(context.Background(), s, "a.c")
	require.NoError(t, err)

	_, err = c.CompileC(context.Background(), s, "a.c")

	var dup *ninja.DuplicateOutputError
	require.ErrorAs(t, err, &dup)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "compile", opErr.Op)
	assert.Equal(t, "a.c", opErr.Subject)
	assert.Len(t, w.Snapshot().Edges, 1)
}

func TestCompile_UndeclaredRuleFailsBeforeEmitting(t *testing.T) {
	w := ninja.NewWriter()
	c := &Configuration{w: w, arch: DefaultArch}

	_, err := c.CompileC(context.Background(), newTestSession(), "a.c")

	var undeclared *ninja.UndeclaredRuleError
	require.ErrorAs(t, err, &undeclared)
	assert.Equal(t, rules.CC, undeclared.Rule)
	assert.Empty(t, w.Snapshot().Edges)
	assert.NotContains(t, w.String(), "build ")
}

func TestCompile_MalformedInput(t *testing.T) {
	c, _ := newTestConfiguration(t)

	t.Run("unsupported language", func(t *testing.T) {
		_, err := c.Compile(context.Background(), newTestSession(), Language(9), "a.c", "")
		assert.ErrorContains(t, err, "unsupported language")
	})

	t.Run("empty source", func(t *testing.T) {
		_, err := c.CompileC(context.Background(), newTestSession(), "")
		assert.ErrorContains(t, err, "empty path")
	})

	t.Run("unset source dir", func(t *testing.T) {
		s := newTestSession()
		s.SourceDir = ""
		_, err := c.CompileC(context.Background(), s, "a.c")
		assert.ErrorContains(t, err, "session source dir is not set")
	})

	t.Run("relative build dir", func(t *testing.T) {
		s := newTestSession()
		s.BuildDir = "build"
		_, err := c.CompileC(context.Background(), s, "z.c")
		assert.ErrorContains(t, err, "is not absolute")
	})
}

func TestLink_OmitsEmptyLibraryVariables(t *testing.T) {
	// --- Arrange ---
	c, w := newTestConfiguration(t)
	s := newTestSession()
	object, err := c.CompileC(context.Background(), s, "main.c")
	require.NoError(t, err)

	// --- Act ---
	binary, err := c.Link(context.Background(), s, C, []string{object}, "main.bc", nil, nil)
	require.NoError(t, err)

	// --- Assert ---
	assert.Equal(t, "/proj/build/main.bc", binary)

	var buf bytes.Buffer
	require.NoError(t, w.WriteYAML(&buf))
	parsed, err := ninja.ParseYAML(buf.Bytes())
	require.NoError(t, err)

	edge, ok := parsed.EdgeFor(binary)
	require.True(t, ok)
	assert.Equal(t, rules.CCLD, edge.Rule)
	assert.NotContains(t, edge.Variables, rules.VarLibDirs)
	assert.NotContains(t, edge.Variables, rules.VarLibs)
	assert.Equal(t, "main.bc", edge.Variables[rules.VarDescPath])
}

func TestLink_WithLibraries(t *testing.T) {
	c, w := newTestConfiguration(t)
	s := newTestSession()

	binary, err := c.Link(context.Background(), s, CXX, []string{"/proj/build/t.cc.bc", "/proj/lib/libx.a"}, "t.bc", []string{"X"}, []string{"gtest"})

	require.NoError(t, err)
	edge, _ := w.Snapshot().EdgeFor(binary)
	assert.Equal(t, rules.CXXLD, edge.Rule)
	assert.Equal(t, []string{"/proj/build/t.cc.bc", "/proj/lib/libx.a"}, edge.Inputs)
	assert.Equal(t, "-LX", edge.Variables[rules.VarLibDirs])
	assert.Equal(t, "-lgtest", edge.Variables[rules.VarLibs])
}

func TestLink_RequiresInputs(t *testing.T) {
	c, _ := newTestConfiguration(t)

	_, err := c.Link(context.Background(), newTestSession(), C, nil, "empty.bc", nil, nil)

	assert.ErrorContains(t, err, "no input files")
}

func TestArchive(t *testing.T) {
	c, w := newTestConfiguration(t)
	s := newTestSession()
	object, err := c.CompileC(context.Background(), s, "pthreadpool.c")
	require.NoError(t, err)

	archive, err := c.Archive(context.Background(), s, []string{object}, "libpthreadpool.a")

	require.NoError(t, err)
	assert.Equal(t, "/proj/lib/libpthreadpool.a", archive)
	edge, _ := w.Snapshot().EdgeFor(archive)
	assert.Equal(t, rules.AR, edge.Rule)
	assert.Equal(t, map[string]string{rules.VarDescPath: "libpthreadpool.a"}, edge.Variables)
}

func TestFinalizeTranslateRun(t *testing.T) {
	// --- Arrange ---
	c, w := newTestConfiguration(t)
	s := newTestSession()
	ctx := context.Background()

	// --- Act ---
	pexe, err := c.Finalize(ctx, s, "test.bc", "test.pexe")
	require.NoError(t, err)
	nexe, err := c.Translate(ctx, s, pexe, "test.x86-64.nexe")
	require.NoError(t, err)
	require.NoError(t, c.Run(ctx, s, nexe, "test"))

	// --- Assert ---
	g := w.Snapshot()
	assert.Equal(t, "/proj/lib/test.pexe", pexe)
	finalize, _ := g.EdgeFor(pexe)
	assert.Equal(t, []string{"/proj/build/test.bc"}, finalize.Inputs)

	assert.Equal(t, "/proj/lib/test.x86-64.nexe", nexe)
	translate, _ := g.EdgeFor(nexe)
	assert.Equal(t, DefaultArch, translate.Variables[rules.VarArch])
	assert.Equal(t, []string{pexe}, translate.Inputs)

	run, ok := g.EdgeFor("test")
	require.True(t, ok)
	assert.Equal(t, rules.Run, run.Rule)
	assert.Equal(t, []string{nexe}, run.Inputs)
	runRule, _ := g.Rule(rules.Run)
	assert.Equal(t, ninja.ConsolePool, runRule.Pool)
}

func TestTranslate_ConfiguredArch(t *testing.T) {
	tc, err := toolchain.Resolve(toolchain.Linux)
	require.NoError(t, err)
	w := ninja.NewWriter()
	c, err := New(context.Background(), w, tc, Options{SDKRoot: "/sdk", Arch: "armv7"})
	require.NoError(t, err)

	nexe, err := c.Translate(context.Background(), newTestSession(), "t.pexe", "t.armv7.nexe")

	require.NoError(t, err)
	edge, _ := w.Snapshot().EdgeFor(nexe)
	assert.Equal(t, "armv7", edge.Variables[rules.VarArch])
	assert.Equal(t, "armv7", c.Arch())
}

func TestRun_InvalidTarget(t *testing.T) {
	c, _ := newTestConfiguration(t)

	for _, target := range []string{"", "bin/test"} {
		err := c.Run(context.Background(), newTestSession(), "t.nexe", target)
		assert.ErrorContains(t, err, "invalid target name", target)
	}
}

func TestInstall(t *testing.T) {
	for _, tc := range []struct {
		mode fs.FileMode
		want string
	}{
		{0o644, "0644"},
		{0, "0644"},
		{0o755, "0755"},
	} {
		t.Run(fmt.Sprintf("%o", uint32(tc.mode)), func(t *testing.T) {
			c, w := newTestConfiguration(t)
			s := newTestSession()

			dest, err := c.Install(context.Background(), s, "include/foo.h", "include/foo.h", tc.mode)

			require.NoError(t, err)
			assert.Equal(t, "/usr/local/include/foo.h", dest)
			edge, _ := w.Snapshot().EdgeFor(dest)
			assert.Equal(t, rules.Install, edge.Rule)
			assert.Equal(t, []string{"/proj/include/foo.h"}, edge.Inputs)
			assert.Equal(t, tc.want, edge.Variables[rules.VarMode])
			assert.Equal(t, "include/foo.h", edge.Variables[rules.VarDescPath])
		})
	}
}

func TestOutputsSurvivePhaseChanges(t *testing.T) {
	c, w := newTestConfiguration(t)
	s := newTestSession()
	ctx := context.Background()

	object, err := c.CompileC(ctx, s, "lib.c")
	require.NoError(t, err)
	archive, err := c.Archive(ctx, s, []string{object}, "liblib.a")
	require.NoError(t, err)

	s.Phase("test", "build/test", "bin")
	testObject, err := c.CompileCXX(ctx, s, "lib_test.cc")
	require.NoError(t, err)
	binary, err := c.Link(ctx, s, CXX, []string{testObject, archive}, "lib_test.bc", nil, []string{"gtest"})
	require.NoError(t, err)

	assert.Equal(t, "/proj/build/test/lib_test.cc.bc", testObject)
	edge, _ := w.Snapshot().EdgeFor(binary)
	assert.Equal(t, []string{testObject, "/proj/lib/liblib.a"}, edge.Inputs)
	assert.True(t, w.InEmissionOrder())
	assert.NoError(t, w.Validate())
}

func TestFormatMode(t *testing.T) {
	assert.Equal(t, "0644", FormatMode(0o644))
	assert.Equal(t, "0600", FormatMode(0o600))
	assert.Equal(t, "0755", FormatMode(fs.ModeDir|0o755))
}

func TestJoinFlags_QuotesShellSensitiveValues(t *testing.T) {
	for _, tc := range []struct {
		values []string
		want   string
	}{
		{[]string{"/a", "$nacl_sdk_dir/include"}, "-I/a '-I$nacl_sdk_dir/include'"},
		{[]string{"/my project/include"}, "'-I/my project/include'"},
		{[]string{"/it's"}, `'-I/it'"'"'s'`},
		{[]string{"/a$b/include"}, "'-I/a$$b/include'"},
	} {
		assert.Equal(t, tc.want, joinFlags(rules.IncludeFlag, tc.values))
	}
}

func TestCompile_LiteralDollarInPaths(t *testing.T) {
	// --- Arrange ---
	c, w := newTestConfiguration(t)
	s := newTestSession()
	s.SourceDir = "/proj/src"
	s.IncludeDirs = []string{"/a$b/include", "$nacl_sdk_dir/include"}

	// --- Act ---
	object, err := c.CompileC(context.Background(), s, "x$y.c")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "/proj/build/x$y.c.bc", object)
	edge, _ := w.Snapshot().EdgeFor(object)
	assert.Equal(t, "'-I/a$$b/include' '-I$nacl_sdk_dir/include'", edge.Variables[rules.VarIncludes])
	assert.Equal(t, "x$$y.c", edge.Variables[rules.VarDescPath])
	assert.Contains(t, w.String(), "build /proj/build/x$$y.c.bc: CC /proj/src/x$$y.c\n")
}

func TestNew_EscapesSDKRoot(t *testing.T) {
	tc, err := toolchain.Resolve(toolchain.Linux)
	require.NoError(t, err)
	w := ninja.NewWriter()

	_, err = New(context.Background(), w, tc, Options{SDKRoot: "/opt/sdk$1"})

	require.NoError(t, err)
	sdk, _ := w.Snapshot().Variable(toolchain.SDKVariable)
	assert.Equal(t, "/opt/sdk$$1", sdk)
}
