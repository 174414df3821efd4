package configuration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_Defaults(t *testing.T) {
	root := t.TempDir()

	s, err := NewSession(root, "/opt/prefix")

	require.NoError(t, err)
	assert.Equal(t, root, s.RootDir)
	assert.Equal(t, filepath.Join(root, "src"), s.SourceDir)
	assert.Equal(t, filepath.Join(root, "build"), s.BuildDir)
	assert.Equal(t, filepath.Join(root, "artifacts"), s.ArtifactDir)
	assert.Equal(t, "/opt/prefix", s.PrefixDir)
	assert.Empty(t, s.IncludeDirs)
	assert.Equal(t, ".bc", s.ObjectSuffix)
}

func TestNewSession_MakesPathsAbsolute(t *testing.T) {
	s, err := NewSession(".", "prefix")

	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(s.RootDir))
	assert.True(t, filepath.IsAbs(s.PrefixDir))
}

func TestSession_Phase(t *testing.T) {
	s := newTestSession()

	s.Phase("test", "build/pnacl/test", "bin", "/proj/include")

	assert.Equal(t, "/proj/test", s.SourceDir)
	assert.Equal(t, "/proj/build/pnacl/test", s.BuildDir)
	assert.Equal(t, "/proj/bin", s.ArtifactDir)
	assert.Equal(t, []string{"/proj/include"}, s.IncludeDirs)
	assert.Equal(t, "/usr/local", s.PrefixDir, "phase changes never touch the prefix")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "foo/bar.c", describe("/proj/src", "/proj/src/foo/bar.c"))
	assert.Equal(t, "/elsewhere/x.c", describe("/proj/src", "/elsewhere/x.c"))
}
