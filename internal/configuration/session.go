package configuration

import (
	"fmt"
	"path/filepath"
)

// DefaultObjectSuffix is appended to a source path to name its object file.
const DefaultObjectSuffix = ".bc"

// Session is the mutable directory context of a generation run. The driver
// owns it and switches it between phases; operations only read it.
type Session struct {
	// RootDir is the project root. Installed source files resolve against it.
	RootDir string
	// SourceDir is where relative source files are looked up.
	SourceDir string
	// BuildDir receives intermediate objects and unfinalized binaries.
	BuildDir string
	// ArtifactDir receives archives, finalized and translated executables.
	ArtifactDir string
	// PrefixDir is the install prefix.
	PrefixDir string
	// IncludeDirs is the header search list passed to compile edges, in order.
	// Entries starting with `$` are Ninja variable references, such as
	// $nacl_sdk_dir/include; all others are literal paths.
	IncludeDirs []string
	// ObjectSuffix is appended to derived object paths.
	ObjectSuffix string
}

// NewSession returns a Session with root-relative defaults. Both root and
// prefix are made absolute against the working directory.
func NewSession(root, prefix string) (*Session, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory %q: %w", root, err)
	}
	absPrefix, err := filepath.Abs(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve install prefix %q: %w", prefix, err)
	}
	return &Session{
		RootDir:      absRoot,
		SourceDir:    filepath.Join(absRoot, "src"),
		BuildDir:     filepath.Join(absRoot, "build"),
		ArtifactDir:  filepath.Join(absRoot, "artifacts"),
		PrefixDir:    absPrefix,
		ObjectSuffix: DefaultObjectSuffix,
	}, nil
}

// Root joins path elements onto the root directory.
func (s *Session) Root(elem ...string) string {
	return filepath.Join(append([]string{s.RootDir}, elem...)...)
}

// Phase switches the source, build and artifact directories, each given
// relative to the root, and replaces the include search list.
func (s *Session) Phase(sourceDir, buildDir, artifactDir string, includeDirs ...string) {
	s.SourceDir = s.Root(sourceDir)
	s.BuildDir = s.Root(buildDir)
	s.ArtifactDir = s.Root(artifactDir)
	s.IncludeDirs = includeDirs
}

// resolve returns path made absolute against base. Absolute paths are only
// cleaned. The base must itself be absolute so no relative path is ever
// captured in an edge.
func resolve(base, baseName, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if base == "" {
		return "", fmt.Errorf("cannot resolve %q: session %s is not set", path, baseName)
	}
	if !filepath.IsAbs(base) {
		return "", fmt.Errorf("cannot resolve %q: session %s %q is not absolute", path, baseName, base)
	}
	return filepath.Join(base, path), nil
}

// describe returns path relative to base with forward slashes, for build logs.
// Paths outside base are described by their absolute form.
func describe(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || !filepath.IsLocal(rel) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
