// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// File is a file to be written by WriteFilesAtomic.
type File struct {
	Path  string
	Write func(io.Writer) error
}

// WriteFileAtomic writes a file through write and moves it into place only
// once write and all file operations succeed. On failure nothing is left at
// path and a previous file there is untouched.
func WriteFileAtomic(path string, perm fs.FileMode, write func(io.Writer) error) error {
	return WriteFilesAtomic(perm, File{Path: path, Write: write})
}

// WriteFilesAtomic stages every file next to its destination and moves them
// into place only after all of them were written. If any write fails, no
// destination is touched.
func WriteFilesAtomic(perm fs.FileMode, files ...File) (err error) {
	staged := make([]string, 0, len(files))
	defer func() {
		if err != nil {
			for _, tmp := range staged {
				os.Remove(tmp)
			}
		}
	}()

	for _, f := range files {
		tmp, err := stage(f, perm)
		if err != nil {
			return err
		}
		staged = append(staged, tmp)
	}
	for i, f := range files {
		if err = os.Rename(staged[i], f.Path); err != nil {
			return fmt.Errorf("failed to move %s into place: %w", f.Path, err)
		}
	}
	return nil
}

func stage(f File, perm fs.FileMode) (string, error) {
	dir, base := filepath.Split(f.Path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file for %s: %w", f.Path, err)
	}
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}

	if err := f.Write(tmp); err != nil {
		return fail(fmt.Errorf("failed to write %s: %w", f.Path, err))
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail(fmt.Errorf("failed to set mode of %s: %w", f.Path, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close %s: %w", f.Path, err)
	}
	return tmp.Name(), nil
}

// Missing returns the paths that do not exist, in input order.
func Missing(paths []string) []string {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, p)
		}
	}
	return missing
}
