// Package fsys is the filesystem gateway used by the updater and the legacy
// path migrator.
package fsys

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Gateway enumerates, deletes and writes files under an installation directory.
type Gateway interface {
	Exists(path string) (bool, error)
	ListEntries(dir string) ([]string, error)
	DeleteEntry(path string) error
	DeleteTree(path string) error
	WriteStream(path string, r io.Reader) (int64, error)
}

// OS implements Gateway on the local filesystem.
type OS struct{}

// Exists reports whether path exists and is a directory or file.
func (OS) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ListEntries returns the immediate children of dir, sorted by name.
func (OS) ListEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}

// DeleteEntry removes a single entry. Directories are removed with their contents.
func (OS) DeleteEntry(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

// DeleteTree recursively removes path.
func (OS) DeleteTree(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// WriteStream writes r to path via a temporary file in the same directory,
// renaming it into place only after the copy succeeds.
func (OS) WriteStream(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return written, err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("failed to move file into place: %w", err)
	}

	return written, nil
}
