// Package fs provides a minimal filesystem abstraction for the signing key
// store. The abstraction exists so key persistence can be exercised in tests
// without touching the real disk.
package fs

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the set of operations the key store needs: atomic writes
// and reads of small records.
type FileSystem interface {
	// MkdirAll creates a directory and all necessary parents
	MkdirAll(path string, perm fs.FileMode) error

	// ReadFile reads the entire file
	ReadFile(name string) ([]byte, error)

	// WriteFileAtomic writes data to a file atomically: either all data is
	// visible under the final name or none. A crash mid-write never leaves
	// a half-written file at the target path.
	WriteFileAtomic(name string, data []byte, perm fs.FileMode) error

	// IsNotExist returns true if the error indicates a file doesn't exist
	IsNotExist(err error) bool
}

// OSFileSystem is a FileSystem backed by the real OS filesystem.
type OSFileSystem struct{}

// NewOSFileSystem creates a new OS filesystem
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// MkdirAll creates a directory and all necessary parents
func (f *OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// ReadFile reads the entire file
func (f *OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFileAtomic writes via a temp file in the target directory, syncs,
// then renames over the final name. Rename is atomic because the temp file
// lives on the same filesystem as the target.
func (f *OSFileSystem) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(name)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return err
	}

	if err := tmpFile.Sync(); err != nil {
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil // written and closed; skip deferred cleanup

	// CreateTemp creates with 0600; apply the requested mode before publish
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, name); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}

// IsNotExist returns true if the error indicates a file doesn't exist
func (f *OSFileSystem) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}
