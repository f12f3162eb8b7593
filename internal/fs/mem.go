package fs

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotExist is returned when a file does not exist
var ErrNotExist = errors.New("file does not exist")

// MemFileSystem is an in-memory filesystem for testing
type MemFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemFileSystem creates a new in-memory filesystem
func NewMemFileSystem() *MemFileSystem {
	return &MemFileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// MkdirAll marks a directory and all its parents as existing
func (f *MemFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
	current := ""
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if current == "" {
			current = part
		} else {
			current = filepath.Join(current, part)
		}
		f.dirs[current] = true
	}
	return nil
}

// ReadFile reads the entire file
func (f *MemFileSystem) ReadFile(name string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, ok := f.files[name]
	if !ok {
		return nil, ErrNotExist
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// WriteFileAtomic stores a copy of data under name. A map write is already
// atomic under the lock, so no temp-file dance is needed here.
func (f *MemFileSystem) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	f.files[name] = dataCopy
	return nil
}

// IsNotExist returns true if the error indicates a file doesn't exist
func (f *MemFileSystem) IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
