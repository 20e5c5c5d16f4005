package persistence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Storage holds the single durable blob that mirrors the whole registry.
// Write must either fully replace the previous blob or leave it untouched.
type Storage interface {
	// Read returns the last blob written. It returns an error wrapping
	// ErrNoSnapshot if nothing has been written yet.
	Read() ([]byte, error)

	// Write atomically replaces the stored blob.
	Write(blob []byte) error

	// Location describes where the blob lives, for error messages.
	Location() string
}

// FileStorage keeps the blob in one file. Writes go to a temporary file in the
// same directory which is then renamed over the target.
type FileStorage struct {
	path string
	perm fs.FileMode
}

// NewFileStorage creates a FileStorage writing to path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path, perm: 0o644}
}

// Location returns the file path.
func (s *FileStorage) Location() string {
	return s.path
}

// Read returns the content of the file.
func (s *FileStorage) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrNoSnapshot, err)
	}

	return data, err
}

// Write replaces the file content with blob.
func (s *FileStorage) Write(blob []byte) error {
	dir := filepath.Dir(s.path)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	err = writeAndSync(tmp, blob, s.perm)
	if err != nil {
		os.Remove(tmpName)
		return err
	}

	err = os.Rename(tmpName, s.path)
	if err != nil {
		os.Remove(tmpName)
		return err
	}

	return nil
}

func writeAndSync(f *os.File, blob []byte, perm fs.FileMode) error {
	_, err := f.Write(blob)
	if err == nil {
		err = f.Chmod(perm)
	}

	if err == nil {
		err = f.Sync()
	}

	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}

	return err
}

// MemoryStorage keeps the blob in memory. It is useful for tests and for
// sessions that never touch the disk.
type MemoryStorage struct {
	blob    []byte
	written bool
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Location returns a fixed description.
func (s *MemoryStorage) Location() string {
	return "memory"
}

// Read returns a copy of the last blob written.
func (s *MemoryStorage) Read() ([]byte, error) {
	if !s.written {
		return nil, ErrNoSnapshot
	}

	return append([]byte(nil), s.blob...), nil
}

// Write stores a copy of blob.
func (s *MemoryStorage) Write(blob []byte) error {
	s.blob = append([]byte(nil), blob...)
	s.written = true

	return nil
}
