// Package storage keeps uploaded startup documents on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Open for an unknown name.
var ErrNotFound = errors.New("stored file not found")

// FileStore writes files under BasePath. Names handed out by Save are
// relative, slash-separated and safe to persist.
type FileStore struct {
	BasePath string
	MaxBytes int64
}

// New creates BasePath if needed.
func New(basePath string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{BasePath: basePath, MaxBytes: maxBytes}, nil
}

// Save copies r into dir under a unique name that keeps the original
// extension, and returns the stored name.
func (s *FileStore) Save(dir, original string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	name := path.Join(cleanDir(dir), uuid.NewString()+ext)

	full, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(full), err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	src := r
	if s.MaxBytes > 0 {
		src = io.LimitReader(r, s.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && n > s.MaxBytes {
		err = fmt.Errorf("file exceeds %d bytes", s.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// Open returns a reader for a name produced by Save.
func (s *FileStore) Open(name string) (*os.File, error) {
	full, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// Remove deletes a stored file; a missing file is not an error.
func (s *FileStore) Remove(name string) error {
	full, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) resolve(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid stored name %q", name)
	}
	return filepath.Join(s.BasePath, filepath.FromSlash(clean[1:])), nil
}

func cleanDir(dir string) string {
	dir = strings.Trim(path.Clean("/"+filepath.ToSlash(dir)), "/")
	if dir == "" || dir == "." {
		return "files"
	}
	return dir
}
