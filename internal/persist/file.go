package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// File stores the document in a single file, replaced atomically through a
// temporary sibling and a rename.
type File struct {
	path string
}

// NewFile returns a backend writing to path. The parent directory is created
// on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

// Name returns the backend identifier.
func (f *File) Name() string { return DriverFile }

// Path returns the document location.
func (f *File) Path() string { return f.path }

// Read returns the file contents, or nil if the file does not exist.
func (f *File) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}

// Write replaces the file. A crash mid-write leaves either the old or the new
// document, never a truncated one.
func (f *File) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	committed = true
	return nil
}

// Quarantine renames the current file to <path>.corrupt-<unix seconds>.
func (f *File) Quarantine(ctx context.Context) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%d", f.path, time.Now().Unix())
	if err := os.Rename(f.path, dst); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", f.path, err)
	}
	return dst, nil
}

// Close is a no-op; the file is only open during Read and Write.
func (f *File) Close() error { return nil }
