// Package backend provides the storage capabilities the read tool depends on.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/afero"
)

var (
	// ErrNotReadable covers missing files, permission problems and directories.
	ErrNotReadable = errors.New("not readable")
	// ErrTooLarge is returned when a file exceeds the backend's size cap.
	ErrTooLarge = errors.New("file too large")
)

// Backend gives raw byte access to files addressed by absolute path.
type Backend interface {
	// Access returns nil if absPath can be read, or an error wrapping ErrNotReadable.
	Access(ctx context.Context, absPath string) error
	// ReadFile returns the full contents of absPath.
	ReadFile(ctx context.Context, absPath string) ([]byte, error)
}

// Lister is implemented by backends that can enumerate a directory.
type Lister interface {
	ListDir(ctx context.Context, dir string) ([]string, error)
}

// FS is a Backend over an afero filesystem.
type FS struct {
	fs afero.Fs
	// MaxFileSize rejects larger files in Access when positive.
	MaxFileSize int64
}

// NewLocal returns a backend reading the local filesystem.
func NewLocal() *FS {
	return NewFS(afero.NewOsFs())
}

// NewMemory returns a backend over an empty in-memory filesystem.
func NewMemory() *FS {
	return NewFS(afero.NewMemMapFs())
}

// NewFS wraps an existing afero filesystem.
func NewFS(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// Fs exposes the underlying filesystem, mostly so tests can seed it.
func (b *FS) Fs() afero.Fs {
	return b.fs
}

// Access returns nil if absPath is a regular file that can be opened for reading.
func (b *FS) Access(ctx context.Context, absPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := b.fs.Stat(absPath)
	if err != nil {
		return notReadable(absPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotReadable, absPath)
	}
	if b.MaxFileSize > 0 && info.Size() > b.MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, absPath, info.Size(), b.MaxFileSize)
	}

	f, err := b.fs.OpenFile(absPath, os.O_RDONLY, 0)
	if err != nil {
		return notReadable(absPath, err)
	}
	return f.Close()
}

// ReadFile returns the whole contents of absPath.
func (b *FS) ReadFile(ctx context.Context, absPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := b.fs.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// ListDir returns the sorted names of the entries in dir.
func (b *FS) ListDir(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(b.fs, dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func notReadable(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s does not exist", ErrNotReadable, path)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: permission denied for %s", ErrNotReadable, path)
	default:
		return fmt.Errorf("%w: %v", ErrNotReadable, err)
	}
}
