package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
)

// Billy stores files in a go-billy filesystem. go-billy filesystems such as
// memfs are not safe for concurrent use, so Billy serializes writes.
type Billy struct {
	mu sync.RWMutex
	fs billy.Filesystem
}

// NewBilly wraps fsys.
func NewBilly(fsys billy.Filesystem) *Billy {
	return &Billy{fs: fsys}
}

// NewMemory returns an in-memory store.
func NewMemory() *Billy {
	return NewBilly(memfs.New())
}

// NewRooted returns a store confined to dir: paths are resolved below dir and
// may not climb out of it.
func NewRooted(dir string) *Billy {
	return NewBilly(osfs.New(dir))
}

// Fetch reads the whole file at name.
func (b *Billy) Fetch(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, err := util.ReadFile(b.fs, name)
	if err != nil {
		return nil, errors.Wrapf(err, "billy: fetch %q", name)
	}
	return data, nil
}

// Store writes data to name, creating parent directories.
func (b *Billy) Store(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dir := filepath.Dir(name); dir != "." && dir != "/" {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "billy: mkdirall %q", dir)
		}
	}
	if err := util.WriteFile(b.fs, name, data, 0o644); err != nil {
		return errors.Wrapf(err, "billy: store %q", name)
	}
	return nil
}

// Exists reports whether name exists.
func (b *Billy) Exists(name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, err := b.fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, "billy: stat %q", name)
	}
}

// Raw returns the underlying filesystem. Access through it bypasses the
// store's locking.
//
//nolint:ireturn // exposes the adapter target.
func (b *Billy) Raw() billy.Filesystem {
	return b.fs
}
