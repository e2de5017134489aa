// Package storage provides the places a conversion can read its input from
// and write its output to: the local filesystem, a go-billy filesystem and a
// MinIO/S3 bucket. Every backend fetches and stores whole files by path.
package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// OS reads and writes the local filesystem.
type OS struct {
	// MkdirParents creates missing parent directories of output files.
	MkdirParents bool
	Perm         os.FileMode
}

// NewOS returns the default filesystem store.
func NewOS() *OS {
	return &OS{Perm: 0o644}
}

// Fetch reads the whole file at path.
func (s *OS) Fetch(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "os: fetch %q", path)
	}
	return data, nil
}

// Store writes data to path, replacing any existing file.
func (s *OS) Store(_ context.Context, path string, data []byte) error {
	if s.MkdirParents {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.Wrapf(err, "os: mkdir for %q", path)
		}
	}
	perm := s.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return errors.Wrapf(err, "os: store %q", path)
	}
	return nil
}
