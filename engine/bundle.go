package engine

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// File is one named input handed to the engine.
type File struct {
	Name string
	Data []byte
}

// ErrEmptyBundle is returned for zip bundles without regular files.
var ErrEmptyBundle = errors.New("engine: bundle holds no files")

// IsBundle reports whether filename is a zip bundle.
func IsBundle(filename string) bool {
	return strings.EqualFold(path.Ext(filename), ".zip")
}

// ExtractBundle lists the regular files in a zip bundle, sorted by name so a
// given archive always reaches the engine in the same order.
func ExtractBundle(ctx context.Context, data []byte) ([]File, error) {
	var files []File
	err := archives.Zip{}.Extract(ctx, bytes.NewReader(data), func(ctx context.Context, f archives.FileInfo) error {
		if f.IsDir() || strings.HasPrefix(f.NameInArchive, "__MACOSX/") {
			return nil
		}
		rc, err := f.Open()
		if err != nil {
			return errors.Wrapf(err, "open %q", f.NameInArchive)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return errors.Wrapf(err, "read %q", f.NameInArchive)
		}
		files = append(files, File{Name: f.NameInArchive, Data: b})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "engine: extract bundle")
	}
	if len(files) == 0 {
		return nil, ErrEmptyBundle
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// inputFiles turns one conversion input into the engine's file list.
func inputFiles(ctx context.Context, filename string, data []byte) ([]File, error) {
	if IsBundle(filename) {
		return ExtractBundle(ctx, data)
	}
	return []File{{Name: path.Base(strings.ReplaceAll(filename, `\`, "/")), Data: data}}, nil
}
