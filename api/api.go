// Package api is the library entry point: it validates a conversion request,
// runs it through read, convert and write, and reports every step as notices.
package api

import (
	"context"

	"github.com/pkg/errors"
)

var errNoOutput = errors.New("converter returned no output")

// Converter turns model bytes into GLB bytes. filename carries the format
// hint. engine.Engine is the production implementation.
type Converter interface {
	Convert(ctx context.Context, filename string, data []byte) ([]byte, error)
}

// Storage fetches and stores whole files by path. The storage package
// provides the filesystem, go-billy and MinIO implementations.
type Storage interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	Store(ctx context.Context, path string, data []byte) error
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, filename string, data []byte) ([]byte, error)

// Convert calls f.
func (f ConverterFunc) Convert(ctx context.Context, filename string, data []byte) ([]byte, error) {
	return f(ctx, filename, data)
}

// ConvertBytes converts in memory, without paths, storage or notices.
func ConvertBytes(ctx context.Context, conv Converter, filename string, data []byte) ([]byte, error) {
	if conv == nil {
		return nil, errors.New("ConvertBytes: converter must be set")
	}
	out, err := conv.Convert(ctx, filename, data)
	if err != nil {
		return nil, errors.Wrapf(err, "convert %s", filename)
	}
	return out, nil
}
