//go:build !embedengine

package engine

import (
	"context"

	"github.com/pkg/errors"
)

// Embedded reports whether the binary carries its own engine module.
const Embedded = false

// ErrNotEmbedded is returned by NewEmbedded in builds without the
// embedengine tag.
var ErrNotEmbedded = errors.New("engine: binary built without an embedded module (use -tags embedengine or --engine)")

// NewEmbedded compiles the engine module built into the binary.
func NewEmbedded(context.Context, ...Option) (*Engine, error) {
	return nil, ErrNotEmbedded
}
