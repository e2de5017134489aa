//go:build embedengine

package engine

import (
	"context"
	_ "embed"
)

// assimp.wasm.zst is assimp plus the m2g shim, built for wasm32-wasi and
// compressed with zstd. It is not checked in.
//
//go:embed assimp.wasm.zst
var embedded []byte

// Embedded reports whether the binary carries its own engine module.
const Embedded = true

// NewEmbedded compiles the engine module built into the binary.
func NewEmbedded(ctx context.Context, opts ...Option) (*Engine, error) {
	return New(ctx, embedded, opts...)
}
