package engine

import (
	"bytes"
	"fmt"
	"os"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

var (
	wasmMagic = []byte{0x00, 'a', 's', 'm'}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

	ErrNotWasm = errors.New("engine: not a WebAssembly module")
)

// ReadModule reads an engine module from disk; see DecodeModule.
func ReadModule(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: read module %q", path)
	}
	return DecodeModule(data)
}

// DecodeModule returns raw wasm bytes, decompressing zstd frames first.
func DecodeModule(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "engine: zstd reader")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Wrap(err, "engine: zstd decode module")
		}
		data = out
	}
	if !bytes.HasPrefix(data, wasmMagic) {
		return nil, ErrNotWasm
	}
	return data, nil
}

// Digest is the xxhash64 of b in hex, used to identify engine builds and
// inputs in logs and notices.
func Digest(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
