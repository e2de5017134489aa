// Package glb inspects binary glTF containers produced by the engine. It only
// reads: bytes handed to Inspect are never modified.
package glb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

const (
	headerSize = 12
	magic      = 0x46546C67 // "glTF"
	version2   = 2
)

var (
	ErrTooShort   = errors.New("glb: shorter than the 12 byte header")
	ErrBadMagic   = errors.New("glb: missing glTF magic")
	ErrBadVersion = errors.New("glb: container version is not 2")
	ErrBadLength  = errors.New("glb: header length does not match data size")
)

// Header is the fixed 12 byte GLB header.
type Header struct {
	Magic   uint32
	Version uint32
	Length  uint32
}

// Summary describes a decoded GLB document.
type Summary struct {
	Version   uint32
	Length    uint32
	Generator string
	Scenes    int
	Nodes     int
	Meshes    int
	Materials int
	Textures  int
}

func (s Summary) String() string {
	return fmt.Sprintf("scenes=%d nodes=%d meshes=%d materials=%d textures=%d",
		s.Scenes, s.Nodes, s.Meshes, s.Materials, s.Textures)
}

// ReadHeader parses and checks the container header.
func ReadHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < headerSize {
		return h, ErrTooShort
	}
	h.Magic = binary.LittleEndian.Uint32(data[0:4])
	h.Version = binary.LittleEndian.Uint32(data[4:8])
	h.Length = binary.LittleEndian.Uint32(data[8:12])
	if h.Magic != magic {
		return h, ErrBadMagic
	}
	if h.Version != version2 {
		return h, errors.Wrapf(ErrBadVersion, "found %d", h.Version)
	}
	if int(h.Length) != len(data) {
		return h, errors.Wrapf(ErrBadLength, "header %d, data %d", h.Length, len(data))
	}
	return h, nil
}

// Inspect checks the header and decodes the document to count its contents.
func Inspect(data []byte) (Summary, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return Summary{}, err
	}
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return Summary{}, errors.Wrap(err, "glb: decode document")
	}
	return Summary{
		Version:   h.Version,
		Length:    h.Length,
		Generator: doc.Asset.Generator,
		Scenes:    len(doc.Scenes),
		Nodes:     len(doc.Nodes),
		Meshes:    len(doc.Meshes),
		Materials: len(doc.Materials),
		Textures:  len(doc.Textures),
	}, nil
}
