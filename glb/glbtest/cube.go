// Package glbtest builds small GLB documents and stand-in converters for
// tests that must not depend on the WebAssembly engine.
package glbtest

import (
	"bytes"
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// CubeOBJ is a minimal unit cube: 8 vertices, 6 quad faces.
const CubeOBJ = `# unit cube
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
v 1 0 1
v 1 1 1
v 0 1 1
f 1 4 3 2
f 5 6 7 8
f 1 2 6 5
f 2 3 7 6
f 3 4 8 7
f 4 1 5 8
`

var cubePositions = [][3]float32{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// quads split into two triangles each, zero based.
var cubeIndices = []uint32{
	0, 3, 2, 0, 2, 1,
	4, 5, 6, 4, 6, 7,
	0, 1, 5, 0, 5, 4,
	1, 2, 6, 1, 6, 5,
	2, 3, 7, 2, 7, 6,
	3, 0, 4, 3, 4, 7,
}

// Cube returns the CubeOBJ geometry as a GLB 2.0 document.
func Cube() ([]byte, error) {
	normals := vertexNormals(cubePositions, cubeIndices)

	doc := gltf.NewDocument()
	doc.Asset.Generator = "model2glb glbtest"

	posAccessor := modeler.WritePosition(doc, cubePositions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	indicesAccessor := modeler.WriteIndices(doc, cubeIndices)

	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION: posAccessor,
			gltf.NORMAL:   normalAccessor,
		},
		Indices:  gltf.Index(indicesAccessor),
		Material: gltf.Index(0),
	}
	pbr := &gltf.PBRMetallicRoughness{
		BaseColorFactor: &[4]float64{1, 1, 1, 1},
		MetallicFactor:  gltf.Float(0),
		RoughnessFactor: gltf.Float(1),
	}
	doc.Materials = []*gltf.Material{{PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque}}
	doc.Meshes = []*gltf.Mesh{{Name: "Cube", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: "Cube", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	var out bytes.Buffer
	enc := gltf.NewEncoder(&out)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "encode cube")
	}
	return out.Bytes(), nil
}

// vertexNormals averages the face normals around each shared vertex.
func vertexNormals(positions [][3]float32, indices []uint32) [][3]float32 {
	normals := make([][3]float32, len(positions))
	for i := 0; i < len(indices); i += 3 {
		v0, v1, v2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := positions[v0], positions[v1], positions[v2]
		vec1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		vec2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
		cross := [3]float32{
			vec1[1]*vec2[2] - vec1[2]*vec2[1],
			vec1[2]*vec2[0] - vec1[0]*vec2[2],
			vec1[0]*vec2[1] - vec1[1]*vec2[0],
		}
		for _, v := range []uint32{v0, v1, v2} {
			normals[v][0] += cross[0]
			normals[v][1] += cross[1]
			normals[v][2] += cross[2]
		}
	}
	for i, n := range normals {
		length := float32(math.Sqrt(float64(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])))
		if length > 0 {
			normals[i] = [3]float32{n[0] / length, n[1] / length, n[2] / length}
		}
	}
	return normals
}

// Converter is a stand-in for the engine. It returns Output (or Err) and
// remembers every call.
type Converter struct {
	Output []byte
	Err    error

	mu    sync.Mutex
	calls []Call
}

// Call is one recorded Convert invocation.
type Call struct {
	Filename string
	Data     []byte
}

// NewCubeConverter returns a converter that answers every call with Cube().
func NewCubeConverter() (*Converter, error) {
	out, err := Cube()
	if err != nil {
		return nil, err
	}
	return &Converter{Output: out}, nil
}

// Convert implements the pipeline's converter interface.
func (c *Converter) Convert(ctx context.Context, filename string, data []byte) ([]byte, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Filename: filename, Data: append([]byte(nil), data...)})
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return append([]byte(nil), c.Output...), nil
}

// Calls returns the recorded invocations.
func (c *Converter) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}
