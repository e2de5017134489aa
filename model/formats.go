package model

import (
	"sort"
	"strings"
	"sync"
)

// Format is a model format the engine can import.
type Format struct {
	Ext  string // lower case, no leading dot
	Name string
}

// FormatTable is the set of input extensions accepted by the path validator.
// It is safe for concurrent use.
type FormatTable struct {
	mu      sync.RWMutex
	formats map[string]Format
}

var defaultInputFormats = []Format{
	{"3ds", "Autodesk 3DS"},
	{"3mf", "3D Manufacturing Format"},
	{"ase", "Autodesk ASE"},
	{"blend", "Blender"},
	{"dae", "Collada"},
	{"dxf", "AutoCAD DXF"},
	{"fbx", "Autodesk FBX"},
	{"glb", "glTF 2.0 binary"},
	{"gltf", "glTF 2.0"},
	{"ifc", "Industry Foundation Classes"},
	{"lwo", "LightWave Object"},
	{"md2", "Quake II model"},
	{"md3", "Quake III model"},
	{"ms3d", "MilkShape 3D"},
	{"obj", "Wavefront OBJ"},
	{"off", "Object File Format"},
	{"ply", "Stanford PLY"},
	{"stl", "Stereolithography"},
	{"x", "DirectX X"},
	{"zip", "Zip bundle"},
}

// NewFormatTable returns a table holding the given formats.
func NewFormatTable(formats ...Format) *FormatTable {
	t := &FormatTable{formats: make(map[string]Format, len(formats))}
	for _, f := range formats {
		t.Register(f.Ext, f.Name)
	}
	return t
}

// DefaultFormats returns a fresh table with the built-in input formats.
func DefaultFormats() *FormatTable {
	return NewFormatTable(defaultInputFormats...)
}

// Register adds (or renames) a format. Leading dots and case are ignored.
func (t *FormatTable) Register(ext, name string) {
	ext = normalizeExt(ext)
	if ext == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.formats[ext] = Format{Ext: ext, Name: name}
}

// Supports reports whether ext (with or without the dot) is in the table.
func (t *FormatTable) Supports(ext string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.formats[normalizeExt(ext)]
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (t *FormatTable) Extensions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.formats))
	for ext := range t.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Formats lists the registered formats ordered by extension.
func (t *FormatTable) Formats() []Format {
	exts := t.Extensions()
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Format, len(exts))
	for i, ext := range exts {
		out[i] = t.formats[ext]
	}
	return out
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
