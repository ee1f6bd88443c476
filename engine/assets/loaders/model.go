package loaders

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

var ErrMalformedModel = errors.New("malformed model file")

/**
 * @brief The raw output of a format decoder: a group holding one mesh per
 * drawable primitive, before any scaling, centring or material fix up.
 */
type Result struct {
	Root *scene.Group
	// Names of the animation clips found in the file.
	Animations []string
	// Non fatal problems met while decoding.
	Warnings []string
}

// ModelLoader decodes one model file format.
type ModelLoader interface {
	Load(path string) (*Result, error)
}

func newResult(name string) *Result {
	return &Result{Root: scene.NewGroup(name)}
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// addMesh appends a mesh built from baked positions and triangle indices.
// Degenerate input (no positions or no complete triangle) is skipped.
func (r *Result) addMesh(name string, positions []math.Vec3, indices []uint32, material *scene.Material) *scene.Mesh {
	if len(positions) == 0 {
		return nil
	}
	g := &scene.Geometry{Name: name, Positions: positions, Indices: indices}
	if g.TriangleCount() == 0 {
		return nil
	}
	g.ComputeNormals()
	mesh := scene.NewMesh(g, material)
	mesh.Name = name
	r.Root.Add(mesh)
	return mesh
}

// triangulate converts polygons given as index lists into a triangle fan each.
func triangulate(polygon []uint32, out []uint32) []uint32 {
	for i := 2; i < len(polygon); i++ {
		out = append(out, polygon[0], polygon[i-1], polygon[i])
	}
	return out
}
