package scene

import (
	gomath "math"

	"github.com/spaghettifunk/prism/engine/math"
)

/**
 * @brief Vertex data of a mesh or point cloud. Indices are optional,
 * without them every three positions form a triangle.
 */
type Geometry struct {
	Name      string
	Positions []math.Vec3
	Normals   []math.Vec3
	Colors    []math.Vec3
	Indices   []uint32

	disposed bool
}

func (g *Geometry) PositionCount() int {
	return len(g.Positions)
}

func (g *Geometry) IndexCount() int {
	return len(g.Indices)
}

func (g *Geometry) IsIndexed() bool {
	return len(g.Indices) > 0
}

// TriangleCount is index count / 3 for indexed geometry, else position count / 3.
func (g *Geometry) TriangleCount() int {
	return int(g.triangleEstimate())
}

func (g *Geometry) triangleEstimate() float64 {
	if g == nil {
		return 0
	}
	if g.IsIndexed() {
		return float64(len(g.Indices)) / 3
	}
	return float64(len(g.Positions)) / 3
}

// Triangle returns the vertex indices of triangle i.
func (g *Geometry) Triangle(i int) (uint32, uint32, uint32) {
	if g.IsIndexed() {
		return g.Indices[i*3], g.Indices[i*3+1], g.Indices[i*3+2]
	}
	b := uint32(i * 3)
	return b, b + 1, b + 2
}

// BoundingBox returns the local space extents. ok is false when there are no positions.
func (g *Geometry) BoundingBox() (box math.Extents3D, ok bool) {
	if g == nil || len(g.Positions) == 0 {
		return box, false
	}
	box.Min = g.Positions[0]
	box.Max = g.Positions[0]
	for _, p := range g.Positions[1:] {
		box.Min = box.Min.Min(p)
		box.Max = box.Max.Max(p)
	}
	return box, true
}

// ComputeNormals fills smooth per-vertex normals from the summed face normals of the triangles sharing each vertex.
func (g *Geometry) ComputeNormals() {
	g.Normals = make([]math.Vec3, len(g.Positions))
	for i := 0; i < g.TriangleCount(); i++ {
		a, b, c := g.Triangle(i)
		if int(a) >= len(g.Positions) || int(b) >= len(g.Positions) || int(c) >= len(g.Positions) {
			continue
		}
		pa, pb, pc := g.Positions[a], g.Positions[b], g.Positions[c]
		n := pb.Sub(pa).Cross(pc.Sub(pa))
		g.Normals[a] = g.Normals[a].Add(n)
		g.Normals[b] = g.Normals[b].Add(n)
		g.Normals[c] = g.Normals[c].Add(n)
	}
	for i := range g.Normals {
		g.Normals[i] = g.Normals[i].Normalized()
	}
}

// Dispose drops the vertex data. The geometry must not be rendered afterwards.
func (g *Geometry) Dispose() {
	g.Positions = nil
	g.Normals = nil
	g.Colors = nil
	g.Indices = nil
	g.disposed = true
}

func (g *Geometry) Disposed() bool {
	return g.disposed
}

/**
 * @brief Counts the triangles of every mesh below root. Point clouds and
 * lines are not counted. Indexed geometry contributes index count / 3,
 * the rest position count / 3, and the sum is floored once at the end.
 */
func CountTriangles(root Node) int {
	if root == nil {
		return 0
	}
	total := 0.0
	visit := func(n Node) {
		if m, ok := n.(*Mesh); ok && m.Geometry != nil {
			total += m.Geometry.triangleEstimate()
		}
	}
	visit(root)
	root.Base().Traverse(visit)
	return int(gomath.Floor(total))
}

// BoundingBox returns the world space extents of every mesh and point cloud under root, root included.
func BoundingBox(root Node) (box math.Extents3D, ok bool) {
	expand := func(n Node) {
		var g *Geometry
		switch v := n.(type) {
		case *Mesh:
			g = v.Geometry
		case *Points:
			g = v.Geometry
		}
		if g == nil || len(g.Positions) == 0 {
			return
		}
		world := n.Base().Transform.GetWorld()
		for _, p := range g.Positions {
			wp := p.Transform(world)
			if !ok {
				box.Min, box.Max, ok = wp, wp, true
				continue
			}
			box.Min = box.Min.Min(wp)
			box.Max = box.Max.Max(wp)
		}
	}
	if root == nil {
		return box, false
	}
	expand(root)
	root.Base().Traverse(expand)
	return box, ok
}
