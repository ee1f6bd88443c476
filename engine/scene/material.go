package scene

import (
	"github.com/spaghettifunk/prism/engine/math"
)

type MaterialKind int

const (
	// Unlit, flat colour.
	MaterialBasic MaterialKind = iota
	// Diffuse only.
	MaterialLambert
	// Diffuse plus specular highlight.
	MaterialPhong
	// Point sprites.
	MaterialPoints
)

func (k MaterialKind) String() string {
	switch k {
	case MaterialBasic:
		return "basic"
	case MaterialLambert:
		return "lambert"
	case MaterialPhong:
		return "phong"
	case MaterialPoints:
		return "points"
	}
	return "unknown"
}

/** @brief Surface description used by the renderer. */
type Material struct {
	Name         string
	Kind         MaterialKind
	Color        math.Vec4
	Opacity      float32
	Transparent  bool
	Specular     math.Vec4
	Shininess    float32
	Size         float32
	VertexColors bool
	// Textures lists the maps referenced by the material, e.g. "diffuse:wood.png".
	// They are counted for statistics only, never sampled.
	Textures []string

	disposed bool
}

func NewBasicMaterial(color math.Vec4) *Material {
	return &Material{Kind: MaterialBasic, Color: color, Opacity: 1}
}

func NewLambertMaterial(color math.Vec4) *Material {
	return &Material{Kind: MaterialLambert, Color: color, Opacity: 1}
}

func NewPhongMaterial(color math.Vec4, specular uint32, shininess float32) *Material {
	return &Material{
		Kind:      MaterialPhong,
		Color:     color,
		Opacity:   1,
		Specular:  math.NewColourFromHex(specular),
		Shininess: shininess,
	}
}

func NewPointsMaterial(size, opacity float32, vertexColors bool) *Material {
	return &Material{
		Kind:         MaterialPoints,
		Color:        math.NewVec4(1, 1, 1, 1),
		Opacity:      opacity,
		Transparent:  opacity < 1,
		Size:         size,
		VertexColors: vertexColors,
	}
}

func (m *Material) Dispose() {
	m.disposed = true
}

func (m *Material) Disposed() bool {
	return m.disposed
}

// DisposeTree releases the geometry and materials of every node below root, root included.
func DisposeTree(root Node) {
	dispose := func(n Node) {
		switch v := n.(type) {
		case *Mesh:
			if v.Geometry != nil {
				v.Geometry.Dispose()
			}
			if v.Material != nil {
				v.Material.Dispose()
			}
		case *Points:
			if v.Geometry != nil {
				v.Geometry.Dispose()
			}
			if v.Material != nil {
				v.Material.Dispose()
			}
		}
	}
	if root == nil {
		return
	}
	dispose(root)
	root.Base().Traverse(dispose)
}
