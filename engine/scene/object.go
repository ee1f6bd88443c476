package scene

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/prism/engine/math"
)

// Node is anything that can live in the scene graph.
type Node interface {
	Base() *Object3D
}

/**
 * @brief The common part of every scene graph node: identity, transform,
 * shadow flags and the child list. Parenting also chains the transforms
 * so GetWorld accounts for every ancestor.
 */
type Object3D struct {
	ID            uuid.UUID
	Name          string
	Transform     math.Transform
	Visible       bool
	CastShadow    bool
	ReceiveShadow bool

	parent   *Object3D
	children []Node
}

func newObject3D(name string) Object3D {
	return Object3D{
		ID:        uuid.New(),
		Name:      name,
		Transform: *math.TransformCreate(),
		Visible:   true,
	}
}

func (o *Object3D) Base() *Object3D {
	return o
}

func (o *Object3D) Parent() *Object3D {
	return o.parent
}

// Add attaches child to o, detaching it from any previous parent first.
func (o *Object3D) Add(child Node) {
	if child == nil {
		return
	}
	b := child.Base()
	if b == o {
		return
	}
	if b.parent != nil {
		b.parent.Remove(child)
	}
	b.parent = o
	b.Transform.Parent = &o.Transform
	o.children = append(o.children, child)
}

// Remove detaches child from o. Returns false if it was not a direct child.
func (o *Object3D) Remove(child Node) bool {
	if child == nil {
		return false
	}
	b := child.Base()
	for i, c := range o.children {
		if c.Base() == b {
			o.children = append(o.children[:i], o.children[i+1:]...)
			b.parent = nil
			b.Transform.Parent = nil
			return true
		}
	}
	return false
}

// Children returns a copy of the direct children.
func (o *Object3D) Children() []Node {
	out := make([]Node, len(o.children))
	copy(out, o.children)
	return out
}

func (o *Object3D) ChildCount() int {
	return len(o.children)
}

// Traverse visits every descendant depth first, parents before children.
func (o *Object3D) Traverse(fn func(Node)) {
	for _, c := range o.children {
		fn(c)
		c.Base().Traverse(fn)
	}
}

// SetShadows sets the cast and receive flags on o and all its descendants.
func (o *Object3D) SetShadows(cast, receive bool) {
	o.CastShadow = cast
	o.ReceiveShadow = receive
	o.Traverse(func(n Node) {
		n.Base().CastShadow = cast
		n.Base().ReceiveShadow = receive
	})
}

/** @brief A renderable triangle mesh. */
type Mesh struct {
	Object3D
	Geometry *Geometry
	Material *Material
}

func NewMesh(geometry *Geometry, material *Material) *Mesh {
	return &Mesh{
		Object3D: newObject3D("mesh"),
		Geometry: geometry,
		Material: material,
	}
}

/** @brief A point cloud, rendered as one sprite per position. */
type Points struct {
	Object3D
	Geometry *Geometry
	Material *Material
}

func NewPoints(geometry *Geometry, material *Material) *Points {
	return &Points{
		Object3D: newObject3D("points"),
		Geometry: geometry,
		Material: material,
	}
}

// Group only carries a transform and children.
type Group struct {
	Object3D
}

func NewGroup(name string) *Group {
	return &Group{Object3D: newObject3D(name)}
}

type LightKind int

const (
	LightAmbient LightKind = iota
	LightDirectional
)

type Light struct {
	Object3D
	Kind      LightKind
	Color     math.Vec4
	Intensity float32
}

func NewAmbientLight(color uint32, intensity float32) *Light {
	return &Light{
		Object3D:  newObject3D("ambient-light"),
		Kind:      LightAmbient,
		Color:     math.NewColourFromHex(color),
		Intensity: intensity,
	}
}

// NewDirectionalLight creates a light shining from position towards the origin.
func NewDirectionalLight(color uint32, intensity float32, position math.Vec3) *Light {
	l := &Light{
		Object3D:  newObject3D("directional-light"),
		Kind:      LightDirectional,
		Color:     math.NewColourFromHex(color),
		Intensity: intensity,
	}
	l.Transform.SetPosition(position)
	l.CastShadow = true
	return l
}

// Scene is the root of the graph.
type Scene struct {
	Object3D
	Background math.Vec4
}

func NewScene() *Scene {
	return &Scene{
		Object3D:   newObject3D("scene"),
		Background: math.NewColourFromHex(0x222222),
	}
}
