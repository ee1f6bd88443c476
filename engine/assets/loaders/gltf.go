package loaders

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

/**
 * @brief Reads glTF 2.0 documents, both .gltf (with external or embedded
 * buffers) and binary .glb. Node transforms are baked into the vertex
 * positions, so every primitive becomes one mesh directly under the root.
 * Metallic-roughness materials are reduced to a lambert material keeping
 * the base colour and alpha.
 */
type GLTFLoader struct{}

func (l *GLTFLoader) Load(path string) (*Result, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode '%s'", path)
	}
	b := &gltfBuilder{
		doc:       doc,
		res:       newResult(filepath.Base(path)),
		materials: map[*gltf.Material]*scene.Material{},
	}
	if err := b.build(); err != nil {
		return nil, errors.Wrapf(err, "failed to build '%s'", path)
	}
	for i, a := range doc.Animations {
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("animation%d", i)
		}
		b.res.Animations = append(b.res.Animations, name)
	}
	return b.res, nil
}

type gltfBuilder struct {
	doc       *gltf.Document
	res       *Result
	materials map[*gltf.Material]*scene.Material
}

func (b *gltfBuilder) build() error {
	doc := b.doc
	var roots []*gltf.Node
	switch {
	case doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes):
		for _, n := range doc.Scenes[*doc.Scene].Nodes {
			roots = append(roots, doc.Nodes[n])
		}
	case len(doc.Scenes) > 0:
		for _, n := range doc.Scenes[0].Nodes {
			roots = append(roots, doc.Nodes[n])
		}
	default:
		// No scene: every node that is nobody's child is a root.
		isChild := map[*gltf.Node]bool{}
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				isChild[doc.Nodes[c]] = true
			}
		}
		for _, n := range doc.Nodes {
			if !isChild[n] {
				roots = append(roots, n)
			}
		}
	}

	if len(roots) == 0 {
		// Bare mesh libraries are shown untransformed.
		for _, m := range doc.Meshes {
			if err := b.addMesh(m, math.NewMat4Identity()); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range roots {
		if err := b.walk(n, math.NewMat4Identity(), 0); err != nil {
			return err
		}
	}
	return nil
}

const maxNodeDepth = 256

func (b *gltfBuilder) walk(n *gltf.Node, parent math.Mat4, depth int) error {
	if depth > maxNodeDepth {
		return errors.Wrap(ErrMalformedModel, "node hierarchy too deep or cyclic")
	}
	world := nodeMatrix(n).Mul(parent)
	if n.Mesh != nil {
		if err := b.addMesh(b.doc.Meshes[*n.Mesh], world); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := b.walk(b.doc.Nodes[c], world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// nodeMatrix returns the local transform of a node: its matrix when one is
// set, otherwise scale, rotation and translation.
func nodeMatrix(n *gltf.Node) math.Mat4 {
	out := math.Mat4{}
	identity := true
	for i, v := range n.Matrix {
		out.Data[i] = float32(v)
	}
	for i, v := range math.NewMat4Identity().Data {
		if out.Data[i] != v {
			identity = false
			break
		}
	}
	unset := out == math.Mat4{}
	if !identity && !unset {
		// Column major in the file, which is the row vector layout here.
		return out
	}

	scale := math.NewVec3(float32(n.Scale[0]), float32(n.Scale[1]), float32(n.Scale[2]))
	if scale == math.NewVec3Zero() {
		scale = math.NewVec3One()
	}
	rotation := math.Quaternion{
		X: float32(n.Rotation[0]),
		Y: float32(n.Rotation[1]),
		Z: float32(n.Rotation[2]),
		W: float32(n.Rotation[3]),
	}
	translation := math.NewVec3(float32(n.Translation[0]), float32(n.Translation[1]), float32(n.Translation[2]))
	return math.NewMat4Scale(scale).Mul(rotation.ToMat4()).Mul(math.NewMat4Translation(translation))
}

func (b *gltfBuilder) addMesh(m *gltf.Mesh, world math.Mat4) error {
	for i, p := range m.Primitives {
		name := m.Name
		if name == "" {
			name = "mesh"
		}
		if len(m.Primitives) > 1 {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		if p.Mode != gltf.PrimitiveTriangles {
			b.res.warn(fmt.Sprintf("primitive '%s' is not a triangle list, skipped", name))
			continue
		}
		posAccessor, ok := p.Attributes["POSITION"]
		if !ok {
			b.res.warn(fmt.Sprintf("primitive '%s' has no positions, skipped", name))
			continue
		}
		raw, err := modeler.ReadPosition(b.doc, b.doc.Accessors[posAccessor], nil)
		if err != nil {
			return errors.Wrapf(err, "failed to read positions of '%s'", name)
		}
		positions := make([]math.Vec3, len(raw))
		for j, v := range raw {
			positions[j] = math.NewVec3(v[0], v[1], v[2]).Transform(world)
		}

		var indices []uint32
		if p.Indices != nil {
			indices, err = modeler.ReadIndices(b.doc, b.doc.Accessors[*p.Indices], nil)
			if err != nil {
				return errors.Wrapf(err, "failed to read indices of '%s'", name)
			}
			for _, idx := range indices {
				if int(idx) >= len(positions) {
					return errors.Wrapf(ErrMalformedModel, "primitive '%s' index %d out of %d", name, idx, len(positions))
				}
			}
		}

		var material *scene.Material
		if p.Material != nil {
			material = b.material(b.doc.Materials[*p.Material])
		}
		b.res.addMesh(name, positions, indices, material)
	}
	return nil
}

// material converts each document material once, so meshes keep sharing it.
func (b *gltfBuilder) material(src *gltf.Material) *scene.Material {
	if m, ok := b.materials[src]; ok {
		return m
	}
	m := scene.NewLambertMaterial(math.NewVec4(1, 1, 1, 1))
	m.Name = src.Name
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if f := pbr.BaseColorFactor; f != nil {
			m.Color = math.NewVec4(float32(f[0]), float32(f[1]), float32(f[2]), 1)
			m.Opacity = float32(f[3])
		}
		if t := pbr.BaseColorTexture; t != nil {
			m.Textures = append(m.Textures, fmt.Sprintf("texture:%v", t.Index))
		}
	}
	if t := src.EmissiveTexture; t != nil {
		m.Textures = append(m.Textures, fmt.Sprintf("texture:%v", t.Index))
	}
	m.Transparent = src.AlphaMode == gltf.AlphaBlend
	b.materials[src] = m
	return m
}
