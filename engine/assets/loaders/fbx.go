package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

/**
 * @brief Reads binary FBX files: mesh geometry, the diffuse colour of the
 * connected materials, texture references and animation stack names.
 * Model transforms (Lcl Translation and friends) are not applied.
 */
type FBXLoader struct{}

func (l *FBXLoader) Load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read '%s'", path)
	}
	root, version, err := parseFBX(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode '%s'", path)
	}
	core.LogDebug("decoded FBX %d.%d document '%s'", version/1000, (version%1000)/100, path)
	return buildFBX(filepath.Base(path), root)
}

type fbxObject struct {
	id   int64
	name string
	node *fbxNode
}

func buildFBX(name string, root *fbxNode) (*Result, error) {
	res := newResult(name)
	objects := root.child("Objects")
	if objects == nil {
		res.warn("FBX document has no Objects section")
		return res, nil
	}

	// child id -> parent ids
	parents := map[int64][]int64{}
	if conns := root.child("Connections"); conns != nil {
		for _, c := range conns.children("C") {
			child, okc := propInt64(c, 1)
			parent, okp := propInt64(c, 2)
			if okc && okp {
				parents[child] = append(parents[child], parent)
			}
		}
	}

	materialObjects := fbxObjects(objects, "Material")
	materials := map[int64]*scene.Material{}
	for _, obj := range materialObjects {
		materials[obj.id] = fbxMaterial(obj)
	}
	for _, obj := range fbxObjects(objects, "Texture") {
		for _, p := range parents[obj.id] {
			if m, ok := materials[p]; ok {
				m.Textures = append(m.Textures, "texture:"+obj.name)
			}
		}
	}
	// model id -> first connected material
	modelMaterial := map[int64]*scene.Material{}
	for _, obj := range materialObjects {
		for _, p := range parents[obj.id] {
			if _, ok := modelMaterial[p]; !ok {
				modelMaterial[p] = materials[obj.id]
			}
		}
	}

	for _, obj := range fbxObjects(objects, "Geometry") {
		if kind, _ := propString(obj.node, 2); kind != "" && kind != "Mesh" {
			continue
		}
		positions, indices, err := fbxMesh(obj.node)
		if err != nil {
			return nil, errors.Wrapf(err, "geometry '%s'", obj.name)
		}
		var material *scene.Material
		for _, model := range parents[obj.id] {
			if m, ok := modelMaterial[model]; ok {
				material = m
				break
			}
		}
		if res.addMesh(obj.name, positions, indices, material) == nil {
			res.warn(fmt.Sprintf("geometry '%s' has no triangles", obj.name))
		}
	}

	for _, stack := range fbxObjects(objects, "AnimationStack") {
		res.Animations = append(res.Animations, stack.name)
	}
	return res, nil
}

func fbxObjects(objects *fbxNode, kind string) []fbxObject {
	var out []fbxObject
	for _, n := range objects.children(kind) {
		id, _ := propInt64(n, 0)
		name, _ := propString(n, 1)
		// Names are stored as "Name\x00\x01Class".
		if i := strings.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		out = append(out, fbxObject{id: id, name: name, node: n})
	}
	return out
}

func fbxMaterial(obj fbxObject) *scene.Material {
	m := scene.NewLambertMaterial(math.NewColourFromHex(0x888888))
	m.Name = obj.name
	props := obj.node.child("Properties70")
	if props == nil {
		return m
	}
	for _, p := range props.children("P") {
		key, _ := propString(p, 0)
		switch key {
		case "DiffuseColor", "Diffuse":
			r, okr := propFloat(p, 4)
			g, okg := propFloat(p, 5)
			b, okb := propFloat(p, 6)
			if okr && okg && okb {
				m.Color = math.NewVec4(r, g, b, 1)
			}
		case "Opacity":
			if v, ok := propFloat(p, 4); ok {
				m.Opacity = math.Clamp(v, 0, 1)
				m.Transparent = m.Opacity < 1
			}
		}
	}
	return m
}

// fbxMesh turns the polygon vertex index list into triangle fans.
// A negative index closes a polygon and stores the bitwise not of the real index.
func fbxMesh(n *fbxNode) ([]math.Vec3, []uint32, error) {
	var coords []float64
	if v := n.child("Vertices"); v != nil && len(v.Properties) > 0 {
		coords, _ = v.Properties[0].([]float64)
	}
	var polygons []int32
	if p := n.child("PolygonVertexIndex"); p != nil && len(p.Properties) > 0 {
		polygons, _ = p.Properties[0].([]int32)
	}

	positions := make([]math.Vec3, len(coords)/3)
	for i := range positions {
		positions[i] = math.NewVec3(float32(coords[i*3]), float32(coords[i*3+1]), float32(coords[i*3+2]))
	}

	var indices []uint32
	polygon := make([]uint32, 0, 4)
	for _, raw := range polygons {
		idx := raw
		last := raw < 0
		if last {
			idx = ^raw
		}
		if int(idx) >= len(positions) {
			return nil, nil, errors.Wrapf(ErrMalformedModel, "vertex index %d out of %d", idx, len(positions))
		}
		polygon = append(polygon, uint32(idx))
		if last {
			indices = triangulate(polygon, indices)
			polygon = polygon[:0]
		}
	}
	return positions, indices, nil
}

func propInt64(n *fbxNode, i int) (int64, bool) {
	if i >= len(n.Properties) {
		return 0, false
	}
	switch v := n.Properties[i].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	}
	return 0, false
}

func propString(n *fbxNode, i int) (string, bool) {
	if i >= len(n.Properties) {
		return "", false
	}
	s, ok := n.Properties[i].(string)
	return s, ok
}

func propFloat(n *fbxNode, i int) (float32, bool) {
	if i >= len(n.Properties) {
		return 0, false
	}
	switch v := n.Properties[i].(type) {
	case float64:
		return float32(v), true
	case float32:
		return v, true
	case int32:
		return float32(v), true
	case int64:
		return float32(v), true
	}
	return 0, false
}
