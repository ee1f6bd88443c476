package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

// OBJLoader reads Wavefront OBJ files and their material library, if any.
// Only geometry and material colours are used; normals and uvs are ignored.
type OBJLoader struct{}

func (l *OBJLoader) Load(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open '%s'", path)
	}
	defer f.Close()

	dec := &objDecoder{}
	if err := dec.parse(f); err != nil {
		return nil, errors.Wrapf(err, "failed to decode '%s'", path)
	}

	materials := map[string]*scene.Material{}
	mtlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"
	if dec.matlib != "" {
		mtlPath = filepath.Join(filepath.Dir(path), dec.matlib)
	}
	if mf, err := os.Open(mtlPath); err == nil {
		materials, err = parseMTL(mf)
		mf.Close()
		if err != nil {
			// Fall back to default materials, as for a missing library.
			dec.warnings = append(dec.warnings, err.Error())
			materials = map[string]*scene.Material{}
		}
	} else if dec.matlib != "" {
		dec.warnings = append(dec.warnings, fmt.Sprintf("material library '%s' not found", dec.matlib))
	}

	return dec.build(filepath.Base(path), materials)
}

type objFace struct {
	vertices []int
	material string
}

type objObject struct {
	name  string
	faces []objFace
}

type objDecoder struct {
	vertices []math.Vec3
	objects  []*objObject
	current  *objObject
	material string
	matlib   string
	line     int
	warnings []string
}

// parse reads the lines from the reader and dispatches them.
func (dec *objDecoder) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		dec.line++
		if err := dec.parseLine(scanner.Text()); err != nil {
			return errors.Wrapf(err, "line %d", dec.line)
		}
	}
	return scanner.Err()
}

func (dec *objDecoder) parseLine(line string) error {
	fields := strings.Fields(line)
	// Ignore empty and comment lines
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	switch fields[0] {
	case "v":
		return dec.parseVertex(fields[1:])
	case "f":
		return dec.parseFace(fields[1:])
	// Groups are treated like objects.
	case "o", "g":
		name := fmt.Sprintf("object%d", len(dec.objects))
		if len(fields) > 1 {
			name = fields[1]
		}
		dec.startObject(name)
	case "usemtl":
		if len(fields) < 2 {
			return errors.Wrap(ErrMalformedModel, "usemtl with no name")
		}
		dec.material = fields[1]
	case "mtllib":
		if len(fields) < 2 {
			return errors.Wrap(ErrMalformedModel, "mtllib with no name")
		}
		dec.matlib = fields[1]
	case "vn", "vt", "vp", "s", "l":
	default:
		core.LogDebug("obj line %d: field not supported: %s", dec.line, fields[0])
	}
	return nil
}

func (dec *objDecoder) startObject(name string) {
	dec.current = &objObject{name: name}
	dec.objects = append(dec.objects, dec.current)
}

// v <x> <y> <z> [w]
func (dec *objDecoder) parseVertex(fields []string) error {
	if len(fields) < 3 {
		return errors.Wrap(ErrMalformedModel, "less than 3 coordinates in 'v' line")
	}
	var xyz [3]float32
	for i := range xyz {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return errors.Wrapf(ErrMalformedModel, "invalid coordinate '%s'", fields[i])
		}
		xyz[i] = float32(f)
	}
	dec.vertices = append(dec.vertices, math.NewVec3(xyz[0], xyz[1], xyz[2]))
	return nil
}

// f v1[/vt1][/vn1] v2[/vt2][/vn2] v3[/vt3][/vn3] ...
func (dec *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return errors.Wrap(ErrMalformedModel, "face line with less than 3 vertices")
	}
	if dec.current == nil {
		// Faces before any o or g line go to an unnamed object.
		dec.startObject("default")
	}
	face := objFace{vertices: make([]int, len(fields)), material: dec.material}
	for i, f := range fields {
		ref := strings.SplitN(f, "/", 2)[0]
		val, err := strconv.Atoi(ref)
		if err != nil {
			return errors.Wrapf(ErrMalformedModel, "invalid face index '%s'", f)
		}
		switch {
		case val > 0:
			face.vertices[i] = val - 1
		case val < 0:
			// Relative to the last parsed vertex
			face.vertices[i] = len(dec.vertices) + val
		default:
			return errors.Wrap(ErrMalformedModel, "face vertex index equal to 0")
		}
	}
	dec.current.faces = append(dec.current.faces, face)
	return nil
}

// build emits one mesh per run of faces sharing a material, per object.
func (dec *objDecoder) build(name string, materials map[string]*scene.Material) (*Result, error) {
	res := newResult(name)
	res.Warnings = append(res.Warnings, dec.warnings...)
	missing := map[string]bool{}

	for _, obj := range dec.objects {
		part := 0
		for start := 0; start < len(obj.faces); {
			mat := obj.faces[start].material
			end := start
			for end < len(obj.faces) && obj.faces[end].material == mat {
				end++
			}

			local := map[int]uint32{}
			var positions []math.Vec3
			var indices []uint32
			polygon := make([]uint32, 0, 4)
			for _, face := range obj.faces[start:end] {
				polygon = polygon[:0]
				for _, vi := range face.vertices {
					if vi < 0 || vi >= len(dec.vertices) {
						return nil, errors.Wrapf(ErrMalformedModel, "object '%s' references vertex %d of %d", obj.name, vi+1, len(dec.vertices))
					}
					li, ok := local[vi]
					if !ok {
						li = uint32(len(positions))
						local[vi] = li
						positions = append(positions, dec.vertices[vi])
					}
					polygon = append(polygon, li)
				}
				indices = triangulate(polygon, indices)
			}

			material := materials[mat]
			if material == nil && mat != "" && !missing[mat] {
				missing[mat] = true
				res.warn(fmt.Sprintf("could not find material '%s', using the default material", mat))
			}
			res.addMesh(fmt.Sprintf("%s_%d", obj.name, part), positions, indices, material)
			part++
			start = end
		}
	}
	return res, nil
}
