package systems

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

type ShapeKind int

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCylinder
	ShapeTorus
	ShapeTorusKnot
	ShapeDodecahedron
	ShapeIcosahedron
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	case ShapeTorus:
		return "torus"
	case ShapeTorusKnot:
		return "torus-knot"
	case ShapeDodecahedron:
		return "dodecahedron"
	case ShapeIcosahedron:
		return "icosahedron"
	}
	return "unknown"
}

/**
 * @brief Describes a procedural shape. Only the fields relevant to Kind
 * are read. Two equal configs always produce the same geometry, which is
 * what lets the geometry system share them.
 */
type GeometryConfig struct {
	Kind ShapeKind
	// Box size, or the radius in Width for round shapes.
	Width, Height, Depth float32
	RadiusTop            float32
	RadiusBottom         float32
	Tube                 float32
	WidthSegments        uint32
	HeightSegments       uint32
	RadialSegments       uint32
	TubularSegments      uint32
	Detail               uint32
	P, Q                 uint32
}

// Key uniquely identifies the generated geometry.
func (c GeometryConfig) Key() string {
	return fmt.Sprintf("%s:%+v", c.Kind, c)
}

func GenerateBoxConfig(width, height, depth float32) GeometryConfig {
	return GeometryConfig{Kind: ShapeBox, Width: width, Height: height, Depth: depth}
}

func GenerateSphereConfig(radius float32, widthSegments, heightSegments uint32) GeometryConfig {
	return GeometryConfig{Kind: ShapeSphere, Width: radius, WidthSegments: widthSegments, HeightSegments: heightSegments}
}

func GenerateCylinderConfig(radiusTop, radiusBottom, height float32, radialSegments uint32) GeometryConfig {
	return GeometryConfig{
		Kind:           ShapeCylinder,
		RadiusTop:      radiusTop,
		RadiusBottom:   radiusBottom,
		Height:         height,
		RadialSegments: radialSegments,
		HeightSegments: 1,
	}
}

func GenerateTorusConfig(radius, tube float32, radialSegments, tubularSegments uint32) GeometryConfig {
	return GeometryConfig{Kind: ShapeTorus, Width: radius, Tube: tube, RadialSegments: radialSegments, TubularSegments: tubularSegments}
}

func GenerateTorusKnotConfig(radius, tube float32, tubularSegments, radialSegments uint32) GeometryConfig {
	return GeometryConfig{
		Kind:            ShapeTorusKnot,
		Width:           radius,
		Tube:            tube,
		TubularSegments: tubularSegments,
		RadialSegments:  radialSegments,
		P:               2,
		Q:               3,
	}
}

func GenerateDodecahedronConfig(radius float32) GeometryConfig {
	return GeometryConfig{Kind: ShapeDodecahedron, Width: radius}
}

func GenerateIcosahedronConfig(radius float32, detail uint32) GeometryConfig {
	return GeometryConfig{Kind: ShapeIcosahedron, Width: radius, Detail: detail}
}

// BuildGeometry generates the vertex data described by config.
func BuildGeometry(config GeometryConfig) (*scene.Geometry, error) {
	var g *scene.Geometry
	switch config.Kind {
	case ShapeBox:
		g = buildBox(config)
	case ShapeSphere:
		g = buildSphere(config)
	case ShapeCylinder:
		g = buildCylinder(config)
	case ShapeTorus:
		g = buildTorus(config)
	case ShapeTorusKnot:
		g = buildTorusKnot(config)
	case ShapeDodecahedron:
		g = buildPolyhedron(dodecahedronVertices(), dodecahedronIndices, config.Width, config.Detail)
	case ShapeIcosahedron:
		g = buildPolyhedron(icosahedronVertices(), icosahedronIndices, config.Width, config.Detail)
	default:
		return nil, fmt.Errorf("unknown shape kind %d", config.Kind)
	}
	g.Name = config.Kind.String()
	g.ComputeNormals()
	return g, nil
}

func nonZero(v, fallback float32) float32 {
	if v == 0 {
		core.LogWarn("shape dimension must be nonzero. Defaulting to %f.", fallback)
		return fallback
	}
	return v
}

func atLeast(v, min uint32) uint32 {
	if v < min {
		return min
	}
	return v
}

func buildBox(c GeometryConfig) *scene.Geometry {
	hw := nonZero(c.Width, 1) * 0.5
	hh := nonZero(c.Height, 1) * 0.5
	hd := nonZero(c.Depth, 1) * 0.5

	g := &scene.Geometry{}
	faces := [6][4]math.Vec3{
		// Front face
		{{X: -hw, Y: -hh, Z: hd}, {X: hw, Y: -hh, Z: hd}, {X: hw, Y: hh, Z: hd}, {X: -hw, Y: hh, Z: hd}},
		// Back face
		{{X: hw, Y: -hh, Z: -hd}, {X: -hw, Y: -hh, Z: -hd}, {X: -hw, Y: hh, Z: -hd}, {X: hw, Y: hh, Z: -hd}},
		// Left
		{{X: -hw, Y: -hh, Z: -hd}, {X: -hw, Y: -hh, Z: hd}, {X: -hw, Y: hh, Z: hd}, {X: -hw, Y: hh, Z: -hd}},
		// Right
		{{X: hw, Y: -hh, Z: hd}, {X: hw, Y: -hh, Z: -hd}, {X: hw, Y: hh, Z: -hd}, {X: hw, Y: hh, Z: hd}},
		// Top
		{{X: -hw, Y: hh, Z: hd}, {X: hw, Y: hh, Z: hd}, {X: hw, Y: hh, Z: -hd}, {X: -hw, Y: hh, Z: -hd}},
		// Bottom
		{{X: -hw, Y: -hh, Z: -hd}, {X: hw, Y: -hh, Z: -hd}, {X: hw, Y: -hh, Z: hd}, {X: -hw, Y: -hh, Z: hd}},
	}
	for f, quad := range faces {
		base := uint32(f * 4)
		g.Positions = append(g.Positions, quad[:]...)
		g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return g
}

func buildSphere(c GeometryConfig) *scene.Geometry {
	radius := nonZero(c.Width, 1)
	ws := atLeast(c.WidthSegments, 3)
	hs := atLeast(c.HeightSegments, 2)

	g := &scene.Geometry{}
	grid := make([][]uint32, hs+1)
	index := uint32(0)
	for iy := uint32(0); iy <= hs; iy++ {
		v := float32(iy) / float32(hs)
		row := make([]uint32, ws+1)
		for ix := uint32(0); ix <= ws; ix++ {
			u := float32(ix) / float32(ws)
			sinT, cosT := math32.Sincos(v * math.K_PI)
			sinP, cosP := math32.Sincos(u * 2 * math.K_PI)
			g.Positions = append(g.Positions, math.NewVec3(-radius*cosP*sinT, radius*cosT, radius*sinP*sinT))
			row[ix] = index
			index++
		}
		grid[iy] = row
	}
	// The poles collapse one triangle of each quad.
	for iy := uint32(0); iy < hs; iy++ {
		for ix := uint32(0); ix < ws; ix++ {
			a := grid[iy][ix+1]
			b := grid[iy][ix]
			cc := grid[iy+1][ix]
			d := grid[iy+1][ix+1]
			if iy != 0 {
				g.Indices = append(g.Indices, a, b, d)
			}
			if iy != hs-1 {
				g.Indices = append(g.Indices, b, cc, d)
			}
		}
	}
	return g
}

func buildCylinder(c GeometryConfig) *scene.Geometry {
	height := nonZero(c.Height, 1)
	rs := atLeast(c.RadialSegments, 3)
	hs := atLeast(c.HeightSegments, 1)
	halfHeight := height / 2

	g := &scene.Geometry{}
	index := uint32(0)
	rows := make([][]uint32, hs+1)
	for y := uint32(0); y <= hs; y++ {
		v := float32(y) / float32(hs)
		radius := v*(c.RadiusBottom-c.RadiusTop) + c.RadiusTop
		row := make([]uint32, rs+1)
		for x := uint32(0); x <= rs; x++ {
			s, co := math32.Sincos(float32(x) / float32(rs) * 2 * math.K_PI)
			g.Positions = append(g.Positions, math.NewVec3(radius*s, -v*height+halfHeight, radius*co))
			row[x] = index
			index++
		}
		rows[y] = row
	}
	for x := uint32(0); x < rs; x++ {
		for y := uint32(0); y < hs; y++ {
			a := rows[y][x]
			b := rows[y+1][x]
			cc := rows[y+1][x+1]
			d := rows[y][x+1]
			g.Indices = append(g.Indices, a, b, d, b, cc, d)
		}
	}

	buildCap := func(top bool) {
		radius := c.RadiusBottom
		sign := float32(-1)
		if top {
			radius = c.RadiusTop
			sign = 1
		}
		centerStart := index
		for x := uint32(1); x <= rs; x++ {
			g.Positions = append(g.Positions, math.NewVec3(0, halfHeight*sign, 0))
			index++
		}
		centerEnd := index
		for x := uint32(0); x <= rs; x++ {
			s, co := math32.Sincos(float32(x) / float32(rs) * 2 * math.K_PI)
			g.Positions = append(g.Positions, math.NewVec3(radius*s, halfHeight*sign, radius*co))
			index++
		}
		for x := uint32(0); x < rs; x++ {
			cIdx := centerStart + x
			i := centerEnd + x
			if top {
				g.Indices = append(g.Indices, i, i+1, cIdx)
			} else {
				g.Indices = append(g.Indices, i+1, i, cIdx)
			}
		}
	}
	if c.RadiusTop > 0 {
		buildCap(true)
	}
	if c.RadiusBottom > 0 {
		buildCap(false)
	}
	return g
}

func buildTorus(c GeometryConfig) *scene.Geometry {
	radius := nonZero(c.Width, 1)
	tube := nonZero(c.Tube, 0.4)
	rs := atLeast(c.RadialSegments, 3)
	ts := atLeast(c.TubularSegments, 3)

	g := &scene.Geometry{}
	for j := uint32(0); j <= rs; j++ {
		for i := uint32(0); i <= ts; i++ {
			su, cu := math32.Sincos(float32(i) / float32(ts) * 2 * math.K_PI)
			sv, cv := math32.Sincos(float32(j) / float32(rs) * 2 * math.K_PI)
			g.Positions = append(g.Positions, math.NewVec3((radius+tube*cv)*cu, (radius+tube*cv)*su, tube*sv))
		}
	}
	for j := uint32(1); j <= rs; j++ {
		for i := uint32(1); i <= ts; i++ {
			a := (ts+1)*j + i - 1
			b := (ts+1)*(j-1) + i - 1
			cc := (ts+1)*(j-1) + i
			d := (ts+1)*j + i
			g.Indices = append(g.Indices, a, b, d, b, cc, d)
		}
	}
	return g
}

func torusKnotCurve(u float32, p, q uint32, radius float32) math.Vec3 {
	su, cu := math32.Sincos(u)
	quOverP := float32(q) / float32(p) * u
	cs := math32.Cos(quOverP)
	return math.NewVec3(
		radius*(2+cs)*0.5*cu,
		radius*(2+cs)*su*0.5,
		radius*math32.Sin(quOverP)*0.5,
	)
}

func buildTorusKnot(c GeometryConfig) *scene.Geometry {
	radius := nonZero(c.Width, 1)
	tube := nonZero(c.Tube, 0.4)
	ts := atLeast(c.TubularSegments, 3)
	rs := atLeast(c.RadialSegments, 3)
	p := atLeast(c.P, 1)
	q := atLeast(c.Q, 1)

	g := &scene.Geometry{}
	for i := uint32(0); i <= ts; i++ {
		u := float32(i) / float32(ts) * float32(p) * 2 * math.K_PI
		p1 := torusKnotCurve(u, p, q, radius)
		p2 := torusKnotCurve(u+0.01, p, q, radius)
		t := p2.Sub(p1)
		n := p2.Add(p1)
		b := t.Cross(n)
		n = b.Cross(t)
		b = b.Normalized()
		n = n.Normalized()
		for j := uint32(0); j <= rs; j++ {
			sv, cv := math32.Sincos(float32(j) / float32(rs) * 2 * math.K_PI)
			cx := -tube * cv
			cy := tube * sv
			g.Positions = append(g.Positions, p1.Add(n.MulScalar(cx)).Add(b.MulScalar(cy)))
		}
	}
	for j := uint32(1); j <= ts; j++ {
		for i := uint32(1); i <= rs; i++ {
			a := (rs+1)*(j-1) + (i - 1)
			b := (rs+1)*j + (i - 1)
			cc := (rs+1)*j + i
			d := (rs+1)*(j-1) + i
			g.Indices = append(g.Indices, a, b, d, b, cc, d)
		}
	}
	return g
}

var golden = (1 + math32.Sqrt(5)) / 2

func dodecahedronVertices() []math.Vec3 {
	t := golden
	r := 1 / t
	return []math.Vec3{
		// (±1, ±1, ±1)
		{X: -1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: 1}, {X: -1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: 1},
		{X: 1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: 1},
		// (0, ±1/φ, ±φ)
		{X: 0, Y: -r, Z: -t}, {X: 0, Y: -r, Z: t}, {X: 0, Y: r, Z: -t}, {X: 0, Y: r, Z: t},
		// (±1/φ, ±φ, 0)
		{X: -r, Y: -t, Z: 0}, {X: -r, Y: t, Z: 0}, {X: r, Y: -t, Z: 0}, {X: r, Y: t, Z: 0},
		// (±φ, 0, ±1/φ)
		{X: -t, Y: 0, Z: -r}, {X: t, Y: 0, Z: -r}, {X: -t, Y: 0, Z: r}, {X: t, Y: 0, Z: r},
	}
}

// Twelve pentagons, three triangles each.
var dodecahedronIndices = []uint32{
	3, 11, 7, 3, 7, 15, 3, 15, 13,
	7, 19, 17, 7, 17, 6, 7, 6, 15,
	17, 4, 8, 17, 8, 10, 17, 10, 6,
	8, 0, 16, 8, 16, 2, 8, 2, 10,
	0, 12, 1, 0, 1, 18, 0, 18, 16,
	6, 10, 2, 6, 2, 13, 6, 13, 15,
	2, 16, 18, 2, 18, 3, 2, 3, 13,
	18, 1, 9, 18, 9, 11, 18, 11, 3,
	4, 14, 12, 4, 12, 0, 4, 0, 8,
	11, 9, 5, 11, 5, 19, 11, 19, 7,
	19, 5, 14, 19, 14, 4, 19, 4, 17,
	1, 12, 14, 1, 14, 5, 1, 5, 9,
}

func icosahedronVertices() []math.Vec3 {
	t := golden
	return []math.Vec3{
		{X: -1, Y: t, Z: 0}, {X: 1, Y: t, Z: 0}, {X: -1, Y: -t, Z: 0}, {X: 1, Y: -t, Z: 0},
		{X: 0, Y: -1, Z: t}, {X: 0, Y: 1, Z: t}, {X: 0, Y: -1, Z: -t}, {X: 0, Y: 1, Z: -t},
		{X: t, Y: 0, Z: -1}, {X: t, Y: 0, Z: 1}, {X: -t, Y: 0, Z: -1}, {X: -t, Y: 0, Z: 1},
	}
}

var icosahedronIndices = []uint32{
	0, 11, 5, 0, 5, 1, 0, 1, 7, 0, 7, 10, 0, 10, 11,
	1, 5, 9, 5, 11, 4, 11, 10, 2, 10, 7, 6, 7, 1, 8,
	3, 9, 4, 3, 4, 2, 3, 2, 6, 3, 6, 8, 3, 8, 9,
	4, 9, 5, 2, 4, 11, 6, 2, 10, 8, 6, 7, 9, 8, 1,
}

func lerp(a, b math.Vec3, t float32) math.Vec3 {
	return a.Add(b.Sub(a).MulScalar(t))
}

/**
 * @brief Builds a non indexed polyhedron. Each base face is split into
 * (detail+1)^2 triangles and every vertex is pushed onto the sphere of
 * the given radius.
 */
func buildPolyhedron(vertices []math.Vec3, indices []uint32, radius float32, detail uint32) *scene.Geometry {
	radius = nonZero(radius, 1)
	g := &scene.Geometry{}
	cols := int(detail) + 1
	push := func(v math.Vec3) {
		g.Positions = append(g.Positions, v.Normalized().MulScalar(radius))
	}
	for f := 0; f+2 < len(indices); f += 3 {
		a := vertices[indices[f]]
		b := vertices[indices[f+1]]
		c := vertices[indices[f+2]]

		v := make([][]math.Vec3, cols+1)
		for i := 0; i <= cols; i++ {
			aj := lerp(a, c, float32(i)/float32(cols))
			bj := lerp(b, c, float32(i)/float32(cols))
			rows := cols - i
			v[i] = make([]math.Vec3, rows+1)
			for j := 0; j <= rows; j++ {
				if j == 0 && i == cols {
					v[i][j] = aj
				} else {
					v[i][j] = lerp(aj, bj, float32(j)/float32(rows))
				}
			}
		}
		for i := 0; i < cols; i++ {
			for j := 0; j < 2*(cols-i)-1; j++ {
				k := j / 2
				if j%2 == 0 {
					push(v[i][k+1])
					push(v[i+1][k])
					push(v[i][k])
				} else {
					push(v[i][k+1])
					push(v[i+1][k+1])
					push(v[i+1][k])
				}
			}
		}
	}
	return g
}

// GeneratePointCloud scatters count points in a cube of the given edge length, each with a random colour.
func GeneratePointCloud(rng *math.Random, count int, extent float32) *scene.Geometry {
	g := &scene.Geometry{
		Name:      "points",
		Positions: make([]math.Vec3, count),
		Colors:    make([]math.Vec3, count),
	}
	for i := 0; i < count; i++ {
		g.Positions[i] = math.NewVec3(rng.Centered(extent), rng.Centered(extent), rng.Centered(extent))
		g.Colors[i] = math.NewVec3(rng.Float32(), rng.Float32(), rng.Float32())
	}
	return g
}
