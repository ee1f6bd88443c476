package renderer

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"golang.org/x/image/vector"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

// Vertices further out than this many viewports are not rasterised.
const guardBand float32 = 4

type projected struct {
	x, y float32
	ok   bool
}

type screenTriangle [6]float32

/**
 * @brief A CPU backend rendering into an RGBA frame buffer. Triangles are
 * flat shaded, grouped by final colour and each group is filled as one
 * path, so the cost scales with the scene like a real draw call would.
 */
type SoftwareBackend struct {
	appName string
	width   int
	height  int

	frame     *FrameData
	target    *image.RGBA
	rast      *vector.Rasterizer
	projected []projected
	buckets   map[color.NRGBA][]screenTriangle
	fallback  *scene.Material
}

func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{
		buckets:  make(map[color.NRGBA][]screenTriangle),
		fallback: scene.NewLambertMaterial(math.NewColourFromHex(0x888888)),
	}
}

func (b *SoftwareBackend) Initialize(appName string, width, height uint32) error {
	b.appName = appName
	if err := b.Resized(width, height); err != nil {
		return err
	}
	core.LogDebug("software renderer initialized for '%s' at %dx%d", appName, width, height)
	return nil
}

func (b *SoftwareBackend) Shutdown() error {
	b.target = nil
	b.rast = nil
	return nil
}

func (b *SoftwareBackend) Resized(width, height uint32) error {
	if width == 0 || height == 0 {
		return errors.Wrapf(core.ErrInvalidConfig, "invalid frame buffer size %dx%d", width, height)
	}
	b.width = int(width)
	b.height = int(height)
	b.target = image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	b.rast = vector.NewRasterizer(b.width, b.height)
	return nil
}

func (b *SoftwareBackend) BeginFrame(frame *FrameData) error {
	if b.target == nil {
		return errors.New("software renderer is not initialized")
	}
	b.frame = frame
	draw.Draw(b.target, b.target.Bounds(), image.NewUniform(toNRGBA(frame.Clear.ToVec3(), 1)), image.Point{}, draw.Src)
	return nil
}

func (b *SoftwareBackend) EndFrame() error {
	b.frame = nil
	return nil
}

func (b *SoftwareBackend) toScreen(p math.Vec3, mvp math.Mat4) projected {
	clip := p.TransformHomogeneous(mvp)
	if clip.W <= 1e-5 {
		return projected{}
	}
	nx := clip.X / clip.W
	ny := clip.Y / clip.W
	if math32.Abs(nx) > guardBand || math32.Abs(ny) > guardBand {
		return projected{}
	}
	return projected{
		x:  (nx + 1) * 0.5 * float32(b.width),
		y:  (1 - ny) * 0.5 * float32(b.height),
		ok: true,
	}
}

func (b *SoftwareBackend) DrawGeometry(data *GeometryRenderData) int {
	if b.frame == nil || data.Geometry == nil {
		return 0
	}
	g := data.Geometry
	m := data.Material
	if m == nil || m.Disposed() {
		m = b.fallback
	}
	mvp := data.Model.Mul(b.frame.ViewProjection)

	if cap(b.projected) < len(g.Positions) {
		b.projected = make([]projected, len(g.Positions))
	}
	b.projected = b.projected[:len(g.Positions)]
	for i, p := range g.Positions {
		b.projected[i] = b.toScreen(p, mvp)
	}

	for k := range b.buckets {
		delete(b.buckets, k)
	}

	drawn := 0
	w := float32(b.width)
	h := float32(b.height)
	for t := 0; t < g.TriangleCount(); t++ {
		ia, ib, ic := g.Triangle(t)
		if int(ia) >= len(g.Positions) || int(ib) >= len(g.Positions) || int(ic) >= len(g.Positions) {
			continue
		}
		pa, pb, pc := b.projected[ia], b.projected[ib], b.projected[ic]
		if !pa.ok || !pb.ok || !pc.ok {
			continue
		}
		// Entirely off screen.
		if (pa.x < 0 && pb.x < 0 && pc.x < 0) || (pa.x > w && pb.x > w && pc.x > w) ||
			(pa.y < 0 && pb.y < 0 && pc.y < 0) || (pa.y > h && pb.y > h && pc.y > h) {
			continue
		}
		// Screen y points down, so front faces have a negative signed area.
		area := (pb.x-pa.x)*(pc.y-pa.y) - (pc.x-pa.x)*(pb.y-pa.y)
		if area >= 0 {
			continue
		}

		col := b.shade(data, m, g, ia, ib, ic)
		b.buckets[col] = append(b.buckets[col], screenTriangle{pa.x, pa.y, pb.x, pb.y, pc.x, pc.y})
		drawn++
	}

	for col, tris := range b.buckets {
		b.fill(col, tris)
	}
	return drawn
}

func (b *SoftwareBackend) fill(col color.NRGBA, tris []screenTriangle) {
	minX, minY := float32(b.width), float32(b.height)
	maxX, maxY := float32(0), float32(0)
	for _, t := range tris {
		for i := 0; i < 6; i += 2 {
			minX = math32.Min(minX, t[i])
			maxX = math32.Max(maxX, t[i])
			minY = math32.Min(minY, t[i+1])
			maxY = math32.Max(maxY, t[i+1])
		}
	}
	x0 := math.Clamp(int(math32.Floor(minX)), 0, b.width)
	y0 := math.Clamp(int(math32.Floor(minY)), 0, b.height)
	x1 := math.Clamp(int(math32.Ceil(maxX)), 0, b.width)
	y1 := math.Clamp(int(math32.Ceil(maxY)), 0, b.height)
	if x1-x0 <= 0 || y1-y0 <= 0 {
		return
	}

	b.rast.Reset(x1-x0, y1-y0)
	b.rast.DrawOp = draw.Over
	ox, oy := float32(x0), float32(y0)
	for _, t := range tris {
		b.rast.MoveTo(t[0]-ox, t[1]-oy)
		b.rast.LineTo(t[2]-ox, t[3]-oy)
		b.rast.LineTo(t[4]-ox, t[5]-oy)
		b.rast.ClosePath()
	}
	b.rast.Draw(b.target, image.Rect(x0, y0, x1, y1), image.NewUniform(col), image.Point{})
}

func (b *SoftwareBackend) shade(data *GeometryRenderData, m *scene.Material, g *scene.Geometry, ia, ib, ic uint32) color.NRGBA {
	base := m.Color.ToVec3()
	if m.VertexColors && len(g.Colors) == len(g.Positions) {
		base = g.Colors[ia].Add(g.Colors[ib]).Add(g.Colors[ic]).MulScalar(1.0 / 3.0)
	}
	alpha := float32(1)
	if m.Transparent {
		alpha = m.Opacity
	}
	if m.Kind == scene.MaterialBasic || m.Kind == scene.MaterialPoints {
		return toNRGBA(base, alpha)
	}

	frame := b.frame
	if len(frame.Lights) == 0 && frame.Ambient.LengthSquared() == 0 {
		return toNRGBA(base, alpha)
	}

	wa := g.Positions[ia].Transform(data.Model)
	wb := g.Positions[ib].Transform(data.Model)
	wc := g.Positions[ic].Transform(data.Model)
	normal := wb.Sub(wa).Cross(wc.Sub(wa)).Normalized()
	centre := wa.Add(wb).Add(wc).MulScalar(1.0 / 3.0)
	toEye := frame.CameraPosition.Sub(centre).Normalized()

	light := frame.Ambient
	specular := math.NewVec3Zero()
	for _, l := range frame.Lights {
		diffuse := math32.Max(normal.Dot(l.Direction), 0)
		light = light.Add(l.Color.MulScalar(diffuse))
		if m.Kind == scene.MaterialPhong && diffuse > 0 {
			half := l.Direction.Add(toEye).Normalized()
			s := math32.Pow(math32.Max(normal.Dot(half), 0), math32.Max(m.Shininess, 1))
			specular = specular.Add(m.Specular.ToVec3().Mul(l.Color).MulScalar(s))
		}
	}
	return toNRGBA(base.Mul(light).Add(specular), alpha)
}

func (b *SoftwareBackend) DrawPoints(data *GeometryRenderData) int {
	if b.frame == nil || data.Geometry == nil {
		return 0
	}
	g := data.Geometry
	m := data.Material
	if m == nil {
		m = scene.NewPointsMaterial(1, 1, false)
	}
	mvp := data.Model.Mul(b.frame.ViewProjection)
	focal := b.frame.Projection.Data[5] * float32(b.height) * 0.5
	alpha := float32(1)
	if m.Transparent {
		alpha = m.Opacity
	}
	flat := image.NewUniform(toNRGBA(m.Color.ToVec3(), alpha))
	bounds := b.target.Bounds()

	drawn := 0
	for i, p := range g.Positions {
		clip := p.TransformHomogeneous(mvp)
		if clip.W <= 1e-5 {
			continue
		}
		x := (clip.X/clip.W + 1) * 0.5 * float32(b.width)
		y := (1 - clip.Y/clip.W) * 0.5 * float32(b.height)
		size := math.Clamp(m.Size*focal/clip.W, 1, 16)
		half := size * 0.5
		r := image.Rect(int(x-half), int(y-half), int(math32.Ceil(x+half)), int(math32.Ceil(y+half))).Intersect(bounds)
		if r.Empty() {
			continue
		}
		src := flat
		if m.VertexColors && i < len(g.Colors) {
			src = image.NewUniform(toNRGBA(g.Colors[i], alpha))
		}
		draw.Draw(b.target, r, src, image.Point{}, draw.Over)
		drawn++
	}
	return drawn
}

// Frame returns the frame buffer of the last rendered frame.
func (b *SoftwareBackend) Frame() *image.RGBA {
	return b.target
}

func (b *SoftwareBackend) Snapshot(w io.Writer) error {
	if b.target == nil {
		return errors.New("software renderer has no frame buffer")
	}
	return errors.Wrap(png.Encode(w, b.target), "failed to encode snapshot")
}

// Colours are quantised so flat shaded faces share paths.
func toNRGBA(c math.Vec3, alpha float32) color.NRGBA {
	q := func(v float32) uint8 {
		return uint8(math.Clamp(v, 0, 1)*255) &^ 3
	}
	return color.NRGBA{R: q(c.X), G: q(c.Y), B: q(c.Z), A: uint8(math.Clamp(alpha, 0, 1) * 255)}
}
