package renderer

import (
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

// Renderer draws a scene as seen from a camera. Render is synchronous.
type Renderer interface {
	Render(s *scene.Scene, c *scene.Camera)
}

type RendererType uint8

const (
	Software RendererType = iota
)

var ErrNoSnapshot = errors.New("renderer backend cannot produce snapshots")

/** @brief Per frame counters, reset at the start of every Render call. */
type Info struct {
	Frame     uint64
	DrawCalls int
	Triangles int
	Points    int
}

// Snapshotter is implemented by backends that can export their last frame.
type Snapshotter interface {
	Snapshot(w io.Writer) error
}

/**
 * @brief The renderer frontend. Walks the scene graph, resolves world
 * matrices and lights, orders draws back to front and hands them to the
 * backend.
 */
type RendererSystem struct {
	backend RendererBackend

	mu      sync.Mutex
	info    Info
	packets []GeometryRenderData
}

func NewRendererSystem(appName string, width, height uint32, backend RendererBackend) (*RendererSystem, error) {
	if backend == nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "renderer backend is required")
	}
	if err := backend.Initialize(appName, width, height); err != nil {
		return nil, errors.Wrap(err, "failed to initialize renderer backend")
	}
	return &RendererSystem{backend: backend}, nil
}

func (r *RendererSystem) Render(s *scene.Scene, c *scene.Camera) {
	if s == nil || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.info.Frame++
	r.info.DrawCalls = 0
	r.info.Triangles = 0
	r.info.Points = 0

	view := c.GetView()
	frame := &FrameData{
		View:           view,
		Projection:     c.GetProjection(),
		CameraPosition: c.Position,
		Clear:          s.Background,
	}
	frame.ViewProjection = view.Mul(frame.Projection)

	r.packets = r.packets[:0]
	s.Traverse(func(n scene.Node) {
		if !visible(n) {
			return
		}
		switch v := n.(type) {
		case *scene.Light:
			r.collectLight(frame, v)
		case *scene.Mesh:
			if v.Geometry == nil || v.Geometry.Disposed() {
				return
			}
			r.packets = append(r.packets, r.packet(v.Base(), v.Geometry, v.Material, view, false))
		case *scene.Points:
			if v.Geometry == nil || v.Geometry.Disposed() {
				return
			}
			r.packets = append(r.packets, r.packet(v.Base(), v.Geometry, v.Material, view, true))
		}
	})

	// Painter's order: farthest first. View space looks down -Z.
	sort.SliceStable(r.packets, func(i, j int) bool {
		return r.packets[i].Depth < r.packets[j].Depth
	})

	if err := r.backend.BeginFrame(frame); err != nil {
		core.LogError("renderer begin frame failed: %s", err.Error())
		return
	}
	for i := range r.packets {
		p := &r.packets[i]
		r.info.DrawCalls++
		if p.IsPoints {
			r.info.Points += r.backend.DrawPoints(p)
			continue
		}
		r.info.Triangles += p.Geometry.TriangleCount()
		r.backend.DrawGeometry(p)
	}
	if err := r.backend.EndFrame(); err != nil {
		core.LogError("renderer end frame failed: %s", err.Error())
	}
}

func (r *RendererSystem) packet(o *scene.Object3D, g *scene.Geometry, m *scene.Material, view math.Mat4, points bool) GeometryRenderData {
	model := o.Transform.GetWorld()
	centre := math.NewVec3Zero().Transform(model.Mul(view))
	return GeometryRenderData{
		Model:    model,
		Geometry: g,
		Material: m,
		Depth:    centre.Z,
		IsPoints: points,
	}
}

func (r *RendererSystem) collectLight(frame *FrameData, l *scene.Light) {
	colour := l.Color.ToVec3().MulScalar(l.Intensity)
	switch l.Kind {
	case scene.LightAmbient:
		frame.Ambient = frame.Ambient.Add(colour)
	case scene.LightDirectional:
		world := l.Transform.GetWorld()
		pos := math.NewVec3Zero().Transform(world)
		frame.Lights = append(frame.Lights, DirectionalLight{
			Direction: pos.Normalized(),
			Color:     colour,
		})
	}
}

// visible is false when the node or any ancestor is hidden.
func visible(n scene.Node) bool {
	for o := n.Base(); o != nil; o = o.Parent() {
		if !o.Visible {
			return false
		}
	}
	return true
}

func (r *RendererSystem) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

func (r *RendererSystem) Resized(width, height uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Resized(width, height)
}

// Snapshot writes the last rendered frame, if the backend supports it.
func (r *RendererSystem) Snapshot(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.backend.(Snapshotter)
	if !ok {
		return ErrNoSnapshot
	}
	return s.Snapshot(w)
}

func (r *RendererSystem) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Shutdown()
}
