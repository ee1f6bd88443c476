package renderer

import (
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
)

type DirectionalLight struct {
	// Unit vector pointing from the surface towards the light.
	Direction math.Vec3
	Color     math.Vec3
}

/** @brief Everything the backend needs to know about the frame being drawn. */
type FrameData struct {
	View           math.Mat4
	Projection     math.Mat4
	ViewProjection math.Mat4
	CameraPosition math.Vec3
	Ambient        math.Vec3
	Lights         []DirectionalLight
	Clear          math.Vec4
}

/** @brief A single draw request. */
type GeometryRenderData struct {
	Model    math.Mat4
	Geometry *scene.Geometry
	Material *scene.Material
	// View space z of the object origin; more negative is farther away.
	Depth    float32
	IsPoints bool
}

type RendererBackend interface {
	Initialize(appName string, width, height uint32) error
	Shutdown() error
	Resized(width, height uint32) error
	BeginFrame(frame *FrameData) error
	EndFrame() error
	// DrawGeometry returns the number of triangles that survived culling.
	DrawGeometry(data *GeometryRenderData) int
	// DrawPoints returns the number of points drawn.
	DrawPoints(data *GeometryRenderData) int
}
