package renderer

import (
	"bytes"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func newTestRenderer(t *testing.T, size uint32) (*RendererSystem, *SoftwareBackend) {
	t.Helper()
	backend := NewSoftwareBackend()
	r, err := NewRendererSystem("test", size, size, backend)
	require.NoError(t, err)
	return r, backend
}

func boxMesh(t *testing.T, material *scene.Material) *scene.Mesh {
	t.Helper()
	g, err := systems.BuildGeometry(systems.GenerateBoxConfig(2, 2, 2))
	require.NoError(t, err)
	return scene.NewMesh(g, material)
}

func TestRenderBasicBox(t *testing.T) {
	r, backend := newTestRenderer(t, 64)
	s := scene.NewScene()
	s.Add(boxMesh(t, scene.NewBasicMaterial(math.NewVec4(1, 0, 0, 1))))
	cam := scene.NewCamera(1)

	r.Render(s, cam)

	info := r.Info()
	assert.Equal(t, uint64(1), info.Frame)
	assert.Equal(t, 1, info.DrawCalls)
	assert.Equal(t, 12, info.Triangles)

	frame := backend.Frame()
	centre := frame.RGBAAt(32, 32)
	assert.Greater(t, centre.R, uint8(200))
	assert.Less(t, centre.G, uint8(50))

	corner := frame.RGBAAt(0, 0)
	assert.Less(t, corner.R, uint8(60))
	assert.Equal(t, corner.R, corner.G)
}

func TestRenderLitBoxAndPoints(t *testing.T) {
	r, backend := newTestRenderer(t, 48)
	s := scene.NewScene()
	s.Add(scene.NewAmbientLight(0x404040, 0.6))
	s.Add(scene.NewDirectionalLight(0xffffff, 0.8, math.NewVec3(10, 10, 5)))
	s.Add(boxMesh(t, scene.NewPhongMaterial(math.NewVec4(0, 0.5, 1, 1), 0x666666, 30)))

	cloud := systems.GeneratePointCloud(math.NewRandom(3), 200, 4)
	s.Add(scene.NewPoints(cloud, scene.NewPointsMaterial(0.1, 0.8, true)))

	r.Render(s, scene.NewCamera(1))
	info := r.Info()
	assert.Equal(t, 2, info.DrawCalls)
	assert.Equal(t, 12, info.Triangles)
	assert.Greater(t, info.Points, 0)
	assert.LessOrEqual(t, info.Points, 200)

	var buf bytes.Buffer
	require.NoError(t, r.Snapshot(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())
	assert.NotNil(t, backend.Frame())
}

func TestRenderSkipsHiddenAndDisposed(t *testing.T) {
	r, _ := newTestRenderer(t, 32)
	s := scene.NewScene()
	hidden := scene.NewGroup("hidden")
	hidden.Visible = false
	hidden.Add(boxMesh(t, nil))
	s.Add(hidden)

	disposed := boxMesh(t, nil)
	disposed.Geometry.Dispose()
	s.Add(disposed)

	r.Render(s, scene.NewCamera(1))
	assert.Equal(t, 0, r.Info().DrawCalls)

	// Counters reset every frame.
	s.Add(boxMesh(t, nil))
	r.Render(s, scene.NewCamera(1))
	assert.Equal(t, 1, r.Info().DrawCalls)
	r.Render(s, scene.NewCamera(1))
	assert.Equal(t, 1, r.Info().DrawCalls)
	assert.Equal(t, uint64(3), r.Info().Frame)
}

func TestNewRendererSystemValidates(t *testing.T) {
	_, err := NewRendererSystem("test", 10, 10, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewRendererSystem("test", 0, 10, NewSoftwareBackend())
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
