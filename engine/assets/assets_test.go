package assets_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

func init() {
	core.SetLogOutput(io.Discard)
}

// A 4 x 2 x 1 box off the origin, two faces without a material.
const boxOBJ = `o box
v 10 10 10
v 14 10 10
v 14 12 10
v 10 12 10
v 10 10 11
v 14 10 11
v 14 12 11
v 10 12 11
f 1 2 3 4
f 5 6 7 8
`

func writeModel(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, assets.FormatGLTF, assets.FormatOf("scene.gltf"))
	assert.Equal(t, assets.FormatGLB, assets.FormatOf("/tmp/Scene.GLB"))
	assert.Equal(t, assets.FormatOBJ, assets.FormatOf("a.b.obj"))
	assert.Equal(t, assets.FormatFBX, assets.FormatOf("rig.Fbx"))
	assert.Equal(t, assets.FormatNone, assets.FormatOf("model.stl"))
	assert.Equal(t, assets.FormatNone, assets.FormatOf("obj"))

	formats := assets.SupportedFormats()
	require.Len(t, formats, 4)
	formats[0].Name = "changed"
	assert.Equal(t, "glTF 2.0", assets.SupportedFormats()[0].Name)
}

func TestValidate(t *testing.T) {
	l := assets.NewModelLoader(assets.DefaultLoadOptions())

	assert.NoError(t, l.Validate("ok.glb", assets.DefaultMaxFileSize))
	err := l.Validate("huge.glb", assets.DefaultMaxFileSize+1)
	assert.True(t, errors.Is(err, assets.ErrFileTooLarge))
	// Size is checked before the format.
	err = l.Validate("huge.stl", assets.DefaultMaxFileSize+1)
	assert.True(t, errors.Is(err, assets.ErrFileTooLarge))
	err = l.Validate("model.stl", 10)
	assert.True(t, errors.Is(err, assets.ErrUnsupportedFormat))
}

func TestNewModelLoaderFillsDefaults(t *testing.T) {
	l := assets.NewModelLoader(assets.LoadOptions{AutoScale: true})
	assert.Equal(t, assets.DefaultTargetSize, l.Options().TargetSize)
	assert.Equal(t, assets.DefaultMaxFileSize, l.Options().MaxFileSize)
}

func TestLoadPostProcesses(t *testing.T) {
	path := writeModel(t, t.TempDir(), "box.obj", boxOBJ)
	model, err := assets.NewModelLoader(assets.DefaultLoadOptions()).Load(path)
	require.NoError(t, err)

	md := model.Metadata
	assert.Equal(t, "box.obj", md.Filename)
	assert.Equal(t, assets.FormatOBJ, md.Format)
	assert.Equal(t, int64(len(boxOBJ)), md.FileSize)
	assert.Equal(t, assets.ModelStatistics{MeshCount: 1, TriangleCount: 4}, md.Statistics)

	box, ok := scene.BoundingBox(model.Root)
	require.True(t, ok)
	size := box.Max.Sub(box.Min)
	assert.InDelta(t, 3, size.X, 1e-4)
	assert.InDelta(t, 1.5, size.Y, 1e-4)
	assert.True(t, box.Min.Add(box.Max).MulScalar(0.5).Compare(math.NewVec3Zero(), 1e-4))

	model.Root.Traverse(func(n scene.Node) {
		m, ok := n.(*scene.Mesh)
		if !ok {
			return
		}
		assert.True(t, m.CastShadow)
		assert.True(t, m.ReceiveShadow)
		require.NotNil(t, m.Material)
		assert.Equal(t, scene.MaterialLambert, m.Material.Kind)
		assert.Equal(t, math.NewColourFromHex(0x888888), m.Material.Color)
	})

	model.Dispose()
	model.Root.Traverse(func(n scene.Node) {
		if m, ok := n.(*scene.Mesh); ok {
			assert.True(t, m.Geometry.Disposed())
		}
	})
}

func TestLoadWithoutPostProcessing(t *testing.T) {
	path := writeModel(t, t.TempDir(), "box.obj", boxOBJ)
	model, err := assets.NewModelLoader(assets.LoadOptions{}).Load(path)
	require.NoError(t, err)

	box, ok := scene.BoundingBox(model.Root)
	require.True(t, ok)
	assert.Equal(t, math.NewVec3(10, 10, 10), box.Min)
	assert.False(t, model.Root.Children()[0].Base().CastShadow)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	l := assets.NewModelLoader(assets.DefaultLoadOptions())

	_, err := l.Load(filepath.Join(dir, "missing.obj"))
	assert.Error(t, err)

	_, err = l.Load(writeModel(t, dir, "model.stl", "solid x"))
	assert.True(t, errors.Is(err, assets.ErrUnsupportedFormat))

	small := assets.NewModelLoader(assets.LoadOptions{MaxFileSize: 16})
	_, err = small.Load(writeModel(t, dir, "big.obj", boxOBJ))
	assert.True(t, errors.Is(err, assets.ErrFileTooLarge))

	_, err = l.Load(writeModel(t, dir, "bad.fbx", "not an fbx file at all, just text"))
	assert.Error(t, err)
}

func TestExtractStatistics(t *testing.T) {
	shared := scene.NewLambertMaterial(math.NewVec4(1, 1, 1, 1))
	shared.Textures = []string{"texture:a", "texture:b"}
	other := scene.NewBasicMaterial(math.NewVec4(1, 1, 1, 1))
	other.Textures = []string{"texture:b"}

	root := scene.NewGroup("root")
	tri := func() *scene.Geometry {
		return &scene.Geometry{Positions: make([]math.Vec3, 3)}
	}
	root.Add(scene.NewMesh(tri(), shared))
	inner := scene.NewGroup("inner")
	inner.Add(scene.NewMesh(tri(), shared))
	inner.Add(scene.NewMesh(tri(), other))
	inner.Add(scene.NewMesh(tri(), nil))
	inner.Add(scene.NewPoints(tri(), scene.NewPointsMaterial(1, 1, false)))
	root.Add(inner)

	assert.Equal(t, assets.ModelStatistics{
		MeshCount:      4,
		MaterialCount:  2,
		TriangleCount:  4,
		TextureCount:   2,
		HasAnimations:  true,
		AnimationCount: 3,
	}, assets.ExtractStatistics(root, 3))
	assert.Equal(t, assets.ModelStatistics{}, assets.ExtractStatistics(nil, 0))
}

func TestLoadAllKeepsOrderAndReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeModel(t, dir, "box.obj", boxOBJ)
	bad := writeModel(t, dir, "broken.obj", "v 0 0\n")

	bus := core.NewEventBus()
	var mu sync.Mutex
	var loaded []string
	bus.Register(core.EVENT_CODE_MODEL_LOADED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		mu.Lock()
		defer mu.Unlock()
		md, ok := data.Payload.(*assets.ModelMetadata)
		if !assert.True(t, ok) {
			return false
		}
		assert.Equal(t, "obj", data.Data.C[1])
		loaded = append(loaded, md.Filename)
		return false
	})

	am, err := assets.NewAssetManager(assets.NewModelLoader(assets.DefaultLoadOptions()), bus)
	require.NoError(t, err)
	defer am.Shutdown()

	jobs, err := systems.NewJobSystem(2, 4)
	require.NoError(t, err)
	defer jobs.Shutdown()

	results, err := am.LoadAll(context.Background(), jobs, []string{good, bad, good})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Model)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Model)
	assert.Equal(t, bad, results[1].Path)
	assert.NotNil(t, results[2].Model)
	assert.NotSame(t, results[0].Model, results[2].Model)

	mu.Lock()
	assert.Equal(t, []string{"box.obj", "box.obj"}, loaded)
	mu.Unlock()
}

func TestLoadAllStopsOnCancelledContext(t *testing.T) {
	am, err := assets.NewAssetManager(assets.NewModelLoader(assets.DefaultLoadOptions()), core.NewEventBus())
	require.NoError(t, err)
	defer am.Shutdown()

	// No queue and a busy worker, so Submit has to wait on the context.
	jobs, err := systems.NewJobSystem(1, 0)
	require.NoError(t, err)
	release := make(chan struct{})
	require.NoError(t, jobs.Submit(context.Background(), systems.JobTask{
		OnStart: func(interface{}) (interface{}, error) {
			<-release
			return nil, nil
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := am.LoadAll(ctx, jobs, []string{"a.obj"})
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, results, 1)
	assert.Equal(t, context.Canceled, results[0].Err)

	close(release)
	require.NoError(t, jobs.Shutdown())
}

func TestWatchIndexesAndReportsChanges(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.obj", boxOBJ)
	writeModel(t, dir, "notes.txt", "not a model")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writeModel(t, filepath.Join(dir, "nested"), "b.glb", "glTF")

	bus := core.NewEventBus()
	changed := make(chan string, 8)
	bus.Register(core.EVENT_CODE_MODEL_CHANGED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		changed <- data.Data.C[0]
		return false
	})

	am, err := assets.NewAssetManager(assets.NewModelLoader(assets.DefaultLoadOptions()), bus)
	require.NoError(t, err)
	require.NoError(t, am.Watch(dir))

	indexed := am.Assets()
	require.Len(t, indexed, 2)
	assert.Equal(t, filepath.Join(dir, "a.obj"), indexed[0].Path)
	assert.Equal(t, assets.FormatGLB, indexed[1].Format)

	created := writeModel(t, dir, "c.fbx", "fbx")
	select {
	case got := <-changed:
		assert.Equal(t, created, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event for a new model file")
	}
	assert.Eventually(t, func() bool { return len(am.Assets()) == 3 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())
	assert.Equal(t, assets.ErrManagerClosed, am.Watch(dir))
}

func TestNewAssetManagerNeedsLoader(t *testing.T) {
	_, err := assets.NewAssetManager(nil, core.NewEventBus())
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
}
