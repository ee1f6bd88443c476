package engine_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/benchmark"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/scene"
)

func init() {
	core.SetLogOutput(io.Discard)
}

const pyramidOBJ = `v 0 0 0
v 2 0 0
v 2 0 2
v 0 0 2
v 1 2 1
f 1 2 3 4
f 1 2 5
f 2 3 5
f 3 4 5
f 4 1 5
`

const wedgeOBJ = `v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

func immediate(ctx context.Context) error {
	return ctx.Err()
}

func testConfig(t *testing.T) *engine.ApplicationConfig {
	c := engine.DefaultApplicationConfig()
	c.Application.StartWidth = 32
	c.Application.StartHeight = 24
	c.Application.LogLevel = "error"
	c.Benchmark.Tier = "basic"
	c.Benchmark.DurationMS = 10
	c.Benchmark.Seed = 1
	c.History.Path = filepath.Join(t.TempDir(), "history.json")
	return c
}

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	opts = append([]engine.Option{
		engine.WithScheduler(benchmark.SchedulerFunc(immediate)),
		engine.WithMemoryProbe(nil),
	}, opts...)
	e, err := engine.New(testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })
	return e
}

func writeModel(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewBuildsLitScene(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, engine.EngineStageIdle, e.Stage())
	assert.Equal(t, 2, e.Scene().ChildCount())
	assert.Nil(t, e.Model())

	bad := engine.DefaultApplicationConfig()
	bad.Benchmark.TargetFPS = 0
	_, err := engine.New(bad)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
}

func TestRunBenchmarkPersistsHistory(t *testing.T) {
	e := newEngine(t)

	finished := 0
	e.Events().Register(core.EVENT_CODE_BENCHMARK_FINISHED, t, func(core.SystemEventCode, interface{}, interface{}, core.EventContext) bool {
		finished++
		return false
	})

	result, err := e.RunBenchmark(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, benchmark.TierBasic, result.TestType)
	assert.GreaterOrEqual(t, result.SampleCount, 1)
	assert.False(t, result.Stopped)
	assert.Equal(t, 1, finished)

	entries := e.History().List()
	require.Len(t, entries, 1)
	assert.Equal(t, result.ID, entries[0].ID)
	assert.Equal(t, result.Score, entries[0].Score)

	assert.Equal(t, engine.EngineStageIdle, e.Stage())
	assert.Equal(t, 2, e.Scene().ChildCount())
}

func TestRunBenchmarkUnknownTier(t *testing.T) {
	e := newEngine(t)
	_, err := e.RunBenchmark(context.Background(), "ultra", time.Millisecond)
	assert.True(t, errors.Is(err, benchmark.ErrUnknownTier))
	assert.Empty(t, e.History().List())
	assert.Equal(t, engine.EngineStageIdle, e.Stage())
}

func TestLoadModelReplacesPrevious(t *testing.T) {
	e := newEngine(t)
	dir := t.TempDir()

	var loaded []string
	e.Events().Register(core.EVENT_CODE_MODEL_LOADED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		loaded = append(loaded, filepath.Base(data.Data.C[0]))
		return false
	})

	first, err := e.LoadModel(writeModel(t, dir, "pyramid.obj", pyramidOBJ))
	require.NoError(t, err)
	assert.Equal(t, 6, first.Metadata.Statistics.TriangleCount)
	assert.Equal(t, 3, e.Scene().ChildCount())

	second, err := e.LoadModel(writeModel(t, dir, "wedge.obj", wedgeOBJ))
	require.NoError(t, err)
	assert.Equal(t, 3, e.Scene().ChildCount())
	assert.Same(t, second, e.Model())
	first.Root.Traverse(func(n scene.Node) {
		if m, ok := n.(*scene.Mesh); ok {
			assert.True(t, m.Geometry.Disposed())
		}
	})
	assert.Equal(t, []string{"pyramid.obj", "wedge.obj"}, loaded)

	_, err = e.LoadModel(filepath.Join(dir, "missing.obj"))
	assert.Error(t, err)
	assert.Same(t, second, e.Model())
}

func TestRunViewerRotatesModel(t *testing.T) {
	e := newEngine(t)
	model, err := e.LoadModel(writeModel(t, t.TempDir(), "pyramid.obj", pyramidOBJ))
	require.NoError(t, err)

	stats, err := e.RunViewer(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Frames)
	assert.InDelta(t, 0.025, model.Root.Transform.Rotation.Y, 1e-6)
	assert.GreaterOrEqual(t, stats.FrameTimeMs, 0.0)
	assert.Equal(t, engine.EngineStageIdle, e.Stage())
}

func TestQuitStopsViewer(t *testing.T) {
	var e *engine.Engine
	frames := 0
	e = newEngine(t, engine.WithScheduler(benchmark.SchedulerFunc(func(ctx context.Context) error {
		frames++
		if frames == 3 {
			e.Quit()
		}
		return ctx.Err()
	})))

	stats, err := e.RunViewer(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Frames)
}

func TestCancelledContextStopsViewer(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := e.RunViewer(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Frames)
}

func TestOnlyOneLoopRuns(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once atomic.Bool
	e := newEngine(t, engine.WithScheduler(benchmark.SchedulerFunc(func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(entered)
		}
		select {
		case <-release:
			return errors.New("released")
		case <-ctx.Done():
			return ctx.Err()
		}
	})))

	done := make(chan error, 1)
	go func() {
		_, err := e.RunViewer(context.Background(), 0)
		done <- err
	}()
	<-entered

	assert.Equal(t, engine.EngineStageViewing, e.Stage())
	_, err := e.RunBenchmark(context.Background(), "basic", time.Millisecond)
	assert.True(t, errors.Is(err, engine.ErrEngineBusy))
	_, err = e.RunViewer(context.Background(), 1)
	assert.True(t, errors.Is(err, engine.ErrEngineBusy))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, engine.EngineStageIdle, e.Stage())
}

func TestShutdown(t *testing.T) {
	e := newEngine(t)
	_, err := e.LoadModel(writeModel(t, t.TempDir(), "pyramid.obj", pyramidOBJ))
	require.NoError(t, err)

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
	assert.Equal(t, engine.EngineStageShuttingDown, e.Stage())
	assert.Nil(t, e.Model())
	assert.Equal(t, 2, e.Scene().ChildCount())

	_, err = e.RunViewer(context.Background(), 1)
	assert.Equal(t, engine.ErrEngineClosed, err)
	_, err = e.RunBenchmark(context.Background(), "basic", time.Millisecond)
	assert.Equal(t, engine.ErrEngineClosed, err)
}

func TestWatchReloadsShownModel(t *testing.T) {
	dir := t.TempDir()
	path := writeModel(t, dir, "shape.obj", pyramidOBJ)

	var e *engine.Engine
	var first atomic.Value
	e = newEngine(t, engine.WithScheduler(benchmark.SchedulerFunc(func(ctx context.Context) error {
		if m := e.Model(); m != nil && m != first.Load() {
			e.Quit()
			return nil
		}
		select {
		case <-time.After(10 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})))

	model, err := e.LoadModel(path)
	require.NoError(t, err)
	first.Store(model)
	require.NoError(t, e.Watch(dir))
	// Renamed into place so no event sees a half written file.
	tmp := writeModel(t, dir, "shape.tmp", wedgeOBJ)
	require.NoError(t, os.Rename(tmp, path))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = e.RunViewer(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.Err(), "model was not reloaded")
	assert.Equal(t, 1, e.Model().Metadata.Statistics.TriangleCount)
}
