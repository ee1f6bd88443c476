package benchmark

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Every frame costs exactly frameTime on the fake clock.
type fakeRenderer struct {
	clock     *fakeClock
	frameTime time.Duration
	frames    int
}

func (r *fakeRenderer) Render(*scene.Scene, *scene.Camera) {
	r.frames++
	r.clock.Advance(r.frameTime)
}

type fixedMemory float64

func (m fixedMemory) MemoryMB() (float64, bool) { return float64(m), true }

func immediate(ctx context.Context) error {
	return ctx.Err()
}

type fixture struct {
	scene      *scene.Scene
	geometries *systems.GeometrySystem
	events     *core.EventBus
	controller *Controller
}

func newFixture(t *testing.T, seed uint64, mutate func(*ControllerConfig)) *fixture {
	t.Helper()
	s := scene.NewScene()
	s.Add(scene.NewAmbientLight(0x404040, 0.6))
	s.Add(scene.NewDirectionalLight(0xffffff, 0.8, math.NewVec3(10, 10, 5)))

	clock := newFakeClock()
	config := ControllerConfig{
		Scene:      s,
		Camera:     scene.NewCamera(1),
		Renderer:   &fakeRenderer{clock: clock, frameTime: 16667 * time.Microsecond},
		Geometries: newGeometrySystem(t),
		Scheduler:  SchedulerFunc(immediate),
		Now:        clock.Now,
		Random:     math.NewRandom(seed),
		Events:     core.NewEventBus(),
	}
	if mutate != nil {
		mutate(&config)
	}
	c, err := NewController(config)
	require.NoError(t, err)
	return &fixture{scene: s, geometries: config.Geometries, events: config.Events, controller: c}
}

func TestNewControllerValidates(t *testing.T) {
	_, err := NewController(ControllerConfig{})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestSessionRunsForDuration(t *testing.T) {
	f := newFixture(t, 42, nil)
	assert.Nil(t, f.controller.CurrentPerformance())

	result, err := f.controller.Start(context.Background(), "basic", time.Second)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, TierBasic, result.TestType)
	assert.Equal(t, 60, result.SampleCount)
	assert.False(t, result.Stopped)
	assert.GreaterOrEqual(t, result.Duration, time.Second)
	assert.NotEmpty(t, result.ID)

	fps := result.Metrics[DimensionFPS]
	assert.InDelta(t, 60, fps.Average, 0.01)
	assert.InDelta(t, 0, fps.StandardDeviation, 1e-6)

	frameTime := result.Metrics[DimensionFrameTime]
	assert.InDelta(t, 16.667, frameTime.Average, 1e-6)
	stability, ok := result.StabilityPercent()
	require.True(t, ok)
	assert.InDelta(t, 100, stability, 1e-6)

	// Two lights plus the fifty generated objects.
	assert.Equal(t, 52.0, result.Metrics[DimensionObjects].Average)
	triangles := result.Metrics[DimensionTriangles]
	assert.Greater(t, triangles.Min, 0.0)
	assert.Equal(t, triangles.Min, triangles.Max)

	_, hasMemory := result.Metrics[DimensionMemory]
	assert.False(t, hasMemory)

	assert.Equal(t, Score(result.Metrics), result.Score)
	assert.Equal(t, GradeFor(result.Score), result.Grade)

	assert.Equal(t, StateIdle, f.controller.State())
	assert.Equal(t, 2, f.scene.ChildCount())
	assert.Equal(t, 0, f.geometries.Count())
}

func TestSessionIsDeterministicForASeed(t *testing.T) {
	a, err := newFixture(t, 7, nil).controller.Start(context.Background(), "medium", 500*time.Millisecond)
	require.NoError(t, err)
	b, err := newFixture(t, 7, nil).controller.Start(context.Background(), "medium", 500*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, a.Score, b.Score)
	assert.Equal(t, a.SampleCount, b.SampleCount)
	assert.Equal(t, a.Metrics[DimensionTriangles], b.Metrics[DimensionTriangles])
}

func TestSessionFiresEvents(t *testing.T) {
	f := newFixture(t, 1, nil)
	var started, progress, finished int
	var last *BenchmarkResult
	f.events.Register(core.EVENT_CODE_BENCHMARK_STARTED, "test", func(_ core.SystemEventCode, _, _ interface{}, data core.EventContext) bool {
		started++
		assert.Equal(t, "basic", data.Data.C[0])
		assert.Equal(t, int64(50), data.Data.I64[0])
		return false
	})
	f.events.Register(core.EVENT_CODE_BENCHMARK_PROGRESS, "test", func(_ core.SystemEventCode, _, _ interface{}, data core.EventContext) bool {
		progress++
		assert.Greater(t, data.Data.F64[1], 0.0)
		return false
	})
	f.events.Register(core.EVENT_CODE_BENCHMARK_FINISHED, "test", func(_ core.SystemEventCode, _, _ interface{}, data core.EventContext) bool {
		finished++
		last, _ = data.Payload.(*BenchmarkResult)
		return false
	})

	result, err := f.controller.Start(context.Background(), "basic", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	// One progress event every 30 samples.
	assert.Equal(t, 2, progress)
	assert.Equal(t, 1, finished)
	assert.Same(t, result, last)
}

func TestSessionRecordsMemoryWhenAvailable(t *testing.T) {
	f := newFixture(t, 1, func(c *ControllerConfig) {
		c.Memory = fixedMemory(12.5)
	})
	result, err := f.controller.Start(context.Background(), "basic", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 12.5, result.Metrics[DimensionMemory].Average)
}

func TestStartUnknownTierStaysIdle(t *testing.T) {
	f := newFixture(t, 1, nil)
	_, err := f.controller.Start(context.Background(), "ultra", time.Second)
	assert.ErrorIs(t, err, ErrUnknownTier)
	assert.Equal(t, StateIdle, f.controller.State())
	assert.False(t, f.controller.Stop())
}

func TestStartConfigRejectsInvalidConfig(t *testing.T) {
	f := newFixture(t, 1, nil)
	_, err := f.controller.StartConfig(context.Background(), BenchmarkConfig{Name: "empty", Complexity: ComplexityLow}, time.Second)
	assert.ErrorIs(t, err, ErrInvalidTier)
	assert.Equal(t, StateIdle, f.controller.State())
}

func TestCancelledContextStillReturnsResult(t *testing.T) {
	f := newFixture(t, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.controller.Start(ctx, "stress", time.Hour)
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Equal(t, 1, result.SampleCount)
	// 500 objects and one particle cloud.
	assert.Equal(t, 503.0, result.Metrics[DimensionObjects].Average)
	assert.Equal(t, 2, f.scene.ChildCount())
	assert.Equal(t, 0, f.geometries.Count())
}

func TestStopEndsSessionAndRejectsConcurrentStart(t *testing.T) {
	gate := make(chan struct{})
	waiting := make(chan struct{}, 1)
	r, err := renderer.NewRendererSystem("test", 32, 32, renderer.NewSoftwareBackend())
	require.NoError(t, err)

	f := newFixture(t, 9, func(c *ControllerConfig) {
		c.Renderer = r
		c.Now = time.Now
		c.Scheduler = SchedulerFunc(func(ctx context.Context) error {
			select {
			case waiting <- struct{}{}:
			default:
			}
			select {
			case <-gate:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	type outcome struct {
		result *BenchmarkResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.controller.Start(context.Background(), "basic", time.Hour)
		done <- outcome{res, err}
	}()

	<-waiting
	assert.Equal(t, StateSampling, f.controller.State())
	_, err = f.controller.Start(context.Background(), "basic", time.Second)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	perf := f.controller.CurrentPerformance()
	require.NotNil(t, perf)
	assert.Equal(t, 50, perf.ObjectCount)
	assert.Greater(t, perf.TriangleCount, 0)
	assert.Greater(t, perf.FPS, 0.0)

	assert.True(t, f.controller.Stop())
	close(gate)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.True(t, out.result.Stopped)
		assert.GreaterOrEqual(t, out.result.SampleCount, 1)
	case <-time.After(10 * time.Second):
		t.Fatal("session did not stop")
	}

	assert.Equal(t, StateIdle, f.controller.State())
	assert.False(t, f.controller.Stop())
	assert.Equal(t, 2, f.scene.ChildCount())
	assert.Equal(t, 0, f.geometries.Count())
}

func TestFrameTicker(t *testing.T) {
	ticker := NewFrameTicker(1000)
	defer ticker.Stop()
	require.NoError(t, ticker.WaitFrame(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewFrameTicker(1)
	defer slow.Stop()
	assert.ErrorIs(t, slow.WaitFrame(ctx), context.Canceled)
}

func TestFrameTickerAboveNanosecondRate(t *testing.T) {
	var ticker *FrameTicker
	require.NotPanics(t, func() { ticker = NewFrameTicker(2_000_000_000) })
	defer ticker.Stop()
	require.NoError(t, ticker.WaitFrame(context.Background()))
}

func TestRuntimeMemoryProbe(t *testing.T) {
	mb, ok := NewRuntimeMemoryProbe().MemoryMB()
	require.True(t, ok)
	assert.Greater(t, mb, 0.0)
}
