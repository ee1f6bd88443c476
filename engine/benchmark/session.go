package benchmark

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

type State int32

const (
	// No session, ready to start one
	StateIdle State = iota
	// Generating the workload and inserting it into the scene
	StatePreparing
	// Running the sampling loop
	StateSampling
	// Aggregating, scoring and tearing the workload down
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateSampling:
		return "sampling"
	case StateFinalizing:
		return "finalizing"
	}
	return "unknown"
}

const (
	// Number of samples averaged by CurrentPerformance.
	recentWindowSize = 60
	// A render faster than the clock resolution still yields a finite fps.
	minFrameTimeMs          = 0.001
	defaultProgressInterval = 30
)

/** @brief Collaborators of a session controller. */
type ControllerConfig struct {
	Scene      *scene.Scene
	Camera     *scene.Camera
	Renderer   renderer.Renderer
	Geometries *systems.GeometrySystem
	// Scheduler paces the loop; nil uses a FrameTicker at TargetFPS per session.
	Scheduler Scheduler
	TargetFPS int
	// Now defaults to time.Now.
	Now core.TimeSource
	// Memory is optional, nil leaves MemoryMB unset.
	Memory MemoryProbe
	Random *math.Random
	Events *core.EventBus
	// Samples between two progress events.
	ProgressInterval int
}

/**
 * @brief Runs one benchmark session at a time: Idle, Preparing, Sampling,
 * Finalizing and back to Idle. Start blocks for the whole session; Stop and
 * CurrentPerformance may be called from other goroutines.
 */
type Controller struct {
	config    ControllerConfig
	generator *Generator

	state         atomic.Int32
	stopRequested atomic.Bool

	// Guards the buffer, the workload and scene membership changes.
	mu       sync.Mutex
	buffer   *SampleBuffer
	workload *Workload
}

func NewController(config ControllerConfig) (*Controller, error) {
	if config.Scene == nil || config.Camera == nil || config.Renderer == nil || config.Geometries == nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "controller needs a scene, camera, renderer and geometry system")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.TargetFPS <= 0 {
		config.TargetFPS = 60
	}
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = defaultProgressInterval
	}
	return &Controller{
		config:    config,
		generator: NewGenerator(config.Random, config.Geometries),
		buffer:    NewSampleBuffer(),
	}, nil
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Start runs a session for a named tier. See StartConfig.
func (c *Controller) Start(ctx context.Context, tierName string, duration time.Duration) (*BenchmarkResult, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StatePreparing)) {
		return nil, ErrAlreadyRunning
	}
	cfg, err := LookupConfig(tierName)
	if err != nil {
		c.state.Store(int32(StateIdle))
		return nil, err
	}
	return c.run(ctx, cfg, duration)
}

/**
 * @brief Runs a session with an explicit configuration and blocks until it
 * ends. The loop samples at least once and then continues while elapsed
 * time is below duration, Stop was not called and ctx is not done. A
 * stopped or cancelled session still returns its result. Teardown and the
 * return to Idle happen on every path.
 */
func (c *Controller) StartConfig(ctx context.Context, cfg BenchmarkConfig, duration time.Duration) (*BenchmarkResult, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StatePreparing)) {
		return nil, ErrAlreadyRunning
	}
	return c.run(ctx, cfg, duration)
}

func (c *Controller) run(ctx context.Context, cfg BenchmarkConfig, duration time.Duration) (*BenchmarkResult, error) {
	defer c.state.Store(int32(StateIdle))
	c.stopRequested.Store(false)

	workload, err := c.generator.GenerateConfig(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to prepare tier '%s'", cfg.Name)
	}
	c.mu.Lock()
	c.buffer.Clear()
	c.workload = workload
	for _, obj := range workload.Objects {
		c.config.Scene.Add(obj.Node)
	}
	c.mu.Unlock()
	defer c.teardown()

	core.LogInfo("benchmark '%s' started with %d objects for %s", cfg.Name, len(workload.Objects), duration)
	started := core.EventContext{}
	started.Data.C[0] = string(cfg.Name)
	started.Data.I64[0] = int64(len(workload.Objects))
	c.config.Events.Fire(core.EVENT_CODE_BENCHMARK_STARTED, c, started)

	scheduler := c.config.Scheduler
	if scheduler == nil {
		ticker := NewFrameTicker(c.config.TargetFPS)
		defer ticker.Stop()
		scheduler = ticker
	}

	c.state.Store(int32(StateSampling))
	clock := core.NewClockWithSource(c.config.Now)
	clock.Start()
	for {
		clock.Update()
		c.sample(workload, clock.Elapsed())
		samples := c.sampleCount()
		if samples%c.config.ProgressInterval == 0 {
			c.fireProgress(clock.Elapsed(), duration, samples)
		}

		if err := scheduler.WaitFrame(ctx); err != nil {
			break
		}
		clock.Update()
		if clock.Elapsed() >= duration || c.stopRequested.Load() || ctx.Err() != nil {
			break
		}
	}
	clock.Update()
	stopped := c.stopRequested.Load() || ctx.Err() != nil

	c.state.Store(int32(StateFinalizing))
	result, err := c.finalize(cfg, clock.Elapsed(), stopped)
	if err != nil {
		return nil, err
	}
	core.LogInfo("benchmark '%s' finished: score %d (%s) from %d samples", cfg.Name, result.Score, result.Grade, result.SampleCount)

	finished := core.EventContext{Payload: result}
	finished.Data.I64[0] = int64(result.Score)
	finished.Data.C[0] = string(result.Grade)
	c.config.Events.Fire(core.EVENT_CODE_BENCHMARK_FINISHED, c, finished)
	return result, nil
}

func (c *Controller) sample(workload *Workload, elapsed time.Duration) {
	Tick(workload.Objects, elapsed.Seconds())

	begin := c.config.Now()
	c.config.Renderer.Render(c.config.Scene, c.config.Camera)
	frameTime := float64(c.config.Now().Sub(begin)) / float64(time.Millisecond)
	if frameTime < minFrameTimeMs {
		frameTime = minFrameTimeMs
	}

	s := MetricSample{
		FPS:         1000 / frameTime,
		FrameTimeMs: frameTime,
	}
	if c.config.Memory != nil {
		if mb, ok := c.config.Memory.MemoryMB(); ok {
			s.MemoryMB = &mb
		}
	}

	c.mu.Lock()
	s.LiveObjectCount = c.config.Scene.ChildCount()
	s.TriangleCount = scene.CountTriangles(c.config.Scene)
	c.buffer.Record(s)
	c.mu.Unlock()
}

func (c *Controller) sampleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Len()
}

func (c *Controller) fireProgress(elapsed, duration time.Duration, samples int) {
	percent := 100.0
	if duration > 0 {
		percent = math.Clamp(float64(elapsed)/float64(duration)*100, 0, 100)
	}
	ctx := core.EventContext{}
	ctx.Data.F64[0] = percent
	if p := c.CurrentPerformance(); p != nil {
		ctx.Data.F64[1] = p.FPS
	}
	ctx.Data.I64[0] = int64(samples)
	c.config.Events.Fire(core.EVENT_CODE_BENCHMARK_PROGRESS, c, ctx)
}

func (c *Controller) finalize(cfg BenchmarkConfig, elapsed time.Duration, stopped bool) (*BenchmarkResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics := make(map[Dimension]AggregatedStat, len(Dimensions))
	for _, d := range Dimensions {
		series := c.buffer.Series(d)
		if len(series) == 0 && d == DimensionMemory {
			continue
		}
		stat, err := Aggregate(series)
		if err != nil {
			return nil, errors.Wrapf(err, "dimension '%s'", d)
		}
		metrics[d] = stat
	}
	score := Score(metrics)
	return &BenchmarkResult{
		ID:          uuid.New().String(),
		TestType:    cfg.Name,
		Timestamp:   c.config.Now(),
		Duration:    elapsed,
		SampleCount: c.buffer.Len(),
		Stopped:     stopped,
		Metrics:     metrics,
		Score:       score,
		Grade:       GradeFor(score),
	}, nil
}

func (c *Controller) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workload == nil {
		return
	}
	for _, obj := range c.workload.Objects {
		c.config.Scene.Remove(obj.Node)
	}
	c.workload.Release()
	c.workload = nil
}

// Stop asks a sampling session to end at its next iteration. Returns false outside Sampling.
func (c *Controller) Stop() bool {
	if c.State() != StateSampling {
		return false
	}
	c.stopRequested.Store(true)
	return true
}

/**
 * @brief Averages fps and frame time over the last 60 samples. Returns nil
 * before the first sample of the first session.
 */
func (c *Controller) CurrentPerformance() *Performance {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffer.Len() == 0 {
		return nil
	}
	window := c.buffer.RecentWindow(recentWindowSize)
	fps := make([]float64, len(window))
	frameTime := make([]float64, len(window))
	for i, s := range window {
		fps[i] = s.FPS
		frameTime[i] = s.FrameTimeMs
	}
	objects := 0
	if c.workload != nil {
		objects = len(c.workload.Objects)
	}
	return &Performance{
		FPS:           mean(fps),
		FrameTimeMs:   mean(frameTime),
		ObjectCount:   objects,
		TriangleCount: scene.CountTriangles(c.config.Scene),
	}
}
