package engine

import (
	"context"
	"io"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/benchmark"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/history"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is built and waiting for work
	EngineStageIdle
	// The viewer loop is running
	EngineStageViewing
	// A benchmark session is running
	EngineStageBenchmarking
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageIdle:
		return "idle"
	case EngineStageViewing:
		return "viewing"
	case EngineStageBenchmarking:
		return "benchmarking"
	case EngineStageShuttingDown:
		return "shutting down"
	}
	return "uninitialized"
}

var (
	ErrEngineBusy   = errors.New("engine is already running a loop")
	ErrEngineClosed = errors.New("engine is shut down")
)

const (
	// Radians added to the model's Y rotation every viewer frame.
	viewerRotationStep float32 = 0.005
	maxGeometryCount   uint32  = 4096
	// Pending reloads dropped beyond this many.
	reloadQueueSize = 8
)

type Option func(*Engine)

// WithScheduler paces both the viewer loop and benchmark sessions.
func WithScheduler(s benchmark.Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

func WithTimeSource(now core.TimeSource) Option {
	return func(e *Engine) { e.now = now }
}

// WithMemoryProbe replaces the runtime heap probe. nil disables memory sampling.
func WithMemoryProbe(p benchmark.MemoryProbe) Option {
	return func(e *Engine) {
		e.memory = p
		e.memorySet = true
	}
}

/** @brief Statistics of one RunViewer call. */
type ViewerStats struct {
	Frames      int
	FPS         float64
	FrameTimeMs float64
}

/**
 * @brief Composes the scene, the headless renderer, the model loader and
 * the benchmark controller. Nothing is global: every collaborator is
 * owned by the engine and released by Shutdown.
 */
type Engine struct {
	config *ApplicationConfig

	mu           sync.Mutex
	currentStage Stage
	quit         atomic.Bool

	events       *core.EventBus
	scene        *scene.Scene
	camera       *scene.Camera
	backend      *renderer.SoftwareBackend
	renderer     *renderer.RendererSystem
	geometries   *systems.GeometrySystem
	jobs         *systems.JobSystem
	loader       *assets.ModelLoader
	assetManager *assets.AssetManager
	controller   *benchmark.Controller
	history      *history.Store
	metrics      *core.FrameMetrics

	scheduler benchmark.Scheduler
	now       core.TimeSource
	memory    benchmark.MemoryProbe
	memorySet bool

	model     *assets.Model
	modelPath string
	reloads   chan string
}

func New(config *ApplicationConfig, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultApplicationConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	core.SetLogLevel(core.ParseLogLevel(config.Application.LogLevel))

	e := &Engine{
		config:  config,
		events:  core.NewEventBus(),
		metrics: core.NewFrameMetrics(),
		now:     time.Now,
		reloads: make(chan string, reloadQueueSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.memorySet && config.Benchmark.SampleMemory {
		e.memory = benchmark.NewRuntimeMemoryProbe()
	}

	e.scene = scene.NewScene()
	e.scene.Add(scene.NewAmbientLight(0x404040, 0.6))
	e.scene.Add(scene.NewDirectionalLight(0xffffff, 0.8, math.NewVec3(10, 10, 5)))

	width, height := config.Application.StartWidth, config.Application.StartHeight
	e.camera = scene.NewCamera(float32(width) / float32(height))

	var err error
	e.backend = renderer.NewSoftwareBackend()
	if e.renderer, err = renderer.NewRendererSystem(config.Application.Name, width, height, e.backend); err != nil {
		return nil, err
	}
	if e.geometries, err = systems.NewGeometrySystem(&systems.GeometrySystemConfig{MaxGeometryCount: maxGeometryCount}); err != nil {
		return nil, err
	}
	if e.jobs, err = systems.NewJobSystem(runtime.NumCPU(), 2*runtime.NumCPU()); err != nil {
		return nil, err
	}
	e.loader = assets.NewModelLoader(config.LoadOptions())
	if e.assetManager, err = assets.NewAssetManager(e.loader, e.events); err != nil {
		return nil, err
	}
	e.controller, err = benchmark.NewController(benchmark.ControllerConfig{
		Scene:      e.scene,
		Camera:     e.camera,
		Renderer:   e.renderer,
		Geometries: e.geometries,
		Scheduler:  e.scheduler,
		TargetFPS:  config.Benchmark.TargetFPS,
		Now:        e.now,
		Memory:     e.memory,
		Random:     math.NewRandom(config.Benchmark.Seed),
		Events:     e.events,
	})
	if err != nil {
		return nil, err
	}
	e.history = history.NewStore(config.History.Path, config.History.MaxEntries)

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_MODEL_CHANGED, e, e.onModelChanged)

	e.currentStage = EngineStageIdle
	return e, nil
}

func (e *Engine) Config() *ApplicationConfig        { return e.config }
func (e *Engine) Events() *core.EventBus            { return e.events }
func (e *Engine) Scene() *scene.Scene               { return e.scene }
func (e *Engine) Camera() *scene.Camera             { return e.camera }
func (e *Engine) Controller() *benchmark.Controller { return e.controller }
func (e *Engine) History() *history.Store           { return e.history }
func (e *Engine) Loader() *assets.ModelLoader       { return e.loader }
func (e *Engine) Metrics() *core.FrameMetrics       { return e.metrics }
func (e *Engine) RenderInfo() renderer.Info         { return e.renderer.Info() }

func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentStage
}

// Model returns the model currently shown, or nil.
func (e *Engine) Model() *assets.Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// enter moves from Idle to stage. Only one loop runs at a time.
func (e *Engine) enter(stage Stage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.currentStage {
	case EngineStageIdle:
		e.currentStage = stage
		e.quit.Store(false)
		return nil
	case EngineStageShuttingDown, EngineStageUninitialized:
		return ErrEngineClosed
	}
	return errors.Wrapf(ErrEngineBusy, "engine is %s", e.currentStage)
}

func (e *Engine) leave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentStage != EngineStageShuttingDown {
		e.currentStage = EngineStageIdle
	}
}

/**
 * @brief Loads a model file and puts it in the scene in place of the
 * previous one, which is disposed. The camera is moved to frame it.
 * Must not be called while a benchmark session is rendering.
 */
func (e *Engine) LoadModel(path string) (*assets.Model, error) {
	model, err := e.loader.Load(path)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	previous := e.model
	if previous != nil {
		e.scene.Remove(previous.Root)
	}
	e.scene.Add(model.Root)
	e.model = model
	e.modelPath = path
	e.mu.Unlock()
	previous.Dispose()

	e.camera.Frame(e.config.Loader.TargetSize)
	ctx := core.EventContext{Payload: &model.Metadata}
	ctx.Data.C[0] = path
	ctx.Data.C[1] = string(model.Metadata.Format)
	e.events.Fire(core.EVENT_CODE_MODEL_LOADED, e, ctx)
	return model, nil
}

// LoadModels decodes several files concurrently without touching the scene.
func (e *Engine) LoadModels(ctx context.Context, paths []string) ([]assets.LoadResult, error) {
	return e.assetManager.LoadAll(ctx, e.jobs, paths)
}

// Watch follows dir and reloads the shown model whenever its file changes.
func (e *Engine) Watch(dir string) error {
	return e.assetManager.Watch(dir)
}

/**
 * @brief Renders the scene until frames have been drawn (0 means no limit),
 * ctx is done or an application quit event arrives. The model turns a
 * little every frame and pending reloads are applied between frames.
 */
func (e *Engine) RunViewer(ctx context.Context, frames int) (ViewerStats, error) {
	if err := e.enter(EngineStageViewing); err != nil {
		return ViewerStats{}, err
	}
	defer e.leave()

	scheduler := e.scheduler
	if scheduler == nil {
		ticker := benchmark.NewFrameTicker(e.config.Benchmark.TargetFPS)
		defer ticker.Stop()
		scheduler = ticker
	}

	e.metrics.Reset()
	clock := core.NewClockWithSource(e.now)
	stats := ViewerStats{}
	for frames <= 0 || stats.Frames < frames {
		if e.quit.Load() || e.Stage() != EngineStageViewing {
			break
		}
		e.applyReloads()

		clock.Start()
		if m := e.Model(); m != nil {
			m.Root.Transform.Rotate(math.NewVec3(0, viewerRotationStep, 0))
		}
		e.renderer.Render(e.scene, e.camera)
		clock.Update()
		e.metrics.Update(float64(clock.Elapsed()) / float64(time.Millisecond))
		stats.Frames++

		if err := scheduler.WaitFrame(ctx); err != nil {
			break
		}
	}
	stats.FPS, stats.FrameTimeMs = e.metrics.Frame()
	core.LogDebug("viewer stopped after %d frames", stats.Frames)
	return stats, nil
}

func (e *Engine) applyReloads() {
	for {
		select {
		case path := <-e.reloads:
			core.LogInfo("'%s' changed, reloading", filepath.Base(path))
			if _, err := e.LoadModel(path); err != nil {
				core.LogWarn("reload of '%s' failed: %s", path, err.Error())
			}
		default:
			return
		}
	}
}

/**
 * @brief Runs one benchmark session and appends its result to the history.
 * A session stopped early is still recorded.
 */
func (e *Engine) RunBenchmark(ctx context.Context, tier string, duration time.Duration) (*benchmark.BenchmarkResult, error) {
	if err := e.enter(EngineStageBenchmarking); err != nil {
		return nil, err
	}
	defer e.leave()

	if tier == "" {
		tier = e.config.Benchmark.Tier
	}
	if duration <= 0 {
		duration = e.config.BenchmarkDuration()
	}
	result, err := e.controller.Start(ctx, tier, duration)
	if err != nil {
		return nil, err
	}
	e.history.Append(result)
	return result, nil
}

// Snapshot writes the last rendered frame as PNG.
func (e *Engine) Snapshot(w io.Writer) error {
	return e.renderer.Snapshot(w)
}

// Quit ends the running loop at its next frame.
func (e *Engine) Quit() {
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.currentStage == EngineStageShuttingDown {
		e.mu.Unlock()
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	model := e.model
	e.model = nil
	e.mu.Unlock()

	e.controller.Stop()
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(e.assetManager.Shutdown())
	keep(e.jobs.Shutdown())
	if model != nil {
		e.scene.Remove(model.Root)
		model.Dispose()
	}
	e.geometries.Shutdown()
	keep(e.renderer.Shutdown())
	e.events.Shutdown()
	return errors.Wrap(firstErr, "engine shutdown")
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, stopping.")
		e.quit.Store(true)
		e.controller.Stop()
		return true
	}
	return false
}

// onModelChanged runs on the watcher goroutine, so the reload is queued for the loop.
func (e *Engine) onModelChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	path := data.Data.C[0]
	e.mu.Lock()
	current := e.modelPath
	e.mu.Unlock()
	if current == "" || filepath.Clean(path) != filepath.Clean(current) {
		return false
	}
	select {
	case e.reloads <- path:
	default:
	}
	return false
}
