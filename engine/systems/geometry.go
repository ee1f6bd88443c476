package systems

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/scene"
)

var (
	ErrGeometrySystemFull = errors.New("unable to obtain free slot for geometry")
	ErrUnknownGeometry    = errors.New("geometry is not registered")
)

/** @brief The geometry system configuration. */
type GeometrySystemConfig struct {
	/**
	 * @brief The maximum number of distinct geometries that can be loaded at once.
	 * NOTE: Should be significantly greater than the number of static meshes.
	 */
	MaxGeometryCount uint32
}

type geometryReference struct {
	key            string
	referenceCount uint32
	autoRelease    bool
	geometry       *scene.Geometry
}

/**
 * @brief Shares procedural geometries between meshes. Geometries are keyed
 * by their config, so acquiring the same shape twice hands back the same
 * vertex data and only bumps the reference count.
 */
type GeometrySystem struct {
	Config *GeometrySystemConfig

	mu              sync.Mutex
	registered      map[string]*geometryReference
	byGeometry      map[*scene.Geometry]*geometryReference
	defaultGeometry *scene.Geometry
}

/**
 * @brief Initializes the geometry system.
 *
 * @param config The configuration for this system.
 * @return The system, or an error if the configuration is invalid.
 */
func NewGeometrySystem(config *GeometrySystemConfig) (*GeometrySystem, error) {
	if config == nil || config.MaxGeometryCount == 0 {
		err := errors.Wrap(core.ErrInvalidConfig, "func NewGeometrySystem - config.MaxGeometryCount must be > 0")
		core.LogWarn(err.Error())
		return nil, err
	}
	gs := &GeometrySystem{
		Config:     config,
		registered: make(map[string]*geometryReference),
		byGeometry: make(map[*scene.Geometry]*geometryReference),
	}
	if err := gs.createDefaultGeometries(); err != nil {
		core.LogError("failed to create default geometries. Application cannot continue")
		return nil, err
	}
	return gs, nil
}

func (gs *GeometrySystem) createDefaultGeometries() error {
	g, err := BuildGeometry(GenerateBoxConfig(1, 1, 1))
	if err != nil {
		return err
	}
	g.Name = "default"
	gs.defaultGeometry = g
	return nil
}

/**
 * @brief Registers and acquires a geometry using the given config. When one
 * built from an equal config is already loaded it is returned instead.
 *
 * @param config The geometry configuration.
 * @param autoRelease Indicates if the geometry should be disposed when its reference count reaches 0.
 */
func (gs *GeometrySystem) Acquire(config GeometryConfig, autoRelease bool) (*scene.Geometry, error) {
	key := config.Key()

	gs.mu.Lock()
	defer gs.mu.Unlock()

	if ref, ok := gs.registered[key]; ok {
		ref.referenceCount++
		return ref.geometry, nil
	}
	if uint32(len(gs.registered)) >= gs.Config.MaxGeometryCount {
		err := errors.Wrapf(ErrGeometrySystemFull, "max %d, adjust configuration to allow more space", gs.Config.MaxGeometryCount)
		core.LogError(err.Error())
		return nil, err
	}

	g, err := BuildGeometry(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create geometry")
	}
	ref := &geometryReference{
		key:            key,
		referenceCount: 1,
		autoRelease:    autoRelease,
		geometry:       g,
	}
	gs.registered[key] = ref
	gs.byGeometry[g] = ref
	return g, nil
}

/**
 * @brief Releases a reference to the provided geometry. Auto released
 * geometries are disposed and unregistered when the count reaches 0.
 */
func (gs *GeometrySystem) Release(geometry *scene.Geometry) error {
	if geometry == nil {
		return ErrUnknownGeometry
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	ref, ok := gs.byGeometry[geometry]
	if !ok {
		core.LogWarn("geometry system cannot release unregistered geometry '%s'. Nothing was done.", geometry.Name)
		return ErrUnknownGeometry
	}
	if ref.referenceCount > 0 {
		ref.referenceCount--
	}
	if ref.referenceCount < 1 && ref.autoRelease {
		ref.geometry.Dispose()
		delete(gs.registered, ref.key)
		delete(gs.byGeometry, ref.geometry)
	}
	return nil
}

// ReferenceCount reports how many holders a geometry currently has.
func (gs *GeometrySystem) ReferenceCount(geometry *scene.Geometry) uint32 {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if ref, ok := gs.byGeometry[geometry]; ok {
		return ref.referenceCount
	}
	return 0
}

// Count returns the number of distinct geometries currently registered.
func (gs *GeometrySystem) Count() int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return len(gs.registered)
}

/**
 * @brief Obtains a pointer to the default geometry.
 */
func (gs *GeometrySystem) GetDefault() *scene.Geometry {
	return gs.defaultGeometry
}

/**
 * @brief Shuts down the geometry system, disposing everything still registered.
 */
func (gs *GeometrySystem) Shutdown() {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	for _, ref := range gs.registered {
		ref.geometry.Dispose()
	}
	gs.registered = make(map[string]*geometryReference)
	gs.byGeometry = make(map[*scene.Geometry]*geometryReference)
}
