package benchmark

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

const (
	particleCount  = 1000
	particleExtent = 20
	particleSize   = 0.1
	particleAlpha  = 0.8
)

// Objects are scattered uniformly in a box of this size centred on the origin.
var spread = math.NewVec3(15, 10, 15)

/** @brief A generated scene participant owned by one session. */
type SyntheticObject struct {
	// Shape is meaningless for the particle cloud.
	Shape     systems.ShapeKind
	Particles bool
	// Node is a *scene.Mesh, or *scene.Points for the particle cloud.
	Node      scene.Node
	Animation Animation
}

func (o *SyntheticObject) Material() *scene.Material {
	switch n := o.Node.(type) {
	case *scene.Mesh:
		return n.Material
	case *scene.Points:
		return n.Material
	}
	return nil
}

func (o *SyntheticObject) Geometry() *scene.Geometry {
	switch n := o.Node.(type) {
	case *scene.Mesh:
		return n.Geometry
	case *scene.Points:
		return n.Geometry
	}
	return nil
}

/**
 * @brief The population of one session. Mesh geometries are shared through
 * the geometry system; Release hands them back and disposes every material
 * and the particle geometry.
 */
type Workload struct {
	Config  BenchmarkConfig
	Objects []*SyntheticObject

	geometries *systems.GeometrySystem
	released   bool
}

func (w *Workload) Release() {
	if w == nil || w.released {
		return
	}
	w.released = true
	for _, obj := range w.Objects {
		if m := obj.Material(); m != nil {
			m.Dispose()
		}
		g := obj.Geometry()
		if g == nil {
			continue
		}
		if obj.Particles {
			g.Dispose()
			continue
		}
		if err := w.geometries.Release(g); err != nil {
			core.LogWarn("failed to release workload geometry: %s", err.Error())
		}
	}
}

type Generator struct {
	rng        *math.Random
	geometries *systems.GeometrySystem
}

func NewGenerator(rng *math.Random, geometries *systems.GeometrySystem) *Generator {
	if rng == nil {
		rng = math.NewRandom(0)
	}
	return &Generator{rng: rng, geometries: geometries}
}

// Generate builds the workload of a named tier.
func (g *Generator) Generate(tierName string) (*Workload, error) {
	cfg, err := LookupConfig(tierName)
	if err != nil {
		return nil, err
	}
	return g.GenerateConfig(cfg)
}

/**
 * @brief Builds ObjectCount objects at the config's complexity. The high
 * complexity additionally gets one particle cloud, so it yields
 * ObjectCount+1 objects.
 */
func (g *Generator) GenerateConfig(cfg BenchmarkConfig) (*Workload, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g.geometries == nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "generator needs a geometry system")
	}
	shapes := tierShapes[cfg.Complexity]

	w := &Workload{
		Config:     cfg,
		Objects:    make([]*SyntheticObject, 0, cfg.ObjectCount+1),
		geometries: g.geometries,
	}
	for i := 0; i < cfg.ObjectCount; i++ {
		obj, err := g.generateObject(cfg.Complexity, shapes)
		if err != nil {
			w.Release()
			return nil, err
		}
		w.Objects = append(w.Objects, obj)
	}
	if cfg.Complexity == ComplexityHigh {
		w.Objects = append(w.Objects, g.particleCloud())
	}
	core.LogDebug("generated %d objects for tier '%s'", len(w.Objects), cfg.Name)
	return w, nil
}

func (g *Generator) generateObject(complexity Complexity, shapes []systems.GeometryConfig) (*SyntheticObject, error) {
	shape := shapes[g.rng.Intn(len(shapes))]
	geometry, err := g.geometries.Acquire(shape, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to acquire %s geometry", shape.Kind)
	}

	colour := math.NewColourFromHSL(g.rng.Float32(), 0.8, 0.6)
	var material *scene.Material
	switch complexity {
	case ComplexityLow:
		material = scene.NewBasicMaterial(colour)
	case ComplexityMedium:
		material = scene.NewLambertMaterial(colour)
	case ComplexityHigh:
		material = scene.NewPhongMaterial(colour, 0x666666, 30)
		material.Transparent = g.rng.Float32() > 0.7
		material.Opacity = g.rng.InRange(0.5, 1.0)
	}

	mesh := scene.NewMesh(geometry, material)
	mesh.Name = shape.Kind.String()
	if complexity != ComplexityLow {
		mesh.CastShadow = true
		mesh.ReceiveShadow = true
	}
	g.positionRandomly(mesh.Base())

	obj := &SyntheticObject{Shape: shape.Kind, Node: mesh}
	switch complexity {
	case ComplexityMedium:
		obj.Animation = Rotate{Speed: g.rotationSpeed()}
	case ComplexityHigh:
		obj.Animation = RotateAndMove{
			Speed: g.rotationSpeed(),
			Movement: Movement{
				Amplitude:   g.rng.InRange(1, 3),
				FrequencyHz: g.rng.InRange(0.01, 0.03),
				Phase:       g.rng.Float32() * math.K_PI_2,
			},
		}
	}
	return obj, nil
}

func (g *Generator) positionRandomly(o *scene.Object3D) {
	position := math.NewVec3(g.rng.Centered(spread.X), g.rng.Centered(spread.Y), g.rng.Centered(spread.Z))
	rotation := math.NewVec3(
		g.rng.Float32()*math.K_PI_2,
		g.rng.Float32()*math.K_PI_2,
		g.rng.Float32()*math.K_PI_2,
	)
	scale := g.rng.InRange(0.2, 1.0)
	o.Transform.SetPositionRotationScale(position, rotation, math.NewVec3Scalar(scale))
}

func (g *Generator) rotationSpeed() math.Vec3 {
	return math.NewVec3(g.rng.Centered(0.02), g.rng.Centered(0.02), g.rng.Centered(0.02))
}

func (g *Generator) particleCloud() *SyntheticObject {
	geometry := systems.GeneratePointCloud(g.rng, particleCount, particleExtent)
	points := scene.NewPoints(geometry, scene.NewPointsMaterial(particleSize, particleAlpha, true))
	points.Name = "particles"
	return &SyntheticObject{Particles: true, Node: points}
}
