package benchmark

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/systems"
)

type TierName string

const (
	TierBasic  TierName = "basic"
	TierMedium TierName = "medium"
	TierStress TierName = "stress"
)

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

/** @brief Identifies a workload: how many objects and how heavy each one is. */
type BenchmarkConfig struct {
	Name        TierName
	ObjectCount int
	Complexity  Complexity
}

func (c BenchmarkConfig) Validate() error {
	if c.ObjectCount <= 0 {
		return errors.Wrapf(ErrInvalidTier, "tier '%s' object count must be > 0", c.Name)
	}
	if _, ok := tierShapes[c.Complexity]; !ok {
		return errors.Wrapf(ErrInvalidTier, "tier '%s' has unknown complexity '%s'", c.Name, c.Complexity)
	}
	return nil
}

var tiers = map[TierName]BenchmarkConfig{
	TierBasic:  {Name: TierBasic, ObjectCount: 50, Complexity: ComplexityLow},
	TierMedium: {Name: TierMedium, ObjectCount: 200, Complexity: ComplexityMedium},
	TierStress: {Name: TierStress, ObjectCount: 500, Complexity: ComplexityHigh},
}

var tierShapes = map[Complexity][]systems.GeometryConfig{
	ComplexityLow: {
		systems.GenerateBoxConfig(0.5, 0.5, 0.5),
		systems.GenerateSphereConfig(0.3, 8, 6),
		systems.GenerateCylinderConfig(0.2, 0.2, 0.8, 8),
	},
	ComplexityMedium: {
		systems.GenerateBoxConfig(0.5, 0.5, 0.5),
		systems.GenerateSphereConfig(0.3, 16, 12),
		systems.GenerateCylinderConfig(0.2, 0.2, 0.8, 16),
		systems.GenerateTorusConfig(0.3, 0.1, 8, 16),
	},
	ComplexityHigh: {
		systems.GenerateSphereConfig(0.3, 32, 24),
		systems.GenerateTorusKnotConfig(0.3, 0.1, 64, 16),
		systems.GenerateDodecahedronConfig(0.4),
		systems.GenerateIcosahedronConfig(0.4, 2),
	},
}

// LookupConfig returns the fixed configuration of a tier.
func LookupConfig(name string) (BenchmarkConfig, error) {
	cfg, ok := tiers[TierName(name)]
	if !ok {
		return BenchmarkConfig{}, errors.Wrapf(ErrUnknownTier, "'%s'", name)
	}
	return cfg, nil
}

// Tiers lists the configured tiers, lightest first.
func Tiers() []BenchmarkConfig {
	out := make([]BenchmarkConfig, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectCount < out[j].ObjectCount })
	return out
}
