package math

import (
	"time"

	"golang.org/x/exp/rand"
)

// Random is a seeded pseudo random source. It is not safe for concurrent use.
type Random struct {
	r *rand.Rand
}

// NewRandom returns a generator for the given seed. A zero seed picks one from the clock.
func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{r: rand.New(rand.NewSource(seed))}
}

// Float32 returns a value in [0, 1).
func (r *Random) Float32() float32 {
	return r.r.Float32()
}

// Float64 returns a value in [0, 1).
func (r *Random) Float64() float64 {
	return r.r.Float64()
}

// InRange returns a value in [min, max).
func (r *Random) InRange(min, max float32) float32 {
	return min + r.r.Float32()*(max-min)
}

// Centered returns a value in [-extent/2, extent/2).
func (r *Random) Centered(extent float32) float32 {
	return (r.r.Float32() - 0.5) * extent
}

// Intn returns a value in [0, n).
func (r *Random) Intn(n int) int {
	return r.r.Intn(n)
}
