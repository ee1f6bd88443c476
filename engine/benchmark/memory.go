package benchmark

import (
	"runtime/metrics"
)

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// MemoryProbe reports the memory in use in megabytes, or false when unavailable.
type MemoryProbe interface {
	MemoryMB() (float64, bool)
}

// RuntimeMemoryProbe reads the live heap size from the Go runtime.
type RuntimeMemoryProbe struct {
	samples []metrics.Sample
}

func NewRuntimeMemoryProbe() *RuntimeMemoryProbe {
	return &RuntimeMemoryProbe{samples: []metrics.Sample{{Name: heapObjectsMetric}}}
}

func (p *RuntimeMemoryProbe) MemoryMB() (float64, bool) {
	metrics.Read(p.samples)
	v := p.samples[0].Value
	if v.Kind() != metrics.KindUint64 {
		return 0, false
	}
	return float64(v.Uint64()) / 1024 / 1024, true
}
