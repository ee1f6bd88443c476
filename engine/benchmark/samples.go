package benchmark

/** @brief One frame's measurement. */
type MetricSample struct {
	FPS             float64
	FrameTimeMs     float64
	LiveObjectCount int
	TriangleCount   int
	// MemoryMB is nil when memory sampling is unavailable or disabled.
	MemoryMB *float64
}

// Dimension names a measured MetricSample field.
type Dimension string

const (
	DimensionFPS       Dimension = "fps"
	DimensionFrameTime Dimension = "frameTime"
	DimensionObjects   Dimension = "objects"
	DimensionTriangles Dimension = "triangles"
	DimensionMemory    Dimension = "memory"
)

// Dimensions lists every dimension in report order.
var Dimensions = []Dimension{DimensionFPS, DimensionFrameTime, DimensionObjects, DimensionTriangles, DimensionMemory}

// SampleBuffer is an append only, capture ordered series of samples. Not safe for concurrent use.
type SampleBuffer struct {
	samples []MetricSample
}

func NewSampleBuffer() *SampleBuffer {
	return &SampleBuffer{}
}

func (b *SampleBuffer) Record(sample MetricSample) {
	b.samples = append(b.samples, sample)
}

func (b *SampleBuffer) Clear() {
	b.samples = b.samples[:0]
}

func (b *SampleBuffer) Len() int {
	return len(b.samples)
}

// RecentWindow returns a copy of the last min(n, Len) samples, oldest first.
func (b *SampleBuffer) RecentWindow(n int) []MetricSample {
	if n <= 0 || len(b.samples) == 0 {
		return []MetricSample{}
	}
	if n > len(b.samples) {
		n = len(b.samples)
	}
	out := make([]MetricSample, n)
	copy(out, b.samples[len(b.samples)-n:])
	return out
}

// Series extracts one dimension. Samples without a memory reading are skipped for DimensionMemory.
func (b *SampleBuffer) Series(d Dimension) []float64 {
	out := make([]float64, 0, len(b.samples))
	for _, s := range b.samples {
		switch d {
		case DimensionFPS:
			out = append(out, s.FPS)
		case DimensionFrameTime:
			out = append(out, s.FrameTimeMs)
		case DimensionObjects:
			out = append(out, float64(s.LiveObjectCount))
		case DimensionTriangles:
			out = append(out, float64(s.TriangleCount))
		case DimensionMemory:
			if s.MemoryMB != nil {
				out = append(out, *s.MemoryMB)
			}
		}
	}
	return out
}
