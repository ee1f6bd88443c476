package benchmark

import (
	"time"
)

/** @brief The immutable outcome of one completed session. */
type BenchmarkResult struct {
	ID          string                       `json:"id"`
	TestType    TierName                     `json:"testType"`
	Timestamp   time.Time                    `json:"timestamp"`
	Duration    time.Duration                `json:"duration"`
	SampleCount int                          `json:"sampleCount"`
	Stopped     bool                         `json:"stopped"`
	Metrics     map[Dimension]AggregatedStat `json:"metrics"`
	Score       int                          `json:"score"`
	Grade       Grade                        `json:"grade"`
}

// StabilityPercent is (1 - std/avg)*100 of the frame time, or false without frame time data.
func (r *BenchmarkResult) StabilityPercent() (float64, bool) {
	ft, ok := r.Metrics[DimensionFrameTime]
	if !ok {
		return 0, false
	}
	s, ok := Stability(ft)
	return s * 100, ok
}

/** @brief Live view over the most recent samples. */
type Performance struct {
	FPS           float64
	FrameTimeMs   float64
	ObjectCount   int
	TriangleCount int
}
