package core

import (
	"github.com/spaghettifunk/prism/engine/containers"
)

const AVG_COUNT int = 30

// FrameMetrics keeps a rolling frame time average and a once-per-second fps counter.
type FrameMetrics struct {
	frameTimes         *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Update records one frame. frameMS is the frame duration in milliseconds.
func (m *FrameMetrics) Update(frameMS float64) {
	m.frameTimes.Push(frameMS)
	sum := 0.0
	for _, v := range m.frameTimes.Items() {
		sum += v
	}
	m.msAvg = sum / float64(m.frameTimes.Len())

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	m.frames++
	if m.accumulatedFrameMS >= 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

func (m *FrameMetrics) FrameTime() float64 {
	return m.msAvg
}

func (m *FrameMetrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}

func (m *FrameMetrics) Reset() {
	*m = *NewFrameMetrics()
}
