package benchmark

import (
	"context"
	"time"
)

// Scheduler suspends the sampling loop until the next frame opportunity.
type Scheduler interface {
	WaitFrame(ctx context.Context) error
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(ctx context.Context) error

func (f SchedulerFunc) WaitFrame(ctx context.Context) error {
	return f(ctx)
}

// FrameTicker paces frames to a target refresh rate. Missed ticks are dropped, never queued.
type FrameTicker struct {
	ticker *time.Ticker
}

func NewFrameTicker(fps int) *FrameTicker {
	if fps <= 0 {
		fps = 60
	}
	interval := time.Second / time.Duration(fps)
	// Rates above 1 GHz round to zero, which time.NewTicker rejects.
	if interval < time.Nanosecond {
		interval = time.Nanosecond
	}
	return &FrameTicker{ticker: time.NewTicker(interval)}
}

func (f *FrameTicker) WaitFrame(ctx context.Context) error {
	select {
	case <-f.ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FrameTicker) Stop() {
	f.ticker.Stop()
}
