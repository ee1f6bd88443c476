package core

import "time"

// TimeSource returns the current time. Swappable so sessions can be driven by a fake clock.
type TimeSource func() time.Time

type Clock struct {
	now       TimeSource
	startTime time.Time
	elapsed   time.Duration
	running   bool
}

func NewClock() *Clock {
	return NewClockWithSource(time.Now)
}

func NewClockWithSource(now TimeSource) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = c.now().Sub(c.startTime)
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = c.now()
	c.elapsed = 0
	c.running = true
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}

// Now exposes the underlying time source.
func (c *Clock) Now() time.Time {
	return c.now()
}

// Since measures the time passed since t using the clock's source.
func (c *Clock) Since(t time.Time) time.Duration {
	return c.now().Sub(t)
}
