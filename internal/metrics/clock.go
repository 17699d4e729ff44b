package metrics

import "time"

// FrameClock estimates frames per second from the wall-clock gap between
// consecutive ticks.
type FrameClock struct {
	now  func() time.Time
	last time.Time
	fps  float64
}

func NewFrameClock(now func() time.Time) *FrameClock {
	if now == nil {
		now = time.Now
	}
	return &FrameClock{now: now}
}

// Tick records a frame and returns the current estimate. The first tick, and
// any tick with no measurable gap, leaves the estimate unchanged.
func (c *FrameClock) Tick() float64 {
	t := c.now()
	if !c.last.IsZero() {
		if gap := t.Sub(c.last); gap > 0 {
			c.fps = 1.0 / gap.Seconds()
		}
	}
	c.last = t
	return c.fps
}

func (c *FrameClock) FPS() float64 { return c.fps }

func (c *FrameClock) Reset() {
	c.last = time.Time{}
	c.fps = 0
}
