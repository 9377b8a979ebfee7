package session

import (
	"errors"
	"fmt"
)

var ErrInvalidDuration = errors.New("duration must be positive")

// Clock counts one phase down in whole seconds. It does not own a timer; the
// host calls Tick once per second.
type Clock struct {
	duration  int
	remaining int
	running   bool
	paused    bool
	completed bool
}

// Start arms the clock for durationSeconds. Non-positive durations are
// rejected, never clamped.
func (c *Clock) Start(durationSeconds int) error {
	if durationSeconds <= 0 {
		return fmt.Errorf("start clock with %d seconds: %w", durationSeconds, ErrInvalidDuration)
	}
	c.duration = durationSeconds
	c.remaining = durationSeconds
	c.running = true
	c.paused = false
	c.completed = false
	return nil
}

// Tick advances one second and reports whether this tick completed the
// phase. The paused flag is checked first so a tick that was already in
// flight when Pause ran is a no-op.
func (c *Clock) Tick() bool {
	if c.paused || !c.running || c.completed {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.completed = true
		return true
	}
	return false
}

func (c *Clock) Pause() {
	if c.running {
		c.paused = true
	}
}

func (c *Clock) Resume() {
	c.paused = false
}

// Stop disarms the clock and returns the seconds consumed so far. A second
// Stop returns 0 so elapsed time is never reported twice.
func (c *Clock) Stop() int {
	elapsed := c.Elapsed()
	c.duration = 0
	c.remaining = 0
	c.running = false
	c.paused = false
	c.completed = false
	return elapsed
}

func (c *Clock) Elapsed() int { return c.duration - c.remaining }

func (c *Clock) Remaining() int { return c.remaining }

func (c *Clock) Duration() int { return c.duration }

func (c *Clock) Paused() bool { return c.paused }

func (c *Clock) Running() bool { return c.running }

// Completed reports whether the current phase already signalled completion.
func (c *Clock) Completed() bool { return c.completed }
