package client

import (
	"time"

	"github.com/udisondev/gomokugo/internal/protocol"
)

// TurnClock is the client-side mirror of the server's move timer. The
// server owns the anchor; the client adopts it from every timer-bearing
// message and derives the visible countdown locally.
type TurnClock struct {
	turnStart          time.Time // zero while paused
	elapsedBeforePause time.Duration
	limit              time.Duration
}

// Adopt rebases the clock from a server timer_state received at recv.
// Elapsed turn time is computed against the server's epoch so the local
// countdown agrees with the server within one-way network delay.
func (c *TurnClock) Adopt(ts protocol.TimerState, recv time.Time) {
	c.limit = time.Duration(ts.MoveTimeLimit * float64(time.Second))
	c.elapsedBeforePause = time.Duration(ts.ElapsedBeforePause * float64(time.Second))

	if ts.TurnStartEpoch == nil {
		c.turnStart = time.Time{}
		return
	}

	alreadyElapsed := recv.Sub(time.Unix(0, int64(*ts.TurnStartEpoch*float64(time.Second))))
	if alreadyElapsed < 0 {
		alreadyElapsed = 0
	}
	c.turnStart = recv.Add(-alreadyElapsed)
}

// Resume rebases after a pause ends with remaining budget on the clock.
func (c *TurnClock) Resume(remaining time.Duration, now time.Time) {
	if remaining < 0 {
		remaining = 0
	}
	if remaining > c.limit {
		remaining = c.limit
	}
	c.elapsedBeforePause = c.limit - remaining
	c.turnStart = now
}

// Pause freezes the clock at its current elapsed value.
func (c *TurnClock) Pause(now time.Time) {
	c.elapsedBeforePause = c.Elapsed(now)
	c.turnStart = time.Time{}
}

// Elapsed returns total turn time consumed as of now.
func (c *TurnClock) Elapsed(now time.Time) time.Duration {
	if c.turnStart.IsZero() {
		return c.elapsedBeforePause
	}
	return c.elapsedBeforePause + now.Sub(c.turnStart)
}

// Remaining returns the countdown value to display, floored at zero.
func (c *TurnClock) Remaining(now time.Time) time.Duration {
	left := c.limit - c.Elapsed(now)
	if left < 0 {
		return 0
	}
	return left
}

// Paused reports whether the clock is currently frozen.
func (c *TurnClock) Paused() bool {
	return c.turnStart.IsZero()
}

// Limit returns the per-move budget.
func (c *TurnClock) Limit() time.Duration {
	return c.limit
}
