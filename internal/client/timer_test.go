package client

import (
	"testing"
	"time"

	"github.com/udisondev/gomokugo/internal/protocol"
)

func TestAdoptRunningTimer(t *testing.T) {
	// Server anchored the turn 4s before we received the message.
	recv := time.Now()
	epoch := protocol.Epoch(recv.Add(-4 * time.Second))

	var c TurnClock
	c.Adopt(protocol.TimerState{
		TurnStartEpoch: &epoch,
		MoveTimeLimit:  30,
	}, recv)

	if c.Paused() {
		t.Fatal("clock should be running")
	}
	got := c.Remaining(recv)
	want := 26 * time.Second
	if diff := got - want; diff < -50*time.Millisecond || diff > 50*time.Millisecond {
		t.Errorf("Remaining = %v, want ~%v", got, want)
	}
}

func TestAdoptPausedTimer(t *testing.T) {
	var c TurnClock
	c.Adopt(protocol.TimerState{
		TurnStartEpoch:     nil,
		ElapsedBeforePause: 7.5,
		MoveTimeLimit:      30,
	}, time.Now())

	if !c.Paused() {
		t.Fatal("clock should be frozen")
	}
	// Frozen means the countdown ignores wall time.
	later := time.Now().Add(time.Hour)
	if got := c.Remaining(later); got != 22500*time.Millisecond {
		t.Errorf("Remaining = %v, want 22.5s", got)
	}
}

func TestAdoptFutureEpochClamped(t *testing.T) {
	// Clock skew can put the server's anchor slightly ahead of us; elapsed
	// must never go negative.
	recv := time.Now()
	epoch := protocol.Epoch(recv.Add(2 * time.Second))

	var c TurnClock
	c.Adopt(protocol.TimerState{TurnStartEpoch: &epoch, MoveTimeLimit: 30}, recv)

	if got := c.Elapsed(recv); got != 0 {
		t.Errorf("Elapsed = %v, want 0", got)
	}
}

func TestResumeRebase(t *testing.T) {
	now := time.Now()
	epoch := protocol.Epoch(now)

	var c TurnClock
	c.Adopt(protocol.TimerState{TurnStartEpoch: &epoch, MoveTimeLimit: 30}, now)
	c.Pause(now.Add(10 * time.Second))

	resumeAt := now.Add(20 * time.Second)
	c.Resume(22500*time.Millisecond, resumeAt)

	if c.Paused() {
		t.Fatal("clock should be running after resume")
	}
	if got := c.Remaining(resumeAt); got != 22500*time.Millisecond {
		t.Errorf("Remaining = %v, want 22.5s", got)
	}
}

func TestResumeClamps(t *testing.T) {
	now := time.Now()
	epoch := protocol.Epoch(now)

	var c TurnClock
	c.Adopt(protocol.TimerState{TurnStartEpoch: &epoch, MoveTimeLimit: 30}, now)

	c.Resume(5*time.Minute, now)
	if got := c.Remaining(now); got != 30*time.Second {
		t.Errorf("Remaining = %v, want full budget", got)
	}

	c.Resume(-time.Second, now)
	if got := c.Remaining(now); got != 0 {
		t.Errorf("Remaining = %v, want 0", got)
	}
}

func TestRemainingFloorsAtZero(t *testing.T) {
	recv := time.Now()
	epoch := protocol.Epoch(recv.Add(-time.Minute))

	var c TurnClock
	c.Adopt(protocol.TimerState{TurnStartEpoch: &epoch, MoveTimeLimit: 30}, recv)

	if got := c.Remaining(recv); got != 0 {
		t.Errorf("Remaining = %v, want 0 on overrun", got)
	}
}
