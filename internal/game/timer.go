package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TimerSerial is the wire form of the phase timer, embedded in every
// snapshot. Start and End are absolute wall-clock instants so every device
// derives the same deadline regardless of when the broadcast arrives. End
// already has the propagation grace subtracted by the serializing host.
type TimerSerial struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Enabled bool      `json:"enabled"`
}

// Remaining returns how long until the serialized deadline, floored at zero.
func (ts TimerSerial) Remaining(now time.Time) time.Duration {
	if !ts.Enabled || ts.End.IsZero() || !ts.End.After(now) {
		return 0
	}
	return ts.End.Sub(now)
}

// Timer is the one-shot phase countdown. The host arms it with Countdown and
// serializes the deadline into the snapshot; clients re-arm from the serial
// on every broadcast. Re-arming always replaces the pending callback so
// repeated broadcasts during one phase cannot double-fire.
type Timer struct {
	clock clockwork.Clock
	grace time.Duration

	mu      sync.Mutex
	enabled bool
	start   time.Time
	end     time.Time
	pending clockwork.Timer
}

// NewTimer builds a timer on the given clock. grace is subtracted from the
// serialized end to absorb store-propagation latency; the local callback
// still fires at the real end.
func NewTimer(clock clockwork.Clock, grace time.Duration) *Timer {
	return &Timer{clock: clock, grace: grace, enabled: true}
}

// SetEnabled toggles the timer. Disabling also cancels any pending fire.
func (t *Timer) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if !enabled {
		t.unsetLocked()
	}
}

// Countdown arms the callback delay+duration from now and returns the serial
// to embed in the broadcast snapshot. A disabled timer arms nothing.
func (t *Timer) Countdown(duration, delay time.Duration, fn func()) TimerSerial {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return TimerSerial{Enabled: false}
	}
	t.stopPendingLocked()
	now := t.clock.Now()
	t.start = now.Add(delay)
	t.end = now.Add(delay + duration)
	t.pending = t.clock.AfterFunc(delay+duration, fn)
	return t.serialLocked()
}

// SetFromSerial replaces the timer state with a broadcast deadline and arms
// the callback if the deadline is still in the future.
func (t *Timer) SetFromSerial(s TimerSerial, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopPendingLocked()
	t.start = s.Start
	t.end = s.End
	t.enabled = s.Enabled
	now := t.clock.Now()
	if t.enabled && t.end.After(now) {
		t.pending = t.clock.AfterFunc(t.end.Sub(now), fn)
	}
}

// Unset cancels any pending fire and clears the deadline.
func (t *Timer) Unset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unsetLocked()
}

// Serial returns the current wire form without re-arming anything.
func (t *Timer) Serial() TimerSerial {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serialLocked()
}

func (t *Timer) serialLocked() TimerSerial {
	if t.end.IsZero() {
		return TimerSerial{Enabled: t.enabled}
	}
	return TimerSerial{
		Start:   t.start,
		End:     t.end.Add(-t.grace),
		Enabled: t.enabled,
	}
}

func (t *Timer) stopPendingLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) unsetLocked() {
	t.stopPendingLocked()
	t.start = time.Time{}
	t.end = time.Time{}
}
