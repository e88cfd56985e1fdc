package game

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFired(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func assertNotFired(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
		t.Fatal("timer fired early")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestCountdownFiresAtDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, 3*time.Second)
	fired := make(chan struct{})

	start := clock.Now()
	serial := timer.Countdown(35*time.Second, 0, func() { close(fired) })

	require.True(t, serial.Enabled)
	assert.Equal(t, start, serial.Start)
	assert.Equal(t, start.Add(35*time.Second-3*time.Second), serial.End, "serialized end absorbs the grace offset")

	clock.Advance(34 * time.Second)
	assertNotFired(t, fired)

	// The local callback still fires at the real deadline, not the
	// grace-adjusted one.
	clock.Advance(time.Second)
	waitFired(t, fired)
}

func TestCountdownStartDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, 0)
	fired := make(chan struct{})

	start := clock.Now()
	serial := timer.Countdown(10*time.Second, 2*time.Second, func() { close(fired) })

	assert.Equal(t, start.Add(2*time.Second), serial.Start)
	assert.Equal(t, start.Add(12*time.Second), serial.End)

	clock.Advance(11 * time.Second)
	assertNotFired(t, fired)
	clock.Advance(time.Second)
	waitFired(t, fired)
}

func TestSetFromSerialReplacesPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, 0)
	first := make(chan struct{})
	second := make(chan struct{})

	timer.Countdown(5*time.Second, 0, func() { close(first) })
	timer.SetFromSerial(TimerSerial{
		Start:   clock.Now(),
		End:     clock.Now().Add(10 * time.Second),
		Enabled: true,
	}, func() { close(second) })

	// The original callback was replaced; only the re-armed one may fire.
	clock.Advance(6 * time.Second)
	assertNotFired(t, first)
	assertNotFired(t, second)

	clock.Advance(4 * time.Second)
	waitFired(t, second)
	assertNotFired(t, first)
}

func TestSetFromSerialPastDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, 0)
	fired := make(chan struct{})

	timer.SetFromSerial(TimerSerial{
		Start:   clock.Now().Add(-time.Minute),
		End:     clock.Now().Add(-30 * time.Second),
		Enabled: true,
	}, func() { close(fired) })

	clock.Advance(time.Hour)
	assertNotFired(t, fired)
}

func TestDisabledTimerArmsNothing(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, 0)
	timer.SetEnabled(false)
	fired := make(chan struct{})

	serial := timer.Countdown(5*time.Second, 0, func() { close(fired) })
	assert.False(t, serial.Enabled)

	clock.Advance(time.Minute)
	assertNotFired(t, fired)
}

func TestUnsetCancelsPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, 0)
	fired := make(chan struct{})

	timer.Countdown(5*time.Second, 0, func() { close(fired) })
	timer.Unset()

	clock.Advance(time.Minute)
	assertNotFired(t, fired)
	assert.True(t, timer.Serial().End.IsZero())
}

func TestTimerSerialRemaining(t *testing.T) {
	now := time.Now()
	serial := TimerSerial{Start: now, End: now.Add(20 * time.Second), Enabled: true}

	assert.Equal(t, 20*time.Second, serial.Remaining(now))
	assert.Equal(t, 5*time.Second, serial.Remaining(now.Add(15*time.Second)))
	assert.Zero(t, serial.Remaining(now.Add(time.Minute)), "floored at zero after the deadline")
	assert.Zero(t, TimerSerial{}.Remaining(now))

	serial.Enabled = false
	assert.Zero(t, serial.Remaining(now))
}
