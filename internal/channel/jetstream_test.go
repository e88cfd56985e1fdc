package channel

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConsumeContext quiesces only after its in-flight delivery finishes,
// like a real consumer whose callback is mid-send when Stop is called.
type stubConsumeContext struct {
	stopped chan struct{}
	closed  chan struct{}
}

func (s *stubConsumeContext) Stop()                   { close(s.stopped) }
func (s *stubConsumeContext) Closed() <-chan struct{} { return s.closed }

func TestStopAndCloseWaitsForInFlightDelivery(t *testing.T) {
	cc := &stubConsumeContext{stopped: make(chan struct{}), closed: make(chan struct{})}
	out := make(chan Envelope, 1)

	delivered := make(chan struct{})
	go func() {
		// A delivery callback still running when Stop returns. If the bridge
		// channel were closed before the consumer quiesced, this send would
		// panic the process.
		<-cc.stopped
		out <- Envelope{ID: uuid.New()}
		close(delivered)
		close(cc.closed)
	}()

	done := make(chan struct{})
	go func() {
		stopAndClose(cc, out)
		close(done)
	}()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("in-flight delivery never completed")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stopAndClose never returned")
	}

	env, ok := <-out
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, env.ID)
	_, ok = <-out
	assert.False(t, ok, "channel closes only after the consumer quiesced")
}
