package channel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/roster"
)

func TestMemoryMessageDeliveryOrder(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	roomID := uuid.New()
	sender := uuid.New()

	msgs, err := mem.SubscribeMessages(ctx, roomID)
	require.NoError(t, err)

	for _, text := range []string{"first", "second", "third"} {
		env, err := NewEnvelope(roomID, sender, string(game.MessageTypeCaption), game.CaptionPayload{Text: text})
		require.NoError(t, err)
		require.NoError(t, mem.AppendMessage(ctx, env))
	}

	for _, want := range []string{"first", "second", "third"} {
		select {
		case env := <-msgs:
			var c game.CaptionPayload
			require.NoError(t, json.Unmarshal(env.Payload, &c))
			assert.Equal(t, want, c.Text)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestMemorySnapshotFetchAndWatch(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	roomID := uuid.New()

	_, err := mem.FetchSnapshot(ctx, roomID)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	snaps, err := mem.WatchSnapshot(ctx, roomID)
	require.NoError(t, err)

	snap := game.NewSnapshot()
	snap.Seq = 1
	require.NoError(t, mem.UpdateSnapshot(ctx, roomID, snap))

	got, err := mem.FetchSnapshot(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Seq)

	select {
	case watched := <-snaps:
		assert.Equal(t, uint64(1), watched.Seq)
	case <-time.After(time.Second):
		t.Fatal("snapshot not delivered to watcher")
	}
}

func TestMemoryRosterMerge(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	roomID := uuid.New()
	id := uuid.New()

	_, err := mem.UpsertParticipant(ctx, roomID, roster.Participant{ID: id, Handle: "alice", JoinedAt: time.Now()})
	require.NoError(t, err)

	// A later partial upsert must not clobber the handle.
	p, err := mem.UpsertParticipant(ctx, roomID, roster.Participant{ID: id, Avatar: "cat.png"})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Handle)
	assert.Equal(t, "cat.png", p.Avatar)

	p, err = mem.UpdateParticipant(ctx, roomID, id, roster.PhaseUpdate(game.PhaseWaiting))
	require.NoError(t, err)
	assert.Equal(t, game.PhaseWaiting, p.Phase)

	ps, err := mem.FetchRoster(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "alice", ps[0].Handle)
}
