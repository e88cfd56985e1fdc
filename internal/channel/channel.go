// Package channel abstracts the shared store every session runs on: an
// append-only, host-visible log of client submissions, a single mutable room
// snapshot broadcast from host to clients, and the roster records. The engine
// treats all of it as a capability; the NATS JetStream implementation is the
// production transport and the in-memory one backs tests.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/roster"
)

// ErrNoSnapshot is returned by FetchSnapshot before the host has written
// anything for the room.
var ErrNoSnapshot = errors.New("channel: no snapshot for room")

// Envelope is the wire form of one appended message. Payload stays opaque
// here; the game package owns the fallible decode into the closed union.
type Envelope struct {
	ID       uuid.UUID       `json:"id"`
	RoomID   uuid.UUID       `json:"room_id"`
	SenderID uuid.UUID       `json:"sender_id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	SentAt   time.Time       `json:"sent_at"`
}

// NewEnvelope stamps a payload for appending.
func NewEnvelope(roomID, senderID uuid.UUID, msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:       uuid.New(),
		RoomID:   roomID,
		SenderID: senderID,
		Type:     msgType,
		Payload:  raw,
	}, nil
}

// Appender is the client-side write capability: append one message to the
// room's log. Delivery is at-least-once; nothing here is exactly-once.
type Appender interface {
	AppendMessage(ctx context.Context, env Envelope) error
}

// MessageSource is the host-only subscription over the appended log. The
// stream is order-preserving per subscription but gives no cross-client
// total order.
type MessageSource interface {
	SubscribeMessages(ctx context.Context, roomID uuid.UUID) (<-chan Envelope, error)
}

// SnapshotWriter is the host-only write capability over the room record.
type SnapshotWriter interface {
	UpdateSnapshot(ctx context.Context, roomID uuid.UUID, snap game.Snapshot) error
}

// SnapshotSource is the client-side view of the room record: a one-time
// catch-up fetch plus a live watch.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, roomID uuid.UUID) (game.Snapshot, error)
	WatchSnapshot(ctx context.Context, roomID uuid.UUID) (<-chan game.Snapshot, error)
}

// RosterStore holds the merged participant records for a room.
type RosterStore interface {
	UpsertParticipant(ctx context.Context, roomID uuid.UUID, p roster.Participant) (roster.Participant, error)
	UpdateParticipant(ctx context.Context, roomID, participantID uuid.UUID, u roster.Update) (roster.Participant, error)
	FetchRoster(ctx context.Context, roomID uuid.UUID) ([]roster.Participant, error)
	WatchRoster(ctx context.Context, roomID uuid.UUID) (<-chan roster.Participant, error)
}

// Channel is the full capability set. The host holds all of it; clients only
// ever use Appender, SnapshotSource and RosterStore.
type Channel interface {
	Appender
	MessageSource
	SnapshotWriter
	SnapshotSource
	RosterStore
}
