package gateway

import (
	"github.com/google/uuid"

	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/roster"
)

// EventType labels one websocket push.
type EventType string

const (
	// EventSnapshot carries a full room snapshot broadcast by the host.
	EventSnapshot EventType = "snapshot"
	// EventRoster carries one merged participant record.
	EventRoster EventType = "roster"
)

// Event is the wire form pushed to connected clients. Snapshots are always
// whole; clients overwrite, they never patch.
type Event struct {
	Type        EventType           `json:"type"`
	RoomID      uuid.UUID           `json:"room_id"`
	Snapshot    *game.Snapshot      `json:"snapshot,omitempty"`
	Participant *roster.Participant `json:"participant,omitempty"`
}

// SnapshotEvent wraps a snapshot broadcast.
func SnapshotEvent(roomID uuid.UUID, snap game.Snapshot) *Event {
	return &Event{Type: EventSnapshot, RoomID: roomID, Snapshot: &snap}
}

// RosterEvent wraps a participant record update.
func RosterEvent(roomID uuid.UUID, p roster.Participant) *Event {
	return &Event{Type: EventRoster, RoomID: roomID, Participant: &p}
}
