package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/kmorel/fibbit/internal/game"
)

// Room is the durable record for one session. The live game state never
// touches this table; the room row exists for discovery (shortcode joins)
// and the coarse host phase label that gates them.
type Room struct {
	ID        uuid.UUID  `json:"id"`
	Shortcode string     `json:"shortcode"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	Variant   string     `json:"variant"`
	HostPhase game.Phase `json:"host_phase"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateRoomRequest opens a new room.
type CreateRoomRequest struct {
	OwnerID uuid.UUID `json:"owner_id"`
	Handle  string    `json:"handle,omitempty"`
	Avatar  string    `json:"avatar,omitempty"`
	Variant string    `json:"variant"`
}

// JoinRoomRequest joins an existing room by shortcode.
type JoinRoomRequest struct {
	Shortcode string `json:"shortcode"`
	Handle    string `json:"handle,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}
