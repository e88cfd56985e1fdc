package roster

import (
	"time"

	"github.com/google/uuid"
	"github.com/kmorel/fibbit/internal/game"
)

// Participant is one joined player and their merged metadata. Participants
// are created on first join and never hard-deleted during a session.
type Participant struct {
	ID       uuid.UUID  `json:"id"`
	Handle   string     `json:"handle,omitempty"`
	Avatar   string     `json:"avatar,omitempty"`
	Phase    game.Phase `json:"phase,omitempty"`
	JoinedAt time.Time  `json:"joined_at"`
}

// Update is a partial participant mutation. Nil fields are left untouched so
// concurrently-arriving partial updates (set handle vs set avatar) never
// clobber each other.
type Update struct {
	Handle *string     `json:"handle,omitempty"`
	Avatar *string     `json:"avatar,omitempty"`
	Phase  *game.Phase `json:"phase,omitempty"`
}

// Apply folds the update into a participant record.
func (u Update) Apply(p Participant) Participant {
	if u.Handle != nil {
		p.Handle = *u.Handle
	}
	if u.Avatar != nil {
		p.Avatar = *u.Avatar
	}
	if u.Phase != nil {
		p.Phase = *u.Phase
	}
	return p
}

// HandleUpdate builds an Update that only sets the display handle.
func HandleUpdate(handle string) Update {
	return Update{Handle: &handle}
}

// AvatarUpdate builds an Update that only sets the avatar reference.
func AvatarUpdate(avatar string) Update {
	return Update{Avatar: &avatar}
}

// PhaseUpdate builds an Update that only sets the per-player phase.
func PhaseUpdate(p game.Phase) Update {
	return Update{Phase: &p}
}
