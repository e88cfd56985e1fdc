// Package session manages room lifecycle: creating rooms, handing out join
// codes, and gating joins on the host's phase. It owns the durable room
// records; live game state belongs to the host and the channel.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/game/variant"
	"github.com/kmorel/fibbit/internal/roster"
)

// ErrGameInProgress is returned when a join arrives after the host has left
// the lobby.
var ErrGameInProgress = errors.New("session: game already in progress")

// shortcodeAttempts bounds retries against join-code collisions.
const shortcodeAttempts = 5

// RoomRepository defines what the app layer needs from the repository.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	GetRoomByShortcode(ctx context.Context, shortcode string) (*Room, error)
	UpdateHostPhase(ctx context.Context, id uuid.UUID, phase game.Phase) error
	DeleteRoom(ctx context.Context, id uuid.UUID) error
}

// App handles room business logic.
type App struct {
	repo  RoomRepository
	rost  channel.RosterStore
	codes *ShortcodeGenerator
	clock clockwork.Clock
}

// NewApp creates a new session App.
func NewApp(repo RoomRepository, rost channel.RosterStore, codes *ShortcodeGenerator, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:  repo,
		rost:  rost,
		codes: codes,
		clock: clock,
	}
}

// CreateRoom opens a room under a fresh shortcode and seats the owner as the
// first participant.
func (a *App) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	if req.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("owner id is required")
	}
	if _, err := variant.Get(req.Variant); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	room := Room{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Variant:   req.Variant,
		HostPhase: game.PhaseLobby,
		CreatedAt: a.clock.Now(),
	}
	var err error
	for attempt := 0; attempt < shortcodeAttempts; attempt++ {
		room.Shortcode = a.codes.Next()
		err = a.repo.CreateRoom(ctx, room)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrShortcodeTaken) {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to allocate shortcode: %w", err)
	}

	if _, err := a.rost.UpsertParticipant(ctx, room.ID, roster.Participant{
		ID:       req.OwnerID,
		Handle:   req.Handle,
		Avatar:   req.Avatar,
		Phase:    game.PhaseLobby,
		JoinedAt: a.clock.Now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to seat owner: %w", err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Str("shortcode", room.Shortcode).
		Str("variant", room.Variant).
		Msg("room created")
	return &room, nil
}

// JoinRoom seats a new participant in the room behind the shortcode. Joins
// are only honored while the host is still in the lobby.
func (a *App) JoinRoom(ctx context.Context, req JoinRoomRequest) (*Room, roster.Participant, error) {
	room, err := a.repo.GetRoomByShortcode(ctx, NormalizeShortcode(req.Shortcode))
	if err != nil {
		return nil, roster.Participant{}, fmt.Errorf("failed to find room: %w", err)
	}
	if room.HostPhase != game.PhaseLobby {
		return nil, roster.Participant{}, ErrGameInProgress
	}

	p, err := a.rost.UpsertParticipant(ctx, room.ID, roster.Participant{
		ID:       uuid.New(),
		Handle:   req.Handle,
		Avatar:   req.Avatar,
		Phase:    game.PhaseLobby,
		JoinedAt: a.clock.Now(),
	})
	if err != nil {
		return nil, roster.Participant{}, fmt.Errorf("failed to seat participant: %w", err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Str("participant", p.ID.String()).
		Msg("participant joined")
	return room, p, nil
}

// GetRoom retrieves a room by ID.
func (a *App) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	room, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// UpdateHostPhase records the host's coarse phase on the room row. The host
// loop calls this on every transition.
func (a *App) UpdateHostPhase(ctx context.Context, roomID uuid.UUID, phase game.Phase) error {
	if err := a.repo.UpdateHostPhase(ctx, roomID, phase); err != nil {
		return fmt.Errorf("failed to update host phase: %w", err)
	}
	return nil
}

// DeleteRoom removes a finished room.
func (a *App) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.DeleteRoom(ctx, id); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}
