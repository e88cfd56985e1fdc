package session

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/game"
	_ "github.com/kmorel/fibbit/internal/game/variant"
)

// memoryRepo is an in-memory RoomRepository for app tests.
type memoryRepo struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]Room
	codes map[string]uuid.UUID
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rooms: make(map[uuid.UUID]Room), codes: make(map[string]uuid.UUID)}
}

func (r *memoryRepo) CreateRoom(_ context.Context, room Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.codes[room.Shortcode]; taken {
		return ErrShortcodeTaken
	}
	r.rooms[room.ID] = room
	r.codes[room.Shortcode] = room.ID
	return nil
}

func (r *memoryRepo) GetRoom(_ context.Context, id uuid.UUID) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return &room, nil
}

func (r *memoryRepo) GetRoomByShortcode(_ context.Context, shortcode string) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.codes[shortcode]
	if !ok {
		return nil, ErrRoomNotFound
	}
	room := r.rooms[id]
	return &room, nil
}

func (r *memoryRepo) UpdateHostPhase(_ context.Context, id uuid.UUID, phase game.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	room.HostPhase = phase
	r.rooms[id] = room
	return nil
}

func (r *memoryRepo) DeleteRoom(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil
	}
	delete(r.codes, room.Shortcode)
	delete(r.rooms, id)
	return nil
}

func newTestApp() (*App, *memoryRepo, *channel.Memory) {
	repo := newMemoryRepo()
	mem := channel.NewMemory()
	codes := NewShortcodeGenerator(rand.NewSource(1))
	return NewApp(repo, mem, codes, nil), repo, mem
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	app, _, mem := newTestApp()
	owner := uuid.New()

	room, err := app.CreateRoom(ctx, CreateRoomRequest{OwnerID: owner, Handle: "ana", Variant: "false-starts"})
	require.NoError(t, err)
	assert.Len(t, room.Shortcode, 4)
	assert.Equal(t, game.PhaseLobby, room.HostPhase)
	assert.Equal(t, owner, room.OwnerID)

	// The owner is already seated.
	ps, err := mem.FetchRoster(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, owner, ps[0].ID)
	assert.Equal(t, "ana", ps[0].Handle)
}

func TestCreateRoomUnknownVariant(t *testing.T) {
	app, _, _ := newTestApp()
	_, err := app.CreateRoom(context.Background(), CreateRoomRequest{OwnerID: uuid.New(), Variant: "charades"})
	assert.Error(t, err)
}

func TestCreateRoomRetriesShortcodeCollisions(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	mem := channel.NewMemory()
	// Both apps draw from identically seeded generators, so the second app's
	// first candidate collides with the first room's code.
	appA := NewApp(repo, mem, NewShortcodeGenerator(rand.NewSource(7)), nil)
	appB := NewApp(repo, mem, NewShortcodeGenerator(rand.NewSource(7)), nil)

	first, err := appA.CreateRoom(ctx, CreateRoomRequest{OwnerID: uuid.New(), Variant: "false-starts"})
	require.NoError(t, err)

	second, err := appB.CreateRoom(ctx, CreateRoomRequest{OwnerID: uuid.New(), Variant: "false-starts"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Shortcode, second.Shortcode)
}

func TestJoinRoom(t *testing.T) {
	ctx := context.Background()
	app, _, mem := newTestApp()

	room, err := app.CreateRoom(ctx, CreateRoomRequest{OwnerID: uuid.New(), Variant: "gisticle"})
	require.NoError(t, err)

	got, p, err := app.JoinRoom(ctx, JoinRoomRequest{Shortcode: room.Shortcode, Handle: "bo"})
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
	assert.Equal(t, "bo", p.Handle)
	assert.Equal(t, game.PhaseLobby, p.Phase)

	// Codes are matched case-insensitively.
	_, _, err = app.JoinRoom(ctx, JoinRoomRequest{Shortcode: "  " + strings.ToLower(room.Shortcode) + " ", Handle: "cy"})
	require.NoError(t, err)

	ps, err := mem.FetchRoster(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, ps, 3)
}

func TestJoinRoomGatedOnLobby(t *testing.T) {
	ctx := context.Background()
	app, _, _ := newTestApp()

	room, err := app.CreateRoom(ctx, CreateRoomRequest{OwnerID: uuid.New(), Variant: "false-starts"})
	require.NoError(t, err)
	require.NoError(t, app.UpdateHostPhase(ctx, room.ID, game.PhaseWritingPrompts))

	_, _, err = app.JoinRoom(ctx, JoinRoomRequest{Shortcode: room.Shortcode})
	assert.ErrorIs(t, err, ErrGameInProgress)
}

func TestJoinRoomUnknownCode(t *testing.T) {
	app, _, _ := newTestApp()
	_, _, err := app.JoinRoom(context.Background(), JoinRoomRequest{Shortcode: "ZZZZ"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
