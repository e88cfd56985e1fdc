package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/generate"
	"github.com/kmorel/fibbit/internal/roster"
	"github.com/kmorel/fibbit/internal/session"
)

// stubRepo is an in-memory session.RoomRepository for handler tests.
type stubRepo struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]session.Room
	codes map[string]uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{rooms: make(map[uuid.UUID]session.Room), codes: make(map[string]uuid.UUID)}
}

func (r *stubRepo) CreateRoom(_ context.Context, room session.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.codes[room.Shortcode]; taken {
		return session.ErrShortcodeTaken
	}
	r.rooms[room.ID] = room
	r.codes[room.Shortcode] = room.ID
	return nil
}

func (r *stubRepo) GetRoom(_ context.Context, id uuid.UUID) (*session.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, session.ErrRoomNotFound
	}
	return &room, nil
}

func (r *stubRepo) GetRoomByShortcode(_ context.Context, code string) (*session.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.codes[code]
	if !ok {
		return nil, session.ErrRoomNotFound
	}
	room := r.rooms[id]
	return &room, nil
}

func (r *stubRepo) UpdateHostPhase(_ context.Context, id uuid.UUID, phase game.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return session.ErrRoomNotFound
	}
	room.HostPhase = phase
	r.rooms[id] = room
	return nil
}

func (r *stubRepo) DeleteRoom(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, id)
	return nil
}

type harness struct {
	mux *http.ServeMux
	mem *channel.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mem := channel.NewMemory()
	sessions := session.NewApp(newStubRepo(), mem, session.NewShortcodeGenerator(rand.NewSource(1)), nil)
	settings := game.DefaultSettings()
	settings.TimerEnabled = false
	hosts := NewHostManager(mem, sessions, settings)
	cm := NewConnectionManager(DefaultConnectionConfig())
	go cm.Start(ctx)
	feed := NewFeed(mem, cm)
	generator := generate.NewService(generate.Echo{}, mem)

	handler := NewHandler(ctx, sessions, hosts, feed, cm, generator, mem)
	mux := http.NewServeMux()
	handler.Register(mux)
	return &harness{mux: mux, mem: mem}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func (h *harness) createRoom(t *testing.T) session.Room {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/rooms", session.CreateRoomRequest{Handle: "ana", Variant: "false-starts"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var room session.Room
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&room))
	return room
}

func TestCreateAndJoinRoom(t *testing.T) {
	h := newHarness(t)
	room := h.createRoom(t)
	assert.Len(t, room.Shortcode, 4)

	rec := h.do(t, http.MethodPost, "/api/rooms/join", session.JoinRoomRequest{Shortcode: room.Shortcode, Handle: "bo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var joined struct {
		Room        session.Room       `json:"room"`
		Participant roster.Participant `json:"participant"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&joined))
	assert.Equal(t, room.ID, joined.Room.ID)
	assert.Equal(t, "bo", joined.Participant.Handle)

	rec = h.do(t, http.MethodPost, "/api/rooms/join", session.JoinRoomRequest{Shortcode: "QQQQ"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartGameAndState(t *testing.T) {
	h := newHarness(t)
	room := h.createRoom(t)
	h.do(t, http.MethodPost, "/api/rooms/join", session.JoinRoomRequest{Shortcode: room.Shortcode, Handle: "bo"})
	h.do(t, http.MethodPost, "/api/rooms/join", session.JoinRoomRequest{Shortcode: room.Shortcode, Handle: "cy"})

	rec := h.do(t, http.MethodPost, "/api/rooms/"+room.ID.String()+"/start", startGameRequest{Handle: "ana"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		rec := h.do(t, http.MethodGet, "/api/rooms/"+room.ID.String()+"/state", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var snap game.Snapshot
		if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
			return false
		}
		return snap.Phase == game.PhaseWritingPrompts
	}, 2*time.Second, 20*time.Millisecond)

	// Joins are refused once the host leaves the lobby.
	require.Eventually(t, func() bool {
		rec := h.do(t, http.MethodPost, "/api/rooms/join", session.JoinRoomRequest{Shortcode: room.Shortcode, Handle: "dee"})
		return rec.Code == http.StatusConflict
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSubmissionEndpoints(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	room := h.createRoom(t)
	participant := uuid.New()

	msgs, err := h.mem.SubscribeMessages(ctx, room.ID)
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/api/rooms/"+room.ID.String()+"/captions", captionRequest{ParticipantID: participant, Text: "a lie"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/rooms/"+room.ID.String()+"/votes", voteRequest{ParticipantID: participant, Accused: uuid.New()})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/rooms/"+room.ID.String()+"/generations", generationRequest{ParticipantID: participant, Prompt: "a prompt"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	types := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		select {
		case env := <-msgs:
			types = append(types, env.Type)
		case <-time.After(time.Second):
			t.Fatal("submission was not appended")
		}
	}
	assert.ElementsMatch(t, []string{
		string(game.MessageTypeCaption),
		string(game.MessageTypeVote),
		string(game.MessageTypeGeneration),
	}, types)

	// Empty submissions are rejected before touching the log.
	rec = h.do(t, http.MethodPost, "/api/rooms/"+room.ID.String()+"/captions", captionRequest{ParticipantID: participant})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.EqualValues(t, 0, stats["total_connections"])
	assert.EqualValues(t, 0, stats["active_rooms"])
}

func TestListVariants(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/variants", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Variants []string `json:"variants"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.ElementsMatch(t, []string{"false-starts", "farsketched", "gisticle"}, out.Variants)
}
