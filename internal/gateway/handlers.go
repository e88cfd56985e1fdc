// Package gateway exposes the platform over HTTP and WebSocket for thin
// clients: room lifecycle, player submissions, and pushed room events. Every
// submission path ends in an append to the room's message log; the gateway
// never mutates game state itself.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/game/variant"
	"github.com/kmorel/fibbit/internal/generate"
	"github.com/kmorel/fibbit/internal/roster"
	"github.com/kmorel/fibbit/internal/session"
)

// handlerChannel is the slice of channel capability the HTTP layer uses.
type handlerChannel interface {
	channel.Appender
	channel.SnapshotSource
	channel.RosterStore
}

// Handler serves the HTTP API.
type Handler struct {
	sessions  *session.App
	hosts     *HostManager
	feed      *Feed
	cm        *ConnectionManager
	generator *generate.Service
	ch        handlerChannel

	// baseCtx outlives individual requests; host loops and room feeds are
	// bound to it, not to the request that started them.
	baseCtx context.Context
}

// NewHandler wires the HTTP layer.
func NewHandler(baseCtx context.Context, sessions *session.App, hosts *HostManager, feed *Feed, cm *ConnectionManager, generator *generate.Service, ch handlerChannel) *Handler {
	return &Handler{
		sessions:  sessions,
		hosts:     hosts,
		feed:      feed,
		cm:        cm,
		generator: generator,
		ch:        ch,
		baseCtx:   baseCtx,
	}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/variants", h.listVariants)
	mux.HandleFunc("GET /api/stats", h.getStats)
	mux.HandleFunc("POST /api/rooms", h.createRoom)
	mux.HandleFunc("POST /api/rooms/join", h.joinRoom)
	mux.HandleFunc("GET /api/rooms/{roomID}", h.getRoom)
	mux.HandleFunc("POST /api/rooms/{roomID}/start", h.startGame)
	mux.HandleFunc("POST /api/rooms/{roomID}/continue", h.continueGame)
	mux.HandleFunc("GET /api/rooms/{roomID}/state", h.getState)
	mux.HandleFunc("GET /api/rooms/{roomID}/roster", h.getRoster)
	mux.HandleFunc("POST /api/rooms/{roomID}/generations", h.submitGeneration)
	mux.HandleFunc("POST /api/rooms/{roomID}/captions", h.submitCaption)
	mux.HandleFunc("POST /api/rooms/{roomID}/votes", h.submitVote)
	mux.HandleFunc("GET /api/rooms/{roomID}/ws", h.attachSocket)
}

func (h *Handler) listVariants(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"variants": variant.Keys()})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cm.GetConnectionStats())
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == uuid.Nil {
		req.OwnerID = uuid.New()
	}

	room, err := h.sessions.CreateRoom(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The gateway hosts the room; the owner drives it through this API.
	h.hosts.Ensure(h.baseCtx, room.ID, room.OwnerID)
	respondJSON(w, http.StatusCreated, room)
}

func (h *Handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req session.JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, p, err := h.sessions.JoinRoom(r.Context(), req)
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, "room not found")
		return
	case errors.Is(err, session.ErrGameInProgress):
		respondError(w, http.StatusConflict, "game already in progress")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"room":        room,
		"participant": p,
	})
}

func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	room, err := h.sessions.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, session.ErrRoomNotFound) {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, room)
}

type startGameRequest struct {
	Handle string `json:"handle,omitempty"`
}

func (h *Handler) startGame(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	var req startGameRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	host, err := h.hosts.Get(roomID)
	if err != nil {
		respondError(w, http.StatusNotFound, "host not running for room")
		return
	}
	if err := host.StartGame(r.Context(), req.Handle); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (h *Handler) continueGame(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	host, err := h.hosts.Get(roomID)
	if err != nil {
		respondError(w, http.StatusNotFound, "host not running for room")
		return
	}
	if err := host.Continue(r.Context()); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "continued"})
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	snap, err := h.ch.FetchSnapshot(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, channel.ErrNoSnapshot) {
			respondError(w, http.StatusNotFound, "no snapshot for room")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handler) getRoster(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	ps, err := h.ch.FetchRoster(r.Context(), roomID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"participants": ps})
}

type generationRequest struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Prompt        string    `json:"prompt"`
	Hint          string    `json:"hint,omitempty"`
}

func (h *Handler) submitGeneration(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	var req generationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ParticipantID == uuid.Nil || req.Prompt == "" {
		respondError(w, http.StatusBadRequest, "participant_id and prompt are required")
		return
	}

	room, err := h.sessions.GetRoom(r.Context(), roomID)
	if err != nil {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}

	h.setParticipantPhase(r.Context(), roomID, req.ParticipantID, game.PhaseWaiting)
	err = h.generator.RequestGeneration(r.Context(), generate.Request{
		RoomID:     roomID,
		Author:     req.ParticipantID,
		VariantKey: room.Variant,
		Prompt:     req.Prompt,
		Hint:       req.Hint,
	})
	if err != nil {
		// Back to prompting so the player can retry.
		h.setParticipantPhase(r.Context(), roomID, req.ParticipantID, game.PhaseWritingPrompts)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

type captionRequest struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Text          string    `json:"text"`
}

func (h *Handler) submitCaption(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	var req captionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ParticipantID == uuid.Nil || req.Text == "" {
		respondError(w, http.StatusBadRequest, "participant_id and text are required")
		return
	}

	env, err := channel.NewEnvelope(roomID, req.ParticipantID, string(game.MessageTypeCaption), game.CaptionPayload{Text: req.Text})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.ch.AppendMessage(r.Context(), env); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.setParticipantPhase(r.Context(), roomID, req.ParticipantID, game.PhaseWaiting)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

type voteRequest struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Accused       uuid.UUID `json:"accused"`
}

func (h *Handler) submitVote(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ParticipantID == uuid.Nil || req.Accused == uuid.Nil {
		respondError(w, http.StatusBadRequest, "participant_id and accused are required")
		return
	}

	env, err := channel.NewEnvelope(roomID, req.ParticipantID, string(game.MessageTypeVote), game.VotePayload{Accused: req.Accused})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.ch.AppendMessage(r.Context(), env); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.setParticipantPhase(r.Context(), roomID, req.ParticipantID, game.PhaseWaiting)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

func (h *Handler) attachSocket(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	participantID, err := uuid.Parse(r.URL.Query().Get("participant"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "participant query parameter is required")
		return
	}

	if err := h.feed.Ensure(h.baseCtx, roomID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.cm.UpgradeConnection(w, r, participantID, roomID); err != nil {
		// Upgrade already wrote the failure response.
		return
	}

	// Push the current snapshot to just this connection so it does not wait
	// for the next broadcast.
	if snap, err := h.ch.FetchSnapshot(r.Context(), roomID); err == nil {
		h.cm.BroadcastToParticipant(roomID, participantID, SnapshotEvent(roomID, snap))
	}
}

func (h *Handler) setParticipantPhase(ctx context.Context, roomID, participantID uuid.UUID, p game.Phase) {
	if _, err := h.ch.UpdateParticipant(ctx, roomID, participantID, roster.PhaseUpdate(p)); err != nil {
		log.Error().Err(err).
			Str("room_id", roomID.String()).
			Str("participant", participantID.String()).
			Msg("failed to update participant phase")
	}
}

func pathRoomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(r.PathValue("roomID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return uuid.Nil, false
	}
	return roomID, true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
