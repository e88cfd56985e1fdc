// Package client implements the non-host side of a session: reconciling host
// broadcasts into a local snapshot, mirroring the participant's own phase
// into the roster, and turning user intents into channel messages. Clients
// never write the shared snapshot; that separation is what keeps the host
// authoritative.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/generate"
	"github.com/kmorel/fibbit/internal/roster"
)

// Store is the slice of channel capability a client is allowed to hold.
type Store interface {
	channel.Appender
	channel.SnapshotSource
	channel.RosterStore
}

// Generator requests content generation; the result arrives later as a
// Generation message on the host's log, not as a return value here.
type Generator interface {
	RequestGeneration(ctx context.Context, req generate.Request) error
}

// Config wires a Reconciler.
type Config struct {
	RoomID uuid.UUID
	SelfID uuid.UUID
	Store  Store
	Clock  clockwork.Clock // defaults to the real clock

	// OnSnapshot is invoked after every applied broadcast, for presentation.
	OnSnapshot func(game.Snapshot)
	// OnDeadline is invoked when the serialized deadline elapses locally.
	// Display only; clients never run phase-timeout reducers.
	OnDeadline func()
}

// Reconciler consumes host broadcasts. A one-time catch-up fetch on connect
// and the live watch funnel through the same reconciliation routine, and
// duplicate sequence numbers are discarded, so a rejoining client converges
// to exactly the state of one that was connected all along.
type Reconciler struct {
	roomID uuid.UUID
	selfID uuid.UUID
	store  Store
	timer  *game.Timer
	logger zerolog.Logger

	onSnapshot func(game.Snapshot)
	onDeadline func()

	mu      sync.Mutex
	state   game.Snapshot
	lastSeq uint64
	phase   game.Phase
	roster  *roster.Directory
}

// New builds a Reconciler; Run starts consuming.
func New(cfg Config) *Reconciler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reconciler{
		roomID:     cfg.RoomID,
		selfID:     cfg.SelfID,
		store:      cfg.Store,
		timer:      game.NewTimer(clock, 0),
		logger:     log.With().Str("room_id", cfg.RoomID.String()).Str("participant", cfg.SelfID.String()).Logger(),
		onSnapshot: cfg.OnSnapshot,
		onDeadline: cfg.OnDeadline,
		phase:      game.PhaseLobby,
		roster:     roster.NewDirectory(),
	}
}

// Run subscribes to broadcasts, performs the one-time catch-up fetch, and
// reconciles until ctx is canceled. Subscribing before fetching means a
// broadcast racing the fetch is seen on both paths; the sequence check makes
// the duplicate harmless.
func (r *Reconciler) Run(ctx context.Context) error {
	snaps, err := r.store.WatchSnapshot(ctx, r.roomID)
	if err != nil {
		return fmt.Errorf("watch snapshot: %w", err)
	}
	rosterEvents, err := r.store.WatchRoster(ctx, r.roomID)
	if err != nil {
		return fmt.Errorf("watch roster: %w", err)
	}

	if snap, err := r.store.FetchSnapshot(ctx, r.roomID); err == nil {
		r.Reconcile(ctx, snap)
	} else if !errors.Is(err, channel.ErrNoSnapshot) {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	if ps, err := r.store.FetchRoster(ctx, r.roomID); err == nil {
		r.roster.ApplySnapshot(ps)
	} else {
		r.logger.Error().Err(err).Msg("roster fetch failed")
	}

	for {
		select {
		case <-ctx.Done():
			r.timer.Unset()
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			r.Reconcile(ctx, snap)
		case p, ok := <-rosterEvents:
			if !ok {
				return nil
			}
			r.roster.ApplyRecord(p)
		}
	}
}

// Reconcile applies one snapshot delivery, from either path.
func (r *Reconciler) Reconcile(ctx context.Context, snap game.Snapshot) {
	r.mu.Lock()
	if snap.Seq <= r.lastSeq {
		// Already applied: the catch-up fetch and the live broadcast carry
		// the same sequence number for the same write.
		r.mu.Unlock()
		return
	}
	prevPhase := r.state.Phase
	r.state = snap
	r.lastSeq = snap.Seq
	r.mu.Unlock()

	if snap.Phase != prevPhase {
		r.setOwnPhase(ctx, snap.Phase)
	}

	r.timer.SetFromSerial(snap.Timer, func() {
		if r.onDeadline != nil {
			r.onDeadline()
		}
	})

	if r.onSnapshot != nil {
		r.onSnapshot(snap)
	}
}

// State returns the last applied snapshot.
func (r *Reconciler) State() game.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Phase returns this participant's own phase, which is WAITING between a
// submission and the next global transition.
func (r *Reconciler) Phase() game.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Roster returns this client's merged view of the participant list.
func (r *Reconciler) Roster() []roster.Participant {
	return r.roster.List()
}

// SetHandle applies the optimistic local update and pushes the partial
// record, never clobbering concurrently-set fields.
func (r *Reconciler) SetHandle(ctx context.Context, handle string) error {
	r.roster.ApplyUpdate(r.selfID, roster.HandleUpdate(handle))
	_, err := r.store.UpdateParticipant(ctx, r.roomID, r.selfID, roster.HandleUpdate(handle))
	return err
}

// SetAvatar applies the optimistic local update and pushes the partial record.
func (r *Reconciler) SetAvatar(ctx context.Context, avatar string) error {
	r.roster.ApplyUpdate(r.selfID, roster.AvatarUpdate(avatar))
	_, err := r.store.UpdateParticipant(ctx, r.roomID, r.selfID, roster.AvatarUpdate(avatar))
	return err
}

// SubmitPrompt asks the generation service for content. On failure the
// participant's phase reverts to WRITING_PROMPTS so they can try again.
func (r *Reconciler) SubmitPrompt(ctx context.Context, gen Generator, req generate.Request) error {
	r.setOwnPhase(ctx, game.PhaseWaiting)
	if err := gen.RequestGeneration(ctx, req); err != nil {
		r.setOwnPhase(ctx, game.PhaseWritingPrompts)
		return fmt.Errorf("request generation: %w", err)
	}
	return nil
}

// SubmitCaption appends this participant's lie for the current generation.
func (r *Reconciler) SubmitCaption(ctx context.Context, text string) error {
	env, err := channel.NewEnvelope(r.roomID, r.selfID, string(game.MessageTypeCaption), game.CaptionPayload{Text: text})
	if err != nil {
		return err
	}
	if err := r.store.AppendMessage(ctx, env); err != nil {
		return fmt.Errorf("send caption: %w", err)
	}
	r.setOwnPhase(ctx, game.PhaseWaiting)
	return nil
}

// SubmitVote appends this participant's accusation.
func (r *Reconciler) SubmitVote(ctx context.Context, accused uuid.UUID) error {
	env, err := channel.NewEnvelope(r.roomID, r.selfID, string(game.MessageTypeVote), game.VotePayload{Accused: accused})
	if err != nil {
		return err
	}
	if err := r.store.AppendMessage(ctx, env); err != nil {
		return fmt.Errorf("send vote: %w", err)
	}
	r.setOwnPhase(ctx, game.PhaseWaiting)
	return nil
}

func (r *Reconciler) setOwnPhase(ctx context.Context, p game.Phase) {
	r.mu.Lock()
	if r.phase == p {
		r.mu.Unlock()
		return
	}
	r.phase = p
	r.mu.Unlock()

	r.roster.ApplyUpdate(r.selfID, roster.PhaseUpdate(p))
	if _, err := r.store.UpdateParticipant(ctx, r.roomID, r.selfID, roster.PhaseUpdate(p)); err != nil {
		r.logger.Error().Err(err).Str("phase", p.String()).Msg("failed to push own phase")
	}
}
