// Package host implements the authoritative side of a session. Exactly one
// Host exists per room; it is the only writer of the room snapshot. Channel
// deliveries, user intents and timer fires are all funneled through one loop
// so reducer invocations never run concurrently.
package host

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/roster"
)

// phaseStartDelay pads the countdown start so clients receive the broadcast
// before the clock visibly starts.
const phaseStartDelay = time.Second

// RoomPhaseUpdater records the host phase label on the room record, used for
// lobby gating and observability. It is optional wiring.
type RoomPhaseUpdater interface {
	UpdateHostPhase(ctx context.Context, roomID uuid.UUID, phase game.Phase) error
}

// Config wires a Host.
type Config struct {
	RoomID   uuid.UUID
	HostID   uuid.UUID
	Settings game.Settings
	Channel  channel.Channel
	Rooms    RoomPhaseUpdater // optional
	Clock    clockwork.Clock  // defaults to the real clock
	Rand     *rand.Rand       // defaults to a time-seeded source
}

// Host owns the mutable in-memory snapshot for one room and applies the
// reducer pipeline to every accepted message. After each accepted message the
// entire snapshot is pushed to the shared record with a fresh sequence
// number; each accepted message causes at most one broadcast.
type Host struct {
	roomID   uuid.UUID
	hostID   uuid.UUID
	settings game.Settings
	ch       channel.Channel
	rooms    RoomPhaseUpdater
	clock    clockwork.Clock
	rng      *rand.Rand
	timer    *game.Timer
	roster   *roster.Directory
	logger   zerolog.Logger

	// Owned by the run loop.
	state game.Snapshot
	seq   uint64

	do       chan func()
	timeouts chan game.Phase
}

// New builds a Host. Run must be called before any intent method.
func New(cfg Config) *Host {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(clock.Now().UnixNano()))
	}
	timer := game.NewTimer(clock, cfg.Settings.TimerGrace)
	timer.SetEnabled(cfg.Settings.TimerEnabled)

	return &Host{
		roomID:   cfg.RoomID,
		hostID:   cfg.HostID,
		settings: cfg.Settings,
		ch:       cfg.Channel,
		rooms:    cfg.Rooms,
		clock:    clock,
		rng:      rng,
		timer:    timer,
		roster:   roster.NewDirectory(),
		logger:   log.With().Str("room_id", cfg.RoomID.String()).Logger(),
		state:    game.NewSnapshot(),
		do:       make(chan func(), 16),
		timeouts: make(chan game.Phase, 4),
	}
}

// Run drives the host loop until ctx is canceled. It resumes from an
// existing snapshot when one is present (rejoin-and-resync after a host
// restart), otherwise it writes the initial lobby snapshot.
func (h *Host) Run(ctx context.Context) error {
	if err := h.resync(ctx); err != nil {
		return err
	}

	msgs, err := h.ch.SubscribeMessages(ctx, h.roomID)
	if err != nil {
		return fmt.Errorf("subscribe messages: %w", err)
	}
	rosterEvents, err := h.ch.WatchRoster(ctx, h.roomID)
	if err != nil {
		return fmt.Errorf("watch roster: %w", err)
	}

	h.logger.Info().Int("participants", h.roster.Len()).Msg("host loop started")

	for {
		select {
		case <-ctx.Done():
			h.timer.Unset()
			h.logger.Info().Msg("host loop stopped")
			return nil
		case env, ok := <-msgs:
			if !ok {
				return nil
			}
			h.handleEnvelope(ctx, env)
		case p, ok := <-rosterEvents:
			if !ok {
				return nil
			}
			h.roster.ApplyRecord(p)
		case armed := <-h.timeouts:
			h.handleTimeout(ctx, armed)
		case fn := <-h.do:
			fn()
		}
	}
}

// resync adopts the stored snapshot if the room already has one, and merges
// the current roster fetch.
func (h *Host) resync(ctx context.Context) error {
	ps, err := h.ch.FetchRoster(ctx, h.roomID)
	if err != nil {
		return fmt.Errorf("fetch roster: %w", err)
	}
	h.roster.ApplySnapshot(ps)

	snap, err := h.ch.FetchSnapshot(ctx, h.roomID)
	switch {
	case errors.Is(err, channel.ErrNoSnapshot):
		return h.broadcast(ctx)
	case err != nil:
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	h.state = snap
	h.seq = snap.Seq
	if snap.Phase.Timed() {
		h.armFromSerial(snap.Phase, snap.Timer)
	}
	if snap.Phase == game.PhaseScoring && h.settings.AutoContinue {
		// The previous process's delayed continue died with it.
		h.scheduleAutoContinue(ctx)
	}
	h.logger.Info().
		Str("phase", snap.Phase.String()).
		Uint64("seq", snap.Seq).
		Msg("resumed from stored snapshot")
	return nil
}

// StartGame moves the lobby into the first writing phase. A non-empty handle
// also names the host's own participant, the same optimistic local update any
// client makes.
func (h *Host) StartGame(ctx context.Context, handle string) error {
	return h.post(ctx, func() error {
		if handle != "" {
			p, err := h.ch.UpdateParticipant(ctx, h.roomID, h.hostID, roster.HandleUpdate(handle))
			if err != nil {
				return fmt.Errorf("update host handle: %w", err)
			}
			h.roster.ApplyRecord(p)
		}
		next, out, err := game.StartGame(h.state, h.roster.IDs())
		if err != nil {
			return err
		}
		return h.apply(ctx, next, out)
	})
}

// Continue settles the scoring screen and advances the machine.
func (h *Host) Continue(ctx context.Context) error {
	return h.post(ctx, func() error {
		next, out, err := game.Continue(h.state, h.settings)
		if err != nil {
			return err
		}
		return h.apply(ctx, next, out)
	})
}

// State returns a copy of the current authoritative snapshot.
func (h *Host) State(ctx context.Context) (game.Snapshot, error) {
	var snap game.Snapshot
	err := h.post(ctx, func() error {
		snap = h.state.Clone()
		return nil
	})
	return snap, err
}

// Roster returns the host's current view of the participant list.
func (h *Host) Roster() []roster.Participant {
	return h.roster.List()
}

// post marshals fn onto the run loop and waits for its result.
func (h *Host) post(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case h.do <- func() { reply <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) handleEnvelope(ctx context.Context, env channel.Envelope) {
	msg, err := game.DecodeMessage(env.ID, env.SenderID, env.Type, env.Payload)
	if err != nil {
		h.logger.Warn().Err(err).Str("type", env.Type).Msg("rejecting message")
		return
	}
	if _, known := h.roster.Get(msg.Sender); !known {
		h.logger.Warn().
			Str("sender", msg.Sender.String()).
			Str("type", env.Type).
			Msg("dropping message from unknown participant")
		return
	}

	next, out := game.ReduceMessage(h.state, msg, h.roster.Len(), h.rng)
	if !out.Applied {
		h.logger.Debug().
			Str("sender", msg.Sender.String()).
			Str("type", env.Type).
			Str("phase", h.state.Phase.String()).
			Msg("message not applicable, dropped")
		return
	}
	if err := h.apply(ctx, next, out); err != nil {
		h.logger.Error().Err(err).Msg("apply failed")
	}
}

func (h *Host) handleTimeout(ctx context.Context, armed game.Phase) {
	next, out := game.Timeout(h.state, armed, h.rng)
	if !out.Applied {
		// The quorum already moved the machine; late fire, nothing to do.
		return
	}
	h.logger.Info().Str("phase", armed.String()).Msg("phase timer expired")
	if err := h.apply(ctx, next, out); err != nil {
		h.logger.Error().Err(err).Msg("apply timeout failed")
	}
}

// apply installs the reduced snapshot, performs transition side effects, and
// broadcasts. This is the only place the snapshot and its side effects meet.
func (h *Host) apply(ctx context.Context, next game.Snapshot, out game.Outcome) error {
	h.state = next
	if out.Transition != nil {
		h.onTransition(ctx, *out.Transition)
	}
	return h.broadcast(ctx)
}

func (h *Host) onTransition(ctx context.Context, to game.Phase) {
	if to.Timed() {
		armed := to
		h.state.Timer = h.timer.Countdown(h.settings.PhaseDuration(to), phaseStartDelay, func() {
			h.timeouts <- armed
		})
	} else {
		h.timer.Unset()
		h.state.Timer = h.timer.Serial()
	}

	if to == game.PhaseScoring && h.settings.AutoContinue {
		h.scheduleAutoContinue(ctx)
	}

	// Label the room record so joins are refused outside the lobby, and move
	// the host's own roster phase along with the global one.
	if h.rooms != nil {
		if err := h.rooms.UpdateHostPhase(ctx, h.roomID, to); err != nil {
			h.logger.Error().Err(err).Str("phase", to.String()).Msg("failed to update room phase label")
		}
	}
	if p, err := h.ch.UpdateParticipant(ctx, h.roomID, h.hostID, roster.PhaseUpdate(to)); err != nil {
		h.logger.Error().Err(err).Msg("failed to update host participant phase")
	} else {
		h.roster.ApplyRecord(p)
	}

	h.logger.Info().Str("phase", to.String()).Int("round", h.state.Round).Msg("phase transition")
}

func (h *Host) scheduleAutoContinue(ctx context.Context) {
	h.clock.AfterFunc(h.settings.ContinueDelay, func() {
		if err := h.Continue(context.WithoutCancel(ctx)); err != nil {
			h.logger.Debug().Err(err).Msg("auto-continue skipped")
		}
	})
}

// armFromSerial re-arms the timeout after a resync from a stored snapshot.
func (h *Host) armFromSerial(armed game.Phase, serial game.TimerSerial) {
	h.timer.SetFromSerial(serial, func() {
		h.timeouts <- armed
	})
}

// broadcast pushes the entire snapshot, stamped with a fresh sequence
// number. Write failures are logged, not retried: a lost broadcast degrades
// to the phase timer forcing progress.
func (h *Host) broadcast(ctx context.Context) error {
	h.seq++
	h.state.Seq = h.seq
	h.state.UpdatedAt = h.clock.Now()
	if err := h.ch.UpdateSnapshot(ctx, h.roomID, h.state); err != nil {
		h.logger.Error().Err(err).Uint64("seq", h.seq).Msg("snapshot broadcast failed")
		return nil
	}
	return nil
}
