package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kmorel/fibbit/internal/channel"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/host"
)

// ErrHostNotRunning is returned for intents against a room whose host loop
// has not been started on this node.
var ErrHostNotRunning = errors.New("gateway: host not running for room")

// HostManager runs one host loop per room on this node. The gateway plays
// host on behalf of the room owner; ownership of a room's loop is exclusive
// because the host is the room's single snapshot writer.
type HostManager struct {
	ch       channel.Channel
	rooms    host.RoomPhaseUpdater
	settings game.Settings

	mu    sync.Mutex
	hosts map[uuid.UUID]*hostEntry
}

type hostEntry struct {
	host   *host.Host
	cancel context.CancelFunc
}

// NewHostManager wires a HostManager.
func NewHostManager(ch channel.Channel, rooms host.RoomPhaseUpdater, settings game.Settings) *HostManager {
	return &HostManager{
		ch:       ch,
		rooms:    rooms,
		settings: settings,
		hosts:    make(map[uuid.UUID]*hostEntry),
	}
}

// Ensure starts the room's host loop if it is not already running and
// returns it. Restarting a room that already has a stored snapshot resumes
// it rather than resetting it.
func (m *HostManager) Ensure(ctx context.Context, roomID, ownerID uuid.UUID) *host.Host {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, running := m.hosts[roomID]; running {
		return entry.host
	}

	h := host.New(host.Config{
		RoomID:   roomID,
		HostID:   ownerID,
		Settings: m.settings,
		Channel:  m.ch,
		Rooms:    m.rooms,
	})
	runCtx, cancel := context.WithCancel(ctx)
	m.hosts[roomID] = &hostEntry{host: h, cancel: cancel}

	go func() {
		if err := h.Run(runCtx); err != nil {
			log.Error().Err(err).Str("room_id", roomID.String()).Msg("host loop exited with error")
		}
		m.mu.Lock()
		delete(m.hosts, roomID)
		m.mu.Unlock()
	}()
	return h
}

// Get returns the running host for a room.
func (m *HostManager) Get(roomID uuid.UUID) (*host.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, running := m.hosts[roomID]
	if !running {
		return nil, ErrHostNotRunning
	}
	return entry.host, nil
}

// Stop cancels the room's host loop.
func (m *HostManager) Stop(roomID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, running := m.hosts[roomID]; running {
		entry.cancel()
		delete(m.hosts, roomID)
	}
}
