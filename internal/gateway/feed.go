package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kmorel/fibbit/internal/channel"
)

// feedSource is the slice of channel capability the feed watches.
type feedSource interface {
	channel.SnapshotSource
	channel.RosterStore
}

// Feed bridges the shared channel onto websocket pushes: one watcher pair per
// room, fanned out to every attached connection. Clients that prefer to run
// their own Reconciler against the channel directly never need it; the feed
// exists for thin browser clients behind the HTTP gateway.
type Feed struct {
	source feedSource
	cm     *ConnectionManager

	mu    sync.Mutex
	stops map[uuid.UUID]*feedEntry
}

type feedEntry struct {
	cancel context.CancelFunc
}

// NewFeed wires a Feed over the channel. The feed tears a room's watchers
// down when its last socket detaches; the next socket's Ensure restarts them.
func NewFeed(source feedSource, cm *ConnectionManager) *Feed {
	f := &Feed{
		source: source,
		cm:     cm,
		stops:  make(map[uuid.UUID]*feedEntry),
	}
	cm.OnRoomEmpty(func(roomID uuid.UUID) {
		if !cm.HasConnections(roomID) {
			f.Stop(roomID)
		}
	})
	return f
}

// Ensure starts the room's watcher pair if it is not already running.
func (f *Feed) Ensure(ctx context.Context, roomID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, running := f.stops[roomID]; running {
		return nil
	}

	feedCtx, cancel := context.WithCancel(ctx)
	snaps, err := f.source.WatchSnapshot(feedCtx, roomID)
	if err != nil {
		cancel()
		return err
	}
	rosterEvents, err := f.source.WatchRoster(feedCtx, roomID)
	if err != nil {
		cancel()
		return err
	}
	entry := &feedEntry{cancel: cancel}
	f.stops[roomID] = entry

	go func() {
		// Remove only this watcher pair's registration; a restarted feed for
		// the same room must not be torn down by its predecessor's exit.
		defer f.remove(roomID, entry)
		for {
			select {
			case <-feedCtx.Done():
				return
			case snap, ok := <-snaps:
				if !ok {
					return
				}
				f.cm.BroadcastToRoom(roomID, SnapshotEvent(roomID, snap))
			case p, ok := <-rosterEvents:
				if !ok {
					return
				}
				f.cm.BroadcastToRoom(roomID, RosterEvent(roomID, p))
			}
		}
	}()

	log.Debug().Str("room_id", roomID.String()).Msg("room feed started")
	return nil
}

// Stop tears down the room's watchers.
func (f *Feed) Stop(roomID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, running := f.stops[roomID]; running {
		entry.cancel()
		delete(f.stops, roomID)
	}
}

func (f *Feed) remove(roomID uuid.UUID, entry *feedEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stops[roomID] == entry {
		entry.cancel()
		delete(f.stops, roomID)
	}
}
