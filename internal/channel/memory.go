package channel

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kmorel/fibbit/internal/game"
	"github.com/kmorel/fibbit/internal/roster"
)

// Memory is an in-process Channel used by tests and single-node local play.
// Delivery is in-order per subscriber; subscribers are expected to drain
// their channels.
type Memory struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*memoryRoom
}

type memoryRoom struct {
	snapshot    game.Snapshot
	hasSnapshot bool

	rosterOrder []uuid.UUID
	roster      map[uuid.UUID]roster.Participant

	msgSubs    []chan Envelope
	snapSubs   []chan game.Snapshot
	rosterSubs []chan roster.Participant
}

// NewMemory returns an empty in-memory channel.
func NewMemory() *Memory {
	return &Memory{rooms: make(map[uuid.UUID]*memoryRoom)}
}

func (m *Memory) room(roomID uuid.UUID) *memoryRoom {
	r, ok := m.rooms[roomID]
	if !ok {
		r = &memoryRoom{roster: make(map[uuid.UUID]roster.Participant)}
		m.rooms[roomID] = r
	}
	return r
}

func (m *Memory) AppendMessage(ctx context.Context, env Envelope) error {
	m.mu.Lock()
	r := m.room(env.RoomID)
	subs := append([]chan Envelope(nil), r.msgSubs...)
	m.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) SubscribeMessages(ctx context.Context, roomID uuid.UUID) (<-chan Envelope, error) {
	ch := make(chan Envelope, 256)
	m.mu.Lock()
	m.room(roomID).msgSubs = append(m.room(roomID).msgSubs, ch)
	m.mu.Unlock()
	return ch, nil
}

func (m *Memory) UpdateSnapshot(ctx context.Context, roomID uuid.UUID, snap game.Snapshot) error {
	m.mu.Lock()
	r := m.room(roomID)
	r.snapshot = snap.Clone()
	r.hasSnapshot = true
	subs := append([]chan game.Snapshot(nil), r.snapSubs...)
	m.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- snap.Clone():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) FetchSnapshot(ctx context.Context, roomID uuid.UUID) (game.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.room(roomID)
	if !r.hasSnapshot {
		return game.Snapshot{}, ErrNoSnapshot
	}
	return r.snapshot.Clone(), nil
}

func (m *Memory) WatchSnapshot(ctx context.Context, roomID uuid.UUID) (<-chan game.Snapshot, error) {
	ch := make(chan game.Snapshot, 256)
	m.mu.Lock()
	m.room(roomID).snapSubs = append(m.room(roomID).snapSubs, ch)
	m.mu.Unlock()
	return ch, nil
}

func (m *Memory) UpsertParticipant(ctx context.Context, roomID uuid.UUID, p roster.Participant) (roster.Participant, error) {
	m.mu.Lock()
	r := m.room(roomID)
	cur, ok := r.roster[p.ID]
	if !ok {
		r.rosterOrder = append(r.rosterOrder, p.ID)
		cur = p
	} else {
		cur = roster.Merge(cur, p)
	}
	r.roster[p.ID] = cur
	subs := append([]chan roster.Participant(nil), r.rosterSubs...)
	m.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- cur:
		case <-ctx.Done():
			return roster.Participant{}, ctx.Err()
		}
	}
	return cur, nil
}

func (m *Memory) UpdateParticipant(ctx context.Context, roomID, participantID uuid.UUID, u roster.Update) (roster.Participant, error) {
	m.mu.Lock()
	r := m.room(roomID)
	cur, ok := r.roster[participantID]
	if !ok {
		r.rosterOrder = append(r.rosterOrder, participantID)
		cur = roster.Participant{ID: participantID}
	}
	cur = u.Apply(cur)
	r.roster[participantID] = cur
	subs := append([]chan roster.Participant(nil), r.rosterSubs...)
	m.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- cur:
		case <-ctx.Done():
			return roster.Participant{}, ctx.Err()
		}
	}
	return cur, nil
}

func (m *Memory) FetchRoster(ctx context.Context, roomID uuid.UUID) ([]roster.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.room(roomID)
	out := make([]roster.Participant, 0, len(r.rosterOrder))
	for _, id := range r.rosterOrder {
		out = append(out, r.roster[id])
	}
	return out, nil
}

func (m *Memory) WatchRoster(ctx context.Context, roomID uuid.UUID) (<-chan roster.Participant, error) {
	ch := make(chan roster.Participant, 256)
	m.mu.Lock()
	m.room(roomID).rosterSubs = append(m.room(roomID).rosterSubs, ch)
	m.mu.Unlock()
	return ch, nil
}

var _ Channel = (*Memory)(nil)
