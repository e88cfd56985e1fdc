package gateway

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmorel/fibbit/internal/channel"
)

func testConnection(cm *ConnectionManager, roomID uuid.UUID) *Connection {
	return &Connection{
		ID:            uuid.New().String(),
		ParticipantID: uuid.New(),
		RoomID:        roomID,
		Send:          make(chan []byte, 1),
		Manager:       cm,
	}
}

func (f *Feed) running(roomID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stops[roomID]
	return ok
}

func TestLastDetachStopsRoomFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := channel.NewMemory()
	cm := NewConnectionManager(DefaultConnectionConfig())
	feed := NewFeed(mem, cm)
	roomID := uuid.New()

	require.NoError(t, feed.Ensure(ctx, roomID))
	require.True(t, feed.running(roomID))

	first := testConnection(cm, roomID)
	second := testConnection(cm, roomID)
	cm.registerConnection(first)
	cm.registerConnection(second)
	require.True(t, cm.HasConnections(roomID))

	// One socket dropping leaves the watchers alone.
	cm.unregisterConnection(first)
	assert.True(t, cm.HasConnections(roomID))
	assert.True(t, feed.running(roomID))

	// The last one tears them down.
	cm.unregisterConnection(second)
	assert.False(t, cm.HasConnections(roomID))
	assert.False(t, feed.running(roomID))

	// A double unregister of a dead connection is harmless.
	cm.unregisterConnection(second)

	// The next attach restarts the watcher pair.
	require.NoError(t, feed.Ensure(ctx, roomID))
	assert.True(t, feed.running(roomID))
}

func TestConnectionStats(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	roomA, roomB := uuid.New(), uuid.New()

	cm.registerConnection(testConnection(cm, roomA))
	cm.registerConnection(testConnection(cm, roomA))
	cm.registerConnection(testConnection(cm, roomB))

	stats := cm.GetConnectionStats()
	assert.Equal(t, 3, stats["total_connections"])
	assert.Equal(t, 2, stats["active_rooms"])
	rooms, ok := stats["room_connections"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 2, rooms[roomA.String()])
	assert.Equal(t, 1, rooms[roomB.String()])
}
