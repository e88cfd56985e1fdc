package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections for room events
type ConnectionManager struct {
	// Connection pools organized by room ID
	roomConnections map[uuid.UUID]map[*Connection]bool
	mu              sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Event broadcasting
	broadcastCh chan BroadcastMessage

	// Invoked after the last connection for a room detaches
	onRoomEmpty func(roomID uuid.UUID)
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID            string
	ParticipantID uuid.UUID
	RoomID        uuid.UUID
	Conn          *websocket.Conn
	Send          chan []byte
	Manager       *ConnectionManager

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	RoomID        uuid.UUID
	Event         *Event
	ParticipantID uuid.UUID // Optional: if set, only send to this participant
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, participantID, roomID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		RoomID:        roomID,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		Manager:       cm,
		ConnectedAt:   time.Now(),
		LastPing:      time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("participant", participantID.String()).
		Str("room_id", roomID.String()).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConnections[conn.RoomID] == nil {
		cm.roomConnections[conn.RoomID] = make(map[*Connection]bool)
	}
	cm.roomConnections[conn.RoomID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", conn.RoomID.String()).
		Int("total_connections", len(cm.roomConnections[conn.RoomID])).
		Msg("connection registered")
}

// OnRoomEmpty registers the callback invoked after the last connection for a
// room detaches. The gateway uses it to tear down per-room feed watchers.
func (cm *ConnectionManager) OnRoomEmpty(fn func(roomID uuid.UUID)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onRoomEmpty = fn
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	var emptied func(roomID uuid.UUID)
	if connections, exists := cm.roomConnections[conn.RoomID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)

			// Clean up empty room connection pools
			if len(connections) == 0 {
				delete(cm.roomConnections, conn.RoomID)
				emptied = cm.onRoomEmpty
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("participant", conn.ParticipantID.String()).
				Str("room_id", conn.RoomID.String()).
				Msg("connection unregistered")
		}
	}
	cm.mu.Unlock()

	// Called outside the lock; the callback takes its own locks.
	if emptied != nil {
		emptied(conn.RoomID)
	}
}

// BroadcastToRoom sends an event to all connections for a specific room
func (cm *ConnectionManager) BroadcastToRoom(roomID uuid.UUID, event *Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: roomID, Event: event}:
	default:
		log.Warn().Str("room_id", roomID.String()).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToParticipant sends an event to a specific participant in a room
func (cm *ConnectionManager) BroadcastToParticipant(roomID, participantID uuid.UUID, event *Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: roomID, Event: event, ParticipantID: participantID}:
	default:
		log.Warn().
			Str("room_id", roomID.String()).
			Str("participant", participantID.String()).
			Msg("broadcast channel full, dropping participant message")
	}
}

// HasConnections reports whether any client is attached to the room.
func (cm *ConnectionManager) HasConnections(roomID uuid.UUID) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.roomConnections[roomID]) > 0
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roomConnections[message.RoomID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Create a snapshot of connections to avoid holding lock during broadcast
	var targetConnections []*Connection
	for conn := range connections {
		if message.ParticipantID != uuid.Nil && conn.ParticipantID != message.ParticipantID {
			continue
		}
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	// Marshal the event once
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targetConnections {
		select {
		case conn.Send <- eventData:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Str("participant", conn.ParticipantID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("room_id", message.RoomID.String()).
		Int("connections", len(targetConnections)).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	totalConnections := 0
	roomCounts := make(map[string]int)

	for roomID, connections := range cm.roomConnections {
		count := len(connections)
		totalConnections += count
		roomCounts[roomID.String()] = count
	}

	return map[string]interface{}{
		"total_connections": totalConnections,
		"active_rooms":      len(cm.roomConnections),
		"room_connections":  roomCounts,
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection. The
// socket is push-only; submissions arrive over the HTTP API so they share
// one validated path onto the message log.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		log.Debug().
			Str("connection_id", c.ID).
			Str("participant", c.ParticipantID.String()).
			RawJSON("message", message).
			Msg("received client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
