package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/lorrc/realtime-relay/internal/core/errors"
	"github.com/lorrc/realtime-relay/internal/core/routing"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Default time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Default size of the outbound frame buffer.
	defaultSendBuffer = 256

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is a middleman between one websocket connection and the hub. Its
// lifecycle is Connecting (upgrade) -> Open (pumps running) -> Closed
// (transport gone, registry cleaned); a reconnecting peer gets a new id.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound frames.
	Send chan []byte

	// Unique connection id, never reused.
	ID string

	// closeMu guards closed; Send is closed exactly once and never
	// written to afterwards.
	closeMu sync.RWMutex
	closed  bool

	// Keepalive deadlines, fixed at construction.
	pingInterval time.Duration
	pongWait     time.Duration

	logger *slog.Logger
}

// ClientOptions tunes one connection's outbound buffer and keepalive
// deadlines. Zero values fall back to the package defaults.
type ClientOptions struct {
	SendBuffer   int
	PingInterval time.Duration
	PongWait     time.Duration
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, id string, opts ClientOptions, logger *slog.Logger) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	// Pings must land before the pong deadline expires.
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.PongWait {
		opts.PingInterval = opts.PongWait * 9 / 10
	}
	return &Client{
		Hub:          hub,
		Conn:         conn,
		Send:         make(chan []byte, opts.SendBuffer),
		ID:           id,
		pingInterval: opts.PingInterval,
		pongWait:     opts.PongWait,
		logger:       logger.With("conn_id", id),
	}
}

// CloseSend closes the Send channel exactly once.
func (c *Client) CloseSend() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// enqueue queues an outbound frame without blocking. Returns false only
// when the buffer is full; a frame for an already-closed client is silently
// discarded, since closing prevents future deliveries by design of the
// registry cleanup.
func (c *Client) enqueue(frame []byte) bool {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps frames from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// --- Incoming Message Handling ---

// ClientMessage is the envelope for commands sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RoomPayload names the room for join/leave commands.
type RoomPayload struct {
	Room string `json:"room"`
}

// RoomMessagePayload carries a client message bound for a room.
type RoomMessagePayload struct {
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

// handleIncomingMessage processes one command frame. Malformed frames are
// dropped and the connection stays open. In broadcast-only deployments no
// inbound commands exist at all.
func (c *Client) handleIncomingMessage(message []byte) {
	if c.Hub.Mode() == routing.ModeBroadcast {
		c.logger.Debug("ignoring client command in broadcast mode")
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("dropping command", "error", apperrors.ErrMalformedCommand, "cause", err)
		return
	}

	switch msg.Type {
	case "join_room":
		c.handleJoinRoom(msg.Payload)

	case "leave_room":
		c.handleLeaveRoom(msg.Payload)

	case "send_room_message":
		c.handleRoomMessage(msg.Payload)

	case "custom_event":
		c.handleCustomEvent(msg.Payload)

	default:
		c.logger.Debug("dropping command", "type", msg.Type, "error", apperrors.ErrUnknownCommand)
	}
}

func (c *Client) handleJoinRoom(payload json.RawMessage) {
	var p RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal join payload", "error", err)
		return
	}
	if p.Room == "" {
		c.logger.Warn("dropping join request", "error", apperrors.ErrRoomRequired)
		return
	}

	c.Hub.JoinRoom(c, p.Room)
}

func (c *Client) handleLeaveRoom(payload json.RawMessage) {
	var p RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal leave payload", "error", err)
		return
	}
	if p.Room == "" {
		return
	}

	c.Hub.LeaveRoom(c, p.Room)
}

func (c *Client) handleRoomMessage(payload json.RawMessage) {
	var p RoomMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal room message payload", "error", err)
		return
	}
	if p.Room == "" {
		c.logger.Warn("dropping room message", "error", apperrors.ErrRoomRequired)
		return
	}

	c.Hub.RelayRoomMessage(c, p.Room, p.Message)
}

// handleCustomEvent echoes the payload back to the sender as an
// acknowledgement frame.
func (c *Client) handleCustomEvent(payload json.RawMessage) {
	frame, err := json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{
		Event: "custom_event",
		Data:  payload,
	})
	if err != nil {
		c.logger.Warn("failed to marshal custom event ack", "error", err)
		return
	}

	if !c.enqueue(frame) {
		// Buffer full, skip the ack rather than block the read pump.
		c.logger.Debug("dropping custom event ack, send buffer full")
	}
}
