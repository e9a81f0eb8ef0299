package websocket

import (
	"encoding/json"
	"log/slog"

	"github.com/lorrc/realtime-relay/internal/core/domain"
	apperrors "github.com/lorrc/realtime-relay/internal/core/errors"
	"github.com/lorrc/realtime-relay/internal/core/ports"
	"github.com/lorrc/realtime-relay/internal/core/routing"
)

// Hub owns the registry and fans change events out to live connections.
// Register/unregister/dispatch all run on the hub's event loop; client
// command handlers touch the registry directly under its own lock.
type Hub struct {
	registry *Registry
	router   routing.Table

	// broadcast carries normalized upstream events into the loop
	broadcast chan domain.ChangeEvent

	// Register requests from new connections
	Register chan *Client

	// Unregister requests from closing connections
	Unregister chan *Client

	logger *slog.Logger
}

// Ensure Hub implements the EventBroadcaster interface.
var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a hub dispatching through the given routing table.
func NewHub(router routing.Table, eventBuffer int, logger *slog.Logger) *Hub {
	if eventBuffer <= 0 {
		eventBuffer = 256
	}
	return &Hub{
		registry:   NewRegistry(),
		router:     router,
		broadcast:  make(chan domain.ChangeEvent, eventBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Mode reports the routing mode the hub dispatches with. Broadcast-only
// deployments disable inbound client commands.
func (h *Hub) Mode() routing.Mode {
	return h.router.Mode()
}

// Broadcast hands an event to the hub's loop. Never blocks: if the buffer
// is full the event is dropped with a warning, keeping upstream streams
// decoupled from slow dispatch.
func (h *Hub) Broadcast(event domain.ChangeEvent) error {
	select {
	case h.broadcast <- event:
		return nil
	default:
		h.logger.Warn("broadcast channel full, dropping event",
			"entity", event.Entity,
			"entity_id", event.ID,
		)
		return nil
	}
}

// Run starts the hub's event loop. This MUST be run as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.dispatchEvent(event)
		}
	}
}

// registerClient adds a client and implicitly joins it to the global room.
func (h *Hub) registerClient(client *Client) {
	h.registry.Join(client, routing.RoomGlobal)

	h.logger.Info("client registered",
		"conn_id", client.ID,
		"total_connections", h.registry.MemberCount(routing.RoomGlobal),
	)
}

// unregisterClient removes the client from every room and closes its send
// channel. Safe to call more than once for the same client.
func (h *Hub) unregisterClient(client *Client) {
	h.registry.RemoveConnection(client)
	client.CloseSend()

	h.logger.Info("client unregistered", "conn_id", client.ID)
}

// dispatchEvent resolves an event's target rooms and delivers the two
// message shapes: the typed global-channel frame to "*" and the room-scoped
// frame to the named rooms. Room membership is looked up fresh per dispatch.
func (h *Hub) dispatchEvent(event domain.ChangeEvent) {
	targets := h.router.Targets(event)

	// A connection inside several named target rooms of the same event
	// gets the room frame once.
	delivered := make(map[string]bool)

	var globalFrame, roomFrame []byte
	for _, room := range targets {
		if room == routing.RoomGlobal {
			if globalFrame == nil {
				globalFrame = h.marshal(domain.NewBroadcastMessage(event), event)
			}
			h.deliver(room, globalFrame, nil)
			continue
		}
		if roomFrame == nil {
			roomFrame = h.marshal(domain.NewRoomMessage(event), event)
		}
		h.deliver(room, roomFrame, delivered)
	}
}

// deliver sends one frame to every current member of a room. Non-blocking
// per connection: a full send buffer marks that connection dead without
// stalling or aborting delivery to the others.
func (h *Hub) deliver(room string, frame []byte, delivered map[string]bool) {
	if frame == nil {
		return
	}
	for _, client := range h.registry.Members(room) {
		if delivered != nil {
			if delivered[client.ID] {
				continue
			}
			delivered[client.ID] = true
		}
		h.send(client, frame)
	}
}

func (h *Hub) send(client *Client, frame []byte) {
	if !client.enqueue(frame) {
		h.logger.Warn("delivery failed, unregistering",
			"conn_id", client.ID,
			"error", &apperrors.SendError{ConnID: client.ID, Err: apperrors.ErrSendBufferFull},
		)
		// Runs on the hub loop (dispatch) or a command goroutine; either
		// way the registry lock makes direct removal safe.
		h.unregisterClient(client)
	}
}

// JoinRoom subscribes a client to a room.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.registry.Join(client, room)

	h.logger.Debug("client joined room",
		"conn_id", client.ID,
		"room", room,
	)
}

// LeaveRoom unsubscribes a client from a room.
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.registry.Leave(client, room)

	h.logger.Debug("client left room",
		"conn_id", client.ID,
		"room", room,
	)
}

// RelayRoomMessage forwards a client-originated message to everyone
// currently in the room, the sender included if it is a member.
func (h *Hub) RelayRoomMessage(from *Client, room string, message json.RawMessage) {
	frame, err := json.Marshal(roomRelayFrame{
		Event:   "room_message",
		Room:    room,
		From:    from.ID,
		Message: message,
	})
	if err != nil {
		h.logger.Warn("failed to marshal room message",
			"conn_id", from.ID,
			"room", room,
			"error", err,
		)
		return
	}

	for _, client := range h.registry.Members(room) {
		h.send(client, frame)
	}
}

// roomRelayFrame is the wire shape for client-relayed room messages.
type roomRelayFrame struct {
	Event   string          `json:"event"`
	Room    string          `json:"room"`
	From    string          `json:"from"`
	Message json.RawMessage `json:"message"`
}

func (h *Hub) marshal(msg domain.Message, event domain.ChangeEvent) []byte {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal event",
			"entity", event.Entity,
			"entity_id", event.ID,
			"error", err,
		)
		return nil
	}
	return frame
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return h.registry.ConnectionCount()
}

// RoomCount returns the number of active rooms, the global room included
// while anyone is connected.
func (h *Hub) RoomCount() int {
	return h.registry.RoomCount()
}

// ClientsInRoom returns the number of clients currently in a room.
func (h *Hub) ClientsInRoom(room string) int {
	return h.registry.MemberCount(room)
}
