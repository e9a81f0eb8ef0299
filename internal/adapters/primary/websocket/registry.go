package websocket

import (
	"sync"
)

// Registry is the bidirectional index of connections and rooms. Rooms are
// virtual: an entry exists only while its membership is non-empty, and is
// re-created fresh on the next join. The registry is the sole owner of
// connection membership state.
type Registry struct {
	// mu protects both maps. Every multi-step mutation happens under one
	// acquisition, so a concurrent dispatch never observes a connection
	// half-removed from its rooms.
	mu sync.RWMutex

	// rooms maps room name -> connection id -> client handle
	rooms map[string]map[string]*Client

	// conns maps connection id -> set of joined room names
	conns map[string]map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]*Client),
		conns: make(map[string]map[string]bool),
	}
}

// Join adds the connection to a room. Idempotent.
func (r *Registry) Join(client *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]*Client)
	}
	r.rooms[room][client.ID] = client

	if r.conns[client.ID] == nil {
		r.conns[client.ID] = make(map[string]bool)
	}
	r.conns[client.ID][room] = true
}

// Leave removes the connection from a room. Idempotent.
func (r *Registry) Leave(client *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeFromRoom(client.ID, room)

	if rooms, ok := r.conns[client.ID]; ok {
		delete(rooms, room)
	}
}

// RemoveConnection drops the connection from every room it joined as one
// indivisible step.
func (r *Registry) RemoveConnection(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.conns[client.ID] {
		r.removeFromRoom(client.ID, room)
	}
	delete(r.conns, client.ID)
}

// removeFromRoom must be called with mu held. Deletes the room entry once
// its membership empties.
func (r *Registry) removeFromRoom(connID, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Members returns a snapshot of the room's current clients. Callers get a
// copy, so sends never happen under the registry lock.
func (r *Registry) Members(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	clients := make([]*Client, 0, len(members))
	for _, client := range members {
		clients = append(clients, client)
	}
	return clients
}

// Rooms returns the rooms a connection currently belongs to.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.conns[connID]))
	for room := range r.conns[connID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// InRoom reports whether the connection is currently in the room.
func (r *Registry) InRoom(connID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	_, in := members[connID]
	return in
}

// MemberCount returns the number of connections in a room.
func (r *Registry) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ConnectionCount returns the number of tracked connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
