package routing

import (
	"github.com/lorrc/realtime-relay/internal/core/domain"
)

// RoomGlobal is the implicit channel containing every connected client.
const RoomGlobal = "*"

// Room name constructors for the hierarchy rooms.
func ProjectRoom(id string) string      { return "project:" + id }
func TaskRoom(id string) string         { return "task:" + id }
func UserRoom(id string) string         { return "user:" + id }
func CommentsRoom(taskID string) string { return "comments:" + taskID }

// Mode selects between the two deployment shapes served by one table.
type Mode string

const (
	// ModeBroadcast resolves every event to the global channel only.
	// Inbound client commands are disabled in this mode.
	ModeBroadcast Mode = "broadcast"

	// ModeRooms applies the full hierarchy table.
	ModeRooms Mode = "rooms"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	return m == ModeBroadcast || m == ModeRooms
}

// Table computes the target rooms for a change event. It is pure and total:
// the same event always yields the same ordered target list, and no event
// can make it fail. Rooms whose parent id is missing from the event are
// dropped rather than fabricated; the global channel is always first.
type Table struct {
	mode Mode
}

// NewTable returns a table for the given mode.
func NewTable(mode Mode) Table {
	return Table{mode: mode}
}

// Mode returns the mode the table was built with.
func (t Table) Mode() Mode {
	return t.mode
}

// Targets returns the ordered rooms an event should be delivered to.
func (t Table) Targets(ev domain.ChangeEvent) []string {
	targets := []string{RoomGlobal}
	if t.mode == ModeBroadcast {
		return targets
	}

	switch ev.Entity {
	case domain.EntityProject:
		targets = appendRoom(targets, ProjectRoom, ev.ID)
	case domain.EntityTask:
		targets = appendRoom(targets, ProjectRoom, ev.Parents.ProjectID)
		targets = appendRoom(targets, TaskRoom, ev.ID)
	case domain.EntityUser:
		targets = appendRoom(targets, UserRoom, ev.ID)
	case domain.EntityComment:
		targets = appendRoom(targets, TaskRoom, ev.Parents.TaskID)
		targets = appendRoom(targets, CommentsRoom, ev.Parents.TaskID)
	case domain.EntityNotification:
		targets = appendRoom(targets, UserRoom, ev.Parents.UserID)
	}
	return targets
}

func appendRoom(targets []string, room func(string) string, id string) []string {
	if id == "" {
		return targets
	}
	return append(targets, room(id))
}
