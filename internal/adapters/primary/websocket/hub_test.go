package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/realtime-relay/internal/core/domain"
	"github.com/lorrc/realtime-relay/internal/core/routing"
)

func testHub(mode routing.Mode) *Hub {
	return NewHub(routing.NewTable(mode), 16, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// drain collects every frame currently buffered for a client.
func drain(c *Client) []map[string]any {
	var frames []map[string]any
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return frames
			}
			var m map[string]any
			if err := json.Unmarshal(raw, &m); err == nil {
				frames = append(frames, m)
			}
		default:
			return frames
		}
	}
}

func TestHub_RegisterJoinsGlobalRoom(t *testing.T) {
	h := testHub(routing.ModeRooms)
	c := testClient("c1")

	h.registerClient(c)

	assert.True(t, h.registry.InRoom("c1", routing.RoomGlobal))
	assert.Equal(t, 1, h.ClientCount())
}

func TestHub_DispatchProjectEvent(t *testing.T) {
	h := testHub(routing.ModeRooms)
	watcher := testClient("watcher")
	bystander := testClient("bystander")
	h.registerClient(watcher)
	h.registerClient(bystander)
	h.JoinRoom(watcher, "project:P1")

	h.dispatchEvent(domain.ChangeEvent{
		Entity:  domain.EntityProject,
		Action:  domain.ActionModified,
		ID:      "P1",
		Payload: map[string]any{"name": "Renamed"},
	})

	watcherFrames := drain(watcher)
	require.Len(t, watcherFrames, 2)

	global, room := watcherFrames[0], watcherFrames[1]
	assert.Equal(t, "project_update", global["type"])
	assert.Equal(t, "modified", global["action"])
	assert.Equal(t, "P1", global["projectId"])
	assert.Equal(t, map[string]any{"id": "P1", "name": "Renamed"}, global["data"])

	assert.Equal(t, "project_updated", room["event"])
	assert.NotContains(t, room, "type")
	assert.Equal(t, map[string]any{"id": "P1", "name": "Renamed"}, room["data"])

	// Not in the project room: global frame only.
	bystanderFrames := drain(bystander)
	require.Len(t, bystanderFrames, 1)
	assert.Equal(t, "project_update", bystanderFrames[0]["type"])
}

func TestHub_DispatchCommentEvent_RoomFrameDeduped(t *testing.T) {
	h := testHub(routing.ModeRooms)
	c := testClient("c1")
	h.registerClient(c)
	h.JoinRoom(c, "task:T2")
	h.JoinRoom(c, "comments:T2")

	h.dispatchEvent(domain.ChangeEvent{
		Entity:  domain.EntityComment,
		Action:  domain.ActionCreated,
		ID:      "C9",
		Parents: domain.ParentIDs{ProjectID: "P1", TaskID: "T2"},
		Payload: map[string]any{"projectId": "P1", "taskId": "T2", "text": "hi"},
	})

	frames := drain(c)
	require.Len(t, frames, 2) // one global, one room frame despite two room memberships

	room := frames[1]
	assert.Equal(t, "comment_updated", room["event"])
	assert.Equal(t, "C9", room["commentId"])
	assert.Equal(t, "T2", room["taskId"])
	assert.Equal(t, "P1", room["projectId"])
}

func TestHub_SlowClientIsIsolated(t *testing.T) {
	h := testHub(routing.ModeRooms)

	healthy1 := testClient("healthy1")
	healthy2 := testClient("healthy2")
	// Unbuffered send channel: the first delivery attempt finds it full.
	stuck := &Client{ID: "stuck", Send: make(chan []byte)}

	for _, c := range []*Client{healthy1, stuck, healthy2} {
		h.registerClient(c)
		h.JoinRoom(c, "task:T2")
	}

	h.dispatchEvent(domain.ChangeEvent{
		Entity:  domain.EntityTask,
		Action:  domain.ActionModified,
		ID:      "T2",
		Parents: domain.ParentIDs{ProjectID: "P1"},
	})

	// Both healthy clients got the global and room frames.
	assert.Len(t, drain(healthy1), 2)
	assert.Len(t, drain(healthy2), 2)

	// The stuck client was unregistered and its channel closed.
	assert.Equal(t, 2, h.ClientCount())
	assert.False(t, h.registry.InRoom("stuck", "task:T2"))
	_, open := <-stuck.Send
	assert.False(t, open)
}

func TestHub_ClosedConnectionGetsNothing(t *testing.T) {
	h := testHub(routing.ModeRooms)
	c := testClient("c1")
	h.registerClient(c)
	h.JoinRoom(c, "task:T2")
	require.Equal(t, 1, h.ClientsInRoom("task:T2"))

	h.unregisterClient(c)
	assert.Equal(t, 0, h.ClientsInRoom("task:T2"))

	h.dispatchEvent(domain.ChangeEvent{
		Entity:  domain.EntityComment,
		Action:  domain.ActionCreated,
		ID:      "C1",
		Parents: domain.ParentIDs{TaskID: "T2"},
	})

	// Channel was closed at unregister with nothing queued.
	frame, open := <-c.Send
	assert.Nil(t, frame)
	assert.False(t, open)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	h := testHub(routing.ModeRooms)
	c := testClient("c1")
	h.registerClient(c)

	h.unregisterClient(c)
	h.unregisterClient(c) // second close must not panic

	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_OrderingWithinStream(t *testing.T) {
	h := testHub(routing.ModeRooms)
	c := testClient("c1")
	h.registerClient(c)

	h.dispatchEvent(domain.ChangeEvent{Entity: domain.EntityTask, Action: domain.ActionCreated, ID: "T1"})
	h.dispatchEvent(domain.ChangeEvent{Entity: domain.EntityTask, Action: domain.ActionModified, ID: "T1"})

	frames := drain(c)
	require.Len(t, frames, 2)
	assert.Equal(t, "created", frames[0]["action"])
	assert.Equal(t, "modified", frames[1]["action"])
}

func TestHub_BroadcastModeResolvesToGlobalOnly(t *testing.T) {
	h := testHub(routing.ModeBroadcast)
	c := testClient("c1")
	h.registerClient(c)
	h.JoinRoom(c, "task:T1")

	h.dispatchEvent(domain.ChangeEvent{
		Entity:  domain.EntityTask,
		Action:  domain.ActionModified,
		ID:      "T1",
		Parents: domain.ParentIDs{ProjectID: "P1"},
	})

	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, "task_update", frames[0]["type"])
}

func TestHub_RelayRoomMessage(t *testing.T) {
	h := testHub(routing.ModeRooms)
	sender := testClient("sender")
	member := testClient("member")
	outsider := testClient("outsider")
	for _, c := range []*Client{sender, member, outsider} {
		h.registerClient(c)
	}
	h.JoinRoom(sender, "task:T1")
	h.JoinRoom(member, "task:T1")

	h.RelayRoomMessage(sender, "task:T1", json.RawMessage(`{"text":"hello"}`))

	for _, c := range []*Client{sender, member} {
		frames := drain(c)
		require.Len(t, frames, 1, "conn %s", c.ID)
		assert.Equal(t, "room_message", frames[0]["event"])
		assert.Equal(t, "task:T1", frames[0]["room"])
		assert.Equal(t, "sender", frames[0]["from"])
		assert.Equal(t, map[string]any{"text": "hello"}, frames[0]["message"])
	}

	assert.Empty(t, drain(outsider))
}

func TestHub_BroadcastQueuesEvent(t *testing.T) {
	h := testHub(routing.ModeRooms)

	err := h.Broadcast(domain.ChangeEvent{Entity: domain.EntityUser, Action: domain.ActionCreated, ID: "U1"})
	assert.NoError(t, err)

	select {
	case ev := <-h.broadcast:
		assert.Equal(t, "U1", ev.ID)
	default:
		t.Fatal("event was not queued")
	}
}
