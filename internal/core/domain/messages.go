package domain

// Message is a server-to-client payload. Two shapes share the struct: the
// global-channel shape carries a Type discriminator, while the room-scoped
// shape is named by Event (which already encodes the entity type) and omits
// Type. Both carry the action, the relevant id fields, and the full entity
// snapshot under Data.
type Message struct {
	Event          string         `json:"event,omitempty"`
	Type           string         `json:"type,omitempty"`
	Action         Action         `json:"action"`
	ProjectID      string         `json:"projectId,omitempty"`
	TaskID         string         `json:"taskId,omitempty"`
	UserID         string         `json:"userId,omitempty"`
	CommentID      string         `json:"commentId,omitempty"`
	NotificationID string         `json:"notificationId,omitempty"`
	Data           map[string]any `json:"data"`
}

var broadcastTypes = map[EntityType]string{
	EntityProject:      "project_update",
	EntityTask:         "task_update",
	EntityUser:         "user_update",
	EntityComment:      "comment_update",
	EntityNotification: "notification_update",
}

var roomEvents = map[EntityType]string{
	EntityProject:      "project_updated",
	EntityTask:         "task_updated",
	EntityUser:         "user_updated",
	EntityComment:      "comment_updated",
	EntityNotification: "notification",
}

// NewBroadcastMessage builds the global-channel shape for an event.
func NewBroadcastMessage(ev ChangeEvent) Message {
	m := baseMessage(ev)
	m.Type = broadcastTypes[ev.Entity]
	return m
}

// NewRoomMessage builds the room-scoped shape for an event.
func NewRoomMessage(ev ChangeEvent) Message {
	m := baseMessage(ev)
	m.Event = roomEvents[ev.Entity]
	return m
}

func baseMessage(ev ChangeEvent) Message {
	m := Message{Action: ev.Action, Data: eventData(ev)}
	switch ev.Entity {
	case EntityProject:
		m.ProjectID = ev.ID
	case EntityTask:
		m.TaskID = ev.ID
		m.ProjectID = ev.Parents.ProjectID
	case EntityUser:
		m.UserID = ev.ID
	case EntityComment:
		m.CommentID = ev.ID
		m.TaskID = ev.Parents.TaskID
		m.ProjectID = ev.Parents.ProjectID
	case EntityNotification:
		m.NotificationID = ev.ID
		m.UserID = ev.Parents.UserID
	}
	return m
}

// eventData folds the entity id into a copy of the payload. The event's
// payload is never mutated; the same event may be serialized twice.
func eventData(ev ChangeEvent) map[string]any {
	data := make(map[string]any, len(ev.Payload)+1)
	for k, v := range ev.Payload {
		data[k] = v
	}
	data["id"] = ev.ID
	return data
}
