package domain

// EntityType identifies which tracked collection a change belongs to.
type EntityType string

const (
	EntityProject      EntityType = "project"
	EntityTask         EntityType = "task"
	EntityUser         EntityType = "user"
	EntityComment      EntityType = "comment"
	EntityNotification EntityType = "notification"
)

// Action is the kind of change observed upstream.
type Action string

const (
	ActionCreated  Action = "created"
	ActionModified Action = "modified"
	ActionRemoved  Action = "removed"
)

// ParentIDs carries the ancestry of a changed entity. An empty field means
// the parent id was absent from the entity's own payload; it is never
// guessed or carried over from another event.
type ParentIDs struct {
	ProjectID string
	TaskID    string
	UserID    string
}

// ChangeEvent is one normalized create/modify/remove on a tracked entity.
// It lives only for the duration of a single routing and dispatch pass.
type ChangeEvent struct {
	Entity  EntityType
	Action  Action
	ID      string
	Parents ParentIDs
	Payload map[string]any
}

// ParentsFromPayload reads the known ancestry keys out of a document
// snapshot. Only string values count; anything else is treated as absent.
func ParentsFromPayload(payload map[string]any) ParentIDs {
	return ParentIDs{
		ProjectID: stringField(payload, "projectId"),
		TaskID:    stringField(payload, "taskId"),
		UserID:    stringField(payload, "userId"),
	}
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
