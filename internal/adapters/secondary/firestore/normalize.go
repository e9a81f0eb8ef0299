package firestore

import (
	"cloud.google.com/go/firestore"

	"github.com/lorrc/realtime-relay/internal/core/domain"
)

// normalizeChange builds a ChangeEvent from one document change. Ancestry
// ids come from this change's own snapshot, never from neighboring changes
// or another stream's state.
func normalizeChange(entity domain.EntityType, change firestore.DocumentChange) domain.ChangeEvent {
	payload := change.Doc.Data()
	return newEvent(entity, normalizeKind(change.Kind), change.Doc.Ref.ID, payload)
}

func newEvent(entity domain.EntityType, action domain.Action, id string, payload map[string]any) domain.ChangeEvent {
	return domain.ChangeEvent{
		Entity:  entity,
		Action:  action,
		ID:      id,
		Parents: domain.ParentsFromPayload(payload),
		Payload: payload,
	}
}

func normalizeKind(kind firestore.DocumentChangeKind) domain.Action {
	switch kind {
	case firestore.DocumentAdded:
		return domain.ActionCreated
	case firestore.DocumentModified:
		return domain.ActionModified
	default:
		return domain.ActionRemoved
	}
}
