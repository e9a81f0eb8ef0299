package firestore

import (
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"

	"github.com/lorrc/realtime-relay/internal/core/domain"
)

func TestNormalizeKind(t *testing.T) {
	assert.Equal(t, domain.ActionCreated, normalizeKind(firestore.DocumentAdded))
	assert.Equal(t, domain.ActionModified, normalizeKind(firestore.DocumentModified))
	assert.Equal(t, domain.ActionRemoved, normalizeKind(firestore.DocumentRemoved))
}

func TestNewEvent_ParentsComeFromOwnPayload(t *testing.T) {
	payload := map[string]any{"projectId": "P1", "taskId": "T2", "text": "hi"}

	ev := newEvent(domain.EntityComment, domain.ActionCreated, "C9", payload)

	assert.Equal(t, domain.EntityComment, ev.Entity)
	assert.Equal(t, "C9", ev.ID)
	assert.Equal(t, domain.ParentIDs{ProjectID: "P1", TaskID: "T2"}, ev.Parents)
	assert.Equal(t, payload, ev.Payload)
}

func TestNewEvent_MissingParentsStayEmpty(t *testing.T) {
	ev := newEvent(domain.EntityTask, domain.ActionRemoved, "T1", map[string]any{"title": "done"})

	assert.Equal(t, domain.ParentIDs{}, ev.Parents)
	assert.Equal(t, "T1", ev.ID)
}
