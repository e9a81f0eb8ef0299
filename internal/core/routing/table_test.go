package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lorrc/realtime-relay/internal/core/domain"
	"github.com/lorrc/realtime-relay/internal/core/routing"
)

func TestTable_Targets_Rooms(t *testing.T) {
	table := routing.NewTable(routing.ModeRooms)

	t.Run("project targets its own room", func(t *testing.T) {
		ev := domain.ChangeEvent{Entity: domain.EntityProject, Action: domain.ActionModified, ID: "P1"}

		assert.Equal(t, []string{"*", "project:P1"}, table.Targets(ev))
	})

	t.Run("task targets project and task rooms", func(t *testing.T) {
		ev := domain.ChangeEvent{
			Entity:  domain.EntityTask,
			Action:  domain.ActionCreated,
			ID:      "T1",
			Parents: domain.ParentIDs{ProjectID: "P1"},
		}

		assert.Equal(t, []string{"*", "project:P1", "task:T1"}, table.Targets(ev))
	})

	t.Run("user targets its own room", func(t *testing.T) {
		ev := domain.ChangeEvent{Entity: domain.EntityUser, Action: domain.ActionModified, ID: "U1"}

		assert.Equal(t, []string{"*", "user:U1"}, table.Targets(ev))
	})

	t.Run("comment targets task and comments rooms", func(t *testing.T) {
		ev := domain.ChangeEvent{
			Entity:  domain.EntityComment,
			Action:  domain.ActionCreated,
			ID:      "C9",
			Parents: domain.ParentIDs{ProjectID: "P1", TaskID: "T2"},
		}

		assert.Equal(t, []string{"*", "task:T2", "comments:T2"}, table.Targets(ev))
	})

	t.Run("notification targets the recipient's room", func(t *testing.T) {
		ev := domain.ChangeEvent{
			Entity:  domain.EntityNotification,
			Action:  domain.ActionCreated,
			ID:      "N1",
			Parents: domain.ParentIDs{UserID: "U7"},
		}

		assert.Equal(t, []string{"*", "user:U7"}, table.Targets(ev))
	})
}

func TestTable_Targets_MissingParents(t *testing.T) {
	table := routing.NewTable(routing.ModeRooms)

	t.Run("task without project keeps its own room", func(t *testing.T) {
		ev := domain.ChangeEvent{Entity: domain.EntityTask, Action: domain.ActionModified, ID: "T1"}

		assert.Equal(t, []string{"*", "task:T1"}, table.Targets(ev))
	})

	t.Run("comment without task resolves to global only", func(t *testing.T) {
		ev := domain.ChangeEvent{
			Entity:  domain.EntityComment,
			Action:  domain.ActionCreated,
			ID:      "C1",
			Parents: domain.ParentIDs{ProjectID: "P1"},
		}

		assert.Equal(t, []string{"*"}, table.Targets(ev))
	})

	t.Run("notification without recipient resolves to global only", func(t *testing.T) {
		ev := domain.ChangeEvent{Entity: domain.EntityNotification, Action: domain.ActionRemoved, ID: "N1"}

		assert.Equal(t, []string{"*"}, table.Targets(ev))
	})

	t.Run("unknown entity resolves to global only", func(t *testing.T) {
		ev := domain.ChangeEvent{Entity: "widget", Action: domain.ActionCreated, ID: "W1"}

		assert.Equal(t, []string{"*"}, table.Targets(ev))
	})
}

func TestTable_Targets_Deterministic(t *testing.T) {
	table := routing.NewTable(routing.ModeRooms)
	ev := domain.ChangeEvent{
		Entity:  domain.EntityTask,
		Action:  domain.ActionModified,
		ID:      "T1",
		Parents: domain.ParentIDs{ProjectID: "P1"},
	}

	first := table.Targets(ev)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, table.Targets(ev))
	}
}

func TestTable_Targets_BroadcastMode(t *testing.T) {
	table := routing.NewTable(routing.ModeBroadcast)

	events := []domain.ChangeEvent{
		{Entity: domain.EntityProject, Action: domain.ActionCreated, ID: "P1"},
		{Entity: domain.EntityTask, Action: domain.ActionModified, ID: "T1", Parents: domain.ParentIDs{ProjectID: "P1"}},
		{Entity: domain.EntityComment, Action: domain.ActionRemoved, ID: "C1", Parents: domain.ParentIDs{TaskID: "T1"}},
	}

	for _, ev := range events {
		assert.Equal(t, []string{"*"}, table.Targets(ev))
	}
}

func TestMode_Valid(t *testing.T) {
	assert.True(t, routing.ModeRooms.Valid())
	assert.True(t, routing.ModeBroadcast.Valid())
	assert.False(t, routing.Mode("").Valid())
	assert.False(t, routing.Mode("multicast").Valid())
}
