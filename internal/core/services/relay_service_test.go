package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/lorrc/realtime-relay/internal/core/domain"
	"github.com/lorrc/realtime-relay/internal/core/mocks"
	"github.com/lorrc/realtime-relay/internal/core/services"
)

func TestRelayService_Run(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("pipes events in order until source closes", func(t *testing.T) {
		events := make(chan domain.ChangeEvent, 2)
		first := domain.ChangeEvent{Entity: domain.EntityTask, Action: domain.ActionCreated, ID: "T1"}
		second := domain.ChangeEvent{Entity: domain.EntityTask, Action: domain.ActionModified, ID: "T1"}
		events <- first
		events <- second
		close(events)

		source := mocks.NewMockChangeSource()
		source.On("Subscribe", mock.Anything).Return((<-chan domain.ChangeEvent)(events))

		broadcaster := mocks.NewMockBroadcaster()
		broadcaster.On("Broadcast", first).Return(nil).Once()
		broadcaster.On("Broadcast", second).Return(nil).Once()

		svc := services.NewRelayService(source, broadcaster, logger)
		svc.Run(context.Background())

		source.AssertExpectations(t)
		broadcaster.AssertExpectations(t)
	})

	t.Run("broadcast failure drops only that event", func(t *testing.T) {
		events := make(chan domain.ChangeEvent, 2)
		bad := domain.ChangeEvent{Entity: domain.EntityUser, Action: domain.ActionCreated, ID: "U1"}
		good := domain.ChangeEvent{Entity: domain.EntityUser, Action: domain.ActionModified, ID: "U1"}
		events <- bad
		events <- good
		close(events)

		source := mocks.NewMockChangeSource()
		source.On("Subscribe", mock.Anything).Return((<-chan domain.ChangeEvent)(events))

		broadcaster := mocks.NewMockBroadcaster()
		broadcaster.On("Broadcast", bad).Return(context.DeadlineExceeded).Once()
		broadcaster.On("Broadcast", good).Return(nil).Once()

		svc := services.NewRelayService(source, broadcaster, logger)
		svc.Run(context.Background())

		broadcaster.AssertExpectations(t)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		events := make(chan domain.ChangeEvent)

		source := mocks.NewMockChangeSource()
		source.On("Subscribe", mock.Anything).Return((<-chan domain.ChangeEvent)(events))

		broadcaster := mocks.NewMockBroadcaster()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		svc := services.NewRelayService(source, broadcaster, logger)
		svc.Run(ctx)

		broadcaster.AssertNotCalled(t, "Broadcast")
	})
}
