package services

import (
	"context"
	"log/slog"

	"github.com/lorrc/realtime-relay/internal/core/ports"
)

// RelayService pipes normalized change events from the source into the
// broadcaster. It is the only consumer of the source channel, so events
// belonging to one upstream stream keep their arrival order all the way
// into dispatch.
type RelayService struct {
	source      ports.ChangeSource
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger
}

// NewRelayService creates the relay pipeline.
func NewRelayService(
	source ports.ChangeSource,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
) *RelayService {
	return &RelayService{
		source:      source,
		broadcaster: broadcaster,
		logger:      logger.With("component", "relay"),
	}
}

// Run consumes events until the context is cancelled or the source channel
// closes. A broadcast failure drops that one event; nothing here is fatal.
func (s *RelayService) Run(ctx context.Context) {
	events := s.source.Subscribe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.Info("change source closed")
				return
			}
			if err := s.broadcaster.Broadcast(ev); err != nil {
				s.logger.Warn("dropping event",
					"entity", ev.Entity,
					"entity_id", ev.ID,
					"error", err,
				)
			}
		}
	}
}
