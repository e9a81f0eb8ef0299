package ports

import (
	"context"

	"github.com/lorrc/realtime-relay/internal/core/domain"
)

// ChangeSource streams normalized change events from the backing document
// store. The returned channel preserves per-stream upstream order and is
// closed once the context is cancelled and all stream loops have stopped.
type ChangeSource interface {
	Subscribe(ctx context.Context) <-chan domain.ChangeEvent
	Close() error
}

// EventBroadcaster accepts events for fan-out delivery to live connections.
// Implemented by the WebSocket hub.
type EventBroadcaster interface {
	Broadcast(event domain.ChangeEvent) error
}
