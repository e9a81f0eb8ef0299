package firestore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lorrc/realtime-relay/internal/config"
	"github.com/lorrc/realtime-relay/internal/core/domain"
	apperrors "github.com/lorrc/realtime-relay/internal/core/errors"
	"github.com/lorrc/realtime-relay/internal/core/ports"
)

// Source watches the five tracked Firestore streams and normalizes their
// document changes into ChangeEvents. Each stream reconnects independently
// with bounded exponential backoff; one stream's failure never touches the
// other four.
type Source struct {
	client *firestore.Client
	logger *slog.Logger

	// live counts streams with an open snapshot listener.
	live atomic.Int32
}

var _ ports.ChangeSource = (*Source)(nil)

// New builds the Firestore client from the service-account credential
// fields. Call config.FirebaseConfig.MissingFields first; this fails on
// unusable credentials rather than absent ones.
func New(ctx context.Context, cfg config.FirebaseConfig, logger *slog.Logger) (*Source, error) {
	creds, err := cfg.ServiceAccountJSON()
	if err != nil {
		return nil, err
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, err
	}

	return &Source{
		client: client,
		logger: logger.With("component", "firestore_source"),
	}, nil
}

// stream binds one upstream collection to the entity type it produces.
type stream struct {
	name   string
	entity domain.EntityType
	query  firestore.Query
}

func (s *Source) streams() []stream {
	return []stream{
		{name: "projects", entity: domain.EntityProject, query: s.client.Collection("projects").Query},
		// Collection groups pick up tasks and comments wherever they sit
		// in the document hierarchy.
		{name: "tasks", entity: domain.EntityTask, query: s.client.CollectionGroup("tasks").Query},
		{name: "users", entity: domain.EntityUser, query: s.client.Collection("users").Query},
		{name: "comments", entity: domain.EntityComment, query: s.client.CollectionGroup("comments").Query},
		{name: "notifications", entity: domain.EntityNotification, query: s.client.Collection("notifications").Query},
	}
}

// Subscribe starts the five stream watchers. The returned channel carries
// events in upstream order per stream and closes once every watcher has
// stopped after context cancellation.
func (s *Source) Subscribe(ctx context.Context) <-chan domain.ChangeEvent {
	events := make(chan domain.ChangeEvent, 64)

	var wg sync.WaitGroup
	for _, st := range s.streams() {
		wg.Add(1)
		go func(st stream) {
			defer wg.Done()
			s.watch(ctx, st, events)
		}(st)
	}

	go func() {
		wg.Wait()
		close(events)
	}()

	return events
}

// watch runs one stream's listen loop, reconnecting with bounded
// exponential backoff until the context is cancelled.
func (s *Source) watch(ctx context.Context, st stream, events chan<- domain.ChangeEvent) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0 // retry until shutdown

	operation := func() error {
		return s.listen(ctx, st, events)
	}
	notify := func(err error, next time.Duration) {
		s.logger.Error("stream failed, reconnecting",
			"stream", st.name,
			"retry_in", next,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil && ctx.Err() == nil {
		s.logger.Error("stream watcher stopped", "stream", st.name, "error", err)
	}
}

// listen consumes snapshots from one stream until it errors or the context
// is cancelled. Every event is built solely from its own document change.
func (s *Source) listen(ctx context.Context, st stream, events chan<- domain.ChangeEvent) error {
	iter := st.query.Snapshots(ctx)
	defer iter.Stop()

	s.live.Add(1)
	defer s.live.Add(-1)
	s.logger.Info("stream listening", "stream", st.name)

	for {
		snap, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return backoff.Permanent(err)
			}
			return &apperrors.StreamError{Stream: st.name, Err: err}
		}

		for _, change := range snap.Changes {
			ev := normalizeChange(st.entity, change)
			select {
			case events <- ev:
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
		}
	}
}

// Connected reports whether at least one stream has a live listener.
func (s *Source) Connected() bool {
	return s.live.Load() > 0
}

// StreamCount returns the number of currently live stream listeners.
func (s *Source) StreamCount() int {
	return int(s.live.Load())
}

// Close releases the Firestore client.
func (s *Source) Close() error {
	return s.client.Close()
}
