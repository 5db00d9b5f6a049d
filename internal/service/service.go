// Package service orchestrates the dependency graph engine over a store.
// Every mutation loads the records it touches, validates, mutates copies,
// recomputes statistics, saves with an optimistic version check and
// appends history for each touched requirement inside one transaction.
// Events are published only after the transaction commits.
package service

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/reqgraph/internal/clock"
	"github.com/alfredjeanlab/reqgraph/internal/events"
	"github.com/alfredjeanlab/reqgraph/internal/idgen"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

// EdgeMeta carries the snapshots stored on each side of a new edge.
// Source describes the source requirement and is stored on the target's
// record; Target is stored on the source's record.
type EdgeMeta struct {
	Source model.Snapshot `json:"source"`
	Target model.Snapshot `json:"target"`
	Reason string         `json:"reason,omitempty"`
}

// GraphService implements the dependency graph operations.
type GraphService struct {
	store     store.Store
	actor     ActorContext
	clock     clock.Clock
	publisher events.Publisher
	logger    *slog.Logger
	newID     idgen.Func
}

// Option configures a GraphService.
type Option func(*GraphService)

// WithActorContext sets how operators are resolved. The default reads the
// actor from the context and falls back to "system".
func WithActorContext(a ActorContext) Option {
	return func(s *GraphService) { s.actor = a }
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *GraphService) { s.clock = c }
}

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *GraphService) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *GraphService) { s.logger = l }
}

// WithIDFunc sets the history event id generator.
func WithIDFunc(f idgen.Func) Option {
	return func(s *GraphService) { s.newID = f }
}

// New returns a GraphService backed by st.
func New(st store.Store, opts ...Option) *GraphService {
	s := &GraphService{
		store:     st,
		actor:     ContextActor{Fallback: "system"},
		clock:     clock.Real(),
		publisher: events.Discard,
		logger:    slog.Default(),
		newID:     idgen.Generate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// outboxEntry is an event waiting for its transaction to commit.
type outboxEntry struct {
	topic         string
	requirementID string
	event         any
}

// run executes fn in a store transaction and publishes the events fn
// queued once the transaction has committed. Errors come back classified.
func (s *GraphService) run(ctx context.Context, op string, ids []string, fn func(x *txn) error) error {
	actor := s.actor.CurrentActorID(ctx)
	if actor == "" {
		return invalidArgument(op, "no actor for %s", op)
	}

	var outbox []outboxEntry
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		x := s.newTxn(ctx, tx, actor)
		if err := fn(x); err != nil {
			return err
		}
		outbox = x.outbox
		return nil
	})
	if err != nil {
		return classify(op, err, ids...)
	}
	s.publish(ctx, outbox)
	return nil
}

// publish sends committed events. Failures are logged and do not fail the
// operation; the ledger already holds the durable record.
func (s *GraphService) publish(ctx context.Context, outbox []outboxEntry) {
	for _, m := range outbox {
		if err := s.publisher.Publish(ctx, m.topic, m.event); err != nil {
			s.logger.Warn("failed to publish event", "topic", m.topic, "requirement_id", m.requirementID, "error", err)
		}
	}
}
