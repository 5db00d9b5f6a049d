package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/events"
	"github.com/alfredjeanlab/reqgraph/internal/graph"
	"github.com/alfredjeanlab/reqgraph/internal/history"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

// loader reads records through a store, caching each one so a graph walk
// and the mutation that follows see the same snapshot.
type loader struct {
	ctx   context.Context
	src   store.Store
	cache map[string]*model.DependencyGraph // nil value: known missing
	err   error                             // first storage error hit by lookup
}

func newLoader(ctx context.Context, src store.Store) *loader {
	return &loader{ctx: ctx, src: src, cache: make(map[string]*model.DependencyGraph)}
}

func (l *loader) load(id string) (*model.DependencyGraph, error) {
	if g, ok := l.cache[id]; ok {
		if g == nil {
			return nil, fmt.Errorf("load graph %s: %w", id, store.ErrNotFound)
		}
		return g, nil
	}
	g, err := l.src.LoadGraph(l.ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		l.cache[id] = nil
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	l.cache[id] = g
	return g, nil
}

// loadPair loads both endpoints of an edge in one round trip.
func (l *loader) loadPair(a, b string) (*model.DependencyGraph, *model.DependencyGraph, error) {
	m, err := l.src.LoadGraphs(l.ctx, []string{a, b})
	if err != nil {
		return nil, nil, err
	}
	var missing []string
	for _, id := range []string{a, b} {
		l.cache[id] = m[id]
		if m[id] == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("load graphs %s: %w", strings.Join(missing, ", "), store.ErrNotFound)
	}
	return m[a], m[b], nil
}

// lookup adapts load to graph.Lookup. Missing records read as nil; other
// errors are kept in l.err for the caller to check after the walk.
func (l *loader) lookup(id string) *model.DependencyGraph {
	g, err := l.load(id)
	if err != nil && !errors.Is(err, store.ErrNotFound) && l.err == nil {
		l.err = err
	}
	return g
}

// txn is the state of one transactional operation.
type txn struct {
	*loader
	s      *GraphService
	tx     store.Store
	actor  string
	origin history.Origin
	start  time.Time
	now    time.Time
	outbox []outboxEntry
}

func (s *GraphService) newTxn(ctx context.Context, tx store.Store, actor string) *txn {
	now := s.clock.Now()
	return &txn{
		loader: newLoader(ctx, tx),
		s:      s,
		tx:     tx,
		actor:  actor,
		origin: history.OriginFrom(ctx),
		start:  now,
		now:    now,
	}
}

// save recomputes g's statistics, checks the record and persists it.
func (x *txn) save(g *model.DependencyGraph) error {
	graph.Refresh(g, x.now)
	if err := model.ValidateGraph(g); err != nil {
		return fmt.Errorf("graph %s: %w", g.RequirementID, err)
	}
	if err := x.tx.SaveGraph(x.ctx, g); err != nil {
		return err
	}
	x.cache[g.RequirementID] = g
	return nil
}

// record stamps e and appends it to the ledger.
func (x *txn) record(e *model.HistoryEvent) error {
	if e.ID == "" {
		id, err := x.s.newID()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = x.now
	}
	if e.DurationMS == nil {
		d := x.s.clock.Now().Sub(x.start).Milliseconds()
		e.DurationMS = &d
	}
	if err := x.tx.Append(x.ctx, e); err != nil {
		return err
	}
	x.emit(events.TopicHistoryRecorded, e.RequirementID, events.HistoryRecorded{Event: e.Clone()})
	return nil
}

// emit queues an event for publication after commit.
func (x *txn) emit(topic, requirementID string, event any) {
	x.outbox = append(x.outbox, outboxEntry{topic: topic, requirementID: requirementID, event: event})
}
