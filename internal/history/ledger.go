// Package history defines the append-only change ledger of requirements and
// the constructors for the events it records.
package history

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// Ledger is an append-only store of HistoryEvents. It has no
// update or delete; an undo is a new compensating event.
type Ledger interface {
	// Append inserts e. It fails only on validation or storage errors.
	Append(ctx context.Context, e *model.HistoryEvent) error

	// QueryByRequirement returns the events of a requirement that match
	// filter, newest first unless filter.Ascending is set.
	QueryByRequirement(ctx context.Context, requirementID string, filter model.HistoryFilter) ([]*model.HistoryEvent, error)
}

// FilterEvents applies filter to events, which must be in append order.
// Events with equal timestamps keep their append order (reversed when
// sorting newest first). The input slice is not modified.
func FilterEvents(events []*model.HistoryEvent, filter model.HistoryFilter) []*model.HistoryEvent {
	out := make([]*model.HistoryEvent, 0, len(events))
	for _, e := range events {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b *model.HistoryEvent) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if !filter.Ascending {
		slices.Reverse(out)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// MemoryLedger is an in-process Ledger. It is safe for concurrent use.
type MemoryLedger struct {
	mu     sync.RWMutex
	events map[string][]*model.HistoryEvent
	ids    map[string]struct{}
}

// NewMemoryLedger returns an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		events: make(map[string][]*model.HistoryEvent),
		ids:    make(map[string]struct{}),
	}
}

// Append validates e and stores a copy of it.
func (l *MemoryLedger) Append(_ context.Context, e *model.HistoryEvent) error {
	if err := Check(e); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.ids[e.ID]; dup {
		return fmt.Errorf("append history %s: duplicate event id", e.ID)
	}
	l.ids[e.ID] = struct{}{}
	l.events[e.RequirementID] = append(l.events[e.RequirementID], e.Clone())
	return nil
}

// AppendAll validates and stores every event, or none of them.
func (l *MemoryLedger) AppendAll(_ context.Context, events []*model.HistoryEvent) error {
	batch := make(map[string]struct{}, len(events))
	for _, e := range events {
		if err := Check(e); err != nil {
			return err
		}
		if _, dup := batch[e.ID]; dup {
			return fmt.Errorf("append history %s: duplicate event id", e.ID)
		}
		batch[e.ID] = struct{}{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range batch {
		if _, dup := l.ids[id]; dup {
			return fmt.Errorf("append history %s: duplicate event id", id)
		}
	}
	for _, e := range events {
		l.ids[e.ID] = struct{}{}
		l.events[e.RequirementID] = append(l.events[e.RequirementID], e.Clone())
	}
	return nil
}

// QueryByRequirement returns copies of the matching events.
func (l *MemoryLedger) QueryByRequirement(_ context.Context, requirementID string, filter model.HistoryFilter) ([]*model.HistoryEvent, error) {
	l.mu.RLock()
	matched := FilterEvents(l.events[requirementID], filter)
	l.mu.RUnlock()

	out := make([]*model.HistoryEvent, len(matched))
	for i, e := range matched {
		out[i] = e.Clone()
	}
	return out, nil
}

// Len returns the total number of stored events.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// Check validates an event before it is appended: the model rules plus a
// non-empty id and timestamp.
func Check(e *model.HistoryEvent) error {
	if e == nil {
		return fmt.Errorf("append history: nil event")
	}
	if e.ID == "" {
		return fmt.Errorf("append history: event id is required")
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("append history %s: created_at is required", e.ID)
	}
	return model.ValidateHistoryEvent(e)
}
