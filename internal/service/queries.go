package service

import (
	"context"

	"github.com/alfredjeanlab/reqgraph/internal/graph"
	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// GetDependencyView returns the read-only projection of id's graph with
// blocking state and the critical path computed from current records.
func (s *GraphService) GetDependencyView(ctx context.Context, id string) (*model.DependencyView, error) {
	const op = "get dependency view"
	if err := checkID(op, "requirement id", id); err != nil {
		return nil, err
	}
	l := newLoader(ctx, s.store)
	g, err := l.load(id)
	if err != nil {
		return nil, classify(op, err, id)
	}
	view := graph.View(g, l.lookup)
	if l.err != nil {
		return nil, classify(op, l.err, id)
	}
	return view, nil
}

// GetHistory returns the ledger entries for id matching filter, newest
// first unless filter.Ascending is set.
func (s *GraphService) GetHistory(ctx context.Context, id string, filter model.HistoryFilter) ([]*model.HistoryEvent, error) {
	const op = "get history"
	if err := checkID(op, "requirement id", id); err != nil {
		return nil, err
	}
	if filter.Limit < 0 {
		return nil, invalidArgument(op, "limit must not be negative")
	}
	for _, a := range filter.Actions {
		if !a.IsValid() {
			return nil, invalidArgument(op, "unknown action %q", a)
		}
	}
	if filter.Since != nil && filter.Until != nil && filter.Until.Before(*filter.Since) {
		return nil, invalidArgument(op, "until is before since")
	}
	evs, err := s.store.QueryByRequirement(ctx, id, filter)
	if err != nil {
		return nil, classify(op, err, id)
	}
	return evs, nil
}
