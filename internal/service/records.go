package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/alfredjeanlab/reqgraph/internal/events"
	"github.com/alfredjeanlab/reqgraph/internal/graph"
	"github.com/alfredjeanlab/reqgraph/internal/history"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

// EnsureGraph returns the graph record for id, creating an empty one (and
// recording a create event) if none exists. created reports which happened.
func (s *GraphService) EnsureGraph(ctx context.Context, id string) (g *model.DependencyGraph, created bool, err error) {
	const op = "ensure graph"
	if err := checkID(op, "requirement id", id); err != nil {
		return nil, false, err
	}
	err = s.run(ctx, op, []string{id}, func(x *txn) error {
		existing, err := x.load(id)
		if err == nil {
			g, created = existing, false
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		fresh := model.NewDependencyGraph(id, x.now)
		if err := x.tx.CreateGraph(x.ctx, fresh); err != nil {
			return err
		}
		e := history.ForCreate(id, x.actor, map[string]any{"requirement_id": id}, x.origin)
		if err := x.record(e); err != nil {
			return err
		}
		x.emit(events.TopicGraphCreated, id, events.GraphCreated{Graph: graph.Clone(fresh)})
		g, created = fresh, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return g, created, nil
}

// UpdateSubtaskProgress sets the progress snapshot of child on parent's
// subtask list. Values outside 0..100 are clamped.
func (s *GraphService) UpdateSubtaskProgress(ctx context.Context, parent, child string, progress int) error {
	const op = "update subtask progress"
	if err := checkID(op, "parent", parent); err != nil {
		return err
	}
	if err := checkID(op, "child", child); err != nil {
		return err
	}
	return s.run(ctx, op, []string{parent, child}, func(x *txn) error {
		p, err := x.load(parent)
		if err != nil {
			return err
		}
		p = graph.Clone(p)

		var old any
		if i := graph.IndexOf(p.Subtasks, child); i >= 0 && p.Subtasks[i].Progress != nil {
			old = *p.Subtasks[i].Progress
		}
		changed, err := graph.UpdateSubtaskProgress(p, child, progress, x.now)
		if err != nil {
			return fmt.Errorf("%s is not a subtask of %s: %w", child, parent, err)
		}
		if !changed {
			return nil
		}
		if err := x.save(p); err != nil {
			return err
		}

		clamped := model.ClampProgress(progress)
		e := history.ForUpdate(parent, x.actor,
			map[string]any{"subtask_id": child, "progress": old},
			map[string]any{"subtask_id": child, "progress": clamped},
			[]string{"subtasks"}, x.origin)
		if err := x.record(e); err != nil {
			return err
		}
		x.emit(events.TopicGraphUpdated, parent, events.GraphUpdated{
			Graph:   graph.Clone(p),
			Changes: map[string]any{"subtask_progress": map[string]any{child: clamped}},
		})
		return nil
	})
}

// SetGraphConfig merges patch into the record's layout hints and returns
// the resulting config.
func (s *GraphService) SetGraphConfig(ctx context.Context, id string, patch model.GraphConfigPatch) (*model.GraphConfig, error) {
	const op = "set graph config"
	if err := checkID(op, "requirement id", id); err != nil {
		return nil, err
	}
	var out model.GraphConfig
	err := s.run(ctx, op, []string{id}, func(x *txn) error {
		g, err := x.load(id)
		if err != nil {
			return err
		}
		merged := model.MergeGraphConfig(g.GraphConfig, patch)
		if err := model.ValidateGraphConfig(merged); err != nil {
			return err
		}
		out = merged
		if g.GraphConfig != nil && reflect.DeepEqual(*g.GraphConfig, merged) {
			return nil
		}

		var old any
		if g.GraphConfig != nil {
			old = *g.GraphConfig
		}
		g = graph.Clone(g)
		cfg := merged
		g.GraphConfig = &cfg
		g.UpdatedAt = x.now
		if err := x.save(g); err != nil {
			return err
		}

		e := history.ForUpdate(id, x.actor,
			map[string]any{"graph_config": old},
			map[string]any{"graph_config": merged},
			[]string{"graph_config"}, x.origin)
		if err := x.record(e); err != nil {
			return err
		}
		x.emit(events.TopicGraphUpdated, id, events.GraphUpdated{
			Graph:   graph.Clone(g),
			Changes: map[string]any{"graph_config": merged},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordChange appends an event produced by the requirement workflow
// (status changes, assignment, field updates) to a requirement that has a
// graph record. Missing operator and origin fields are filled from the
// context. The stored event is returned.
func (s *GraphService) RecordChange(ctx context.Context, e *model.HistoryEvent) (*model.HistoryEvent, error) {
	const op = "record change"
	if e == nil {
		return nil, invalidArgument(op, "event is required")
	}
	if err := checkID(op, "requirement id", e.RequirementID); err != nil {
		return nil, err
	}
	ev := e.Clone()
	err := s.run(ctx, op, []string{ev.RequirementID}, func(x *txn) error {
		if _, err := x.load(ev.RequirementID); err != nil {
			return err
		}
		if ev.OperatorID == "" {
			ev.OperatorID = x.actor
		}
		if ev.Source == "" {
			x.origin.Apply(ev)
		}
		if ev.Result == "" {
			ev.Result = model.ResultSuccess
		}
		return x.record(ev)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// RefreshCriticalPath recomputes the critical path of id and caches it in
// the record's statistics. The cache is derived data, so no history is
// recorded for it.
func (s *GraphService) RefreshCriticalPath(ctx context.Context, id string) ([]string, error) {
	const op = "refresh critical path"
	if err := checkID(op, "requirement id", id); err != nil {
		return nil, err
	}
	var path []string
	err := s.run(ctx, op, []string{id}, func(x *txn) error {
		g, err := x.load(id)
		if err != nil {
			return err
		}
		path = graph.CriticalPath(id, x.lookup)
		if x.err != nil {
			return x.err
		}
		if slices.Equal(path, g.Statistics.CriticalPath) {
			return nil
		}

		g = graph.Clone(g)
		g.Statistics.CriticalPath = slices.Clone(path)
		if err := x.save(g); err != nil {
			return err
		}
		x.emit(events.TopicGraphUpdated, id, events.GraphUpdated{
			Graph:   graph.Clone(g),
			Changes: map[string]any{"critical_path": slices.Clone(path)},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return path, nil
}
