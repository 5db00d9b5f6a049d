package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/reqgraph/internal/events"
	"github.com/alfredjeanlab/reqgraph/internal/graph"
	"github.com/alfredjeanlab/reqgraph/internal/history"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

// AddEdge records "source edgeType target" on both records. Re-adding an
// existing edge changes nothing and records no history.
func (s *GraphService) AddEdge(ctx context.Context, source, target string, edgeType model.EdgeType, meta EdgeMeta) error {
	const op = "add edge"
	if err := checkEdge(op, source, target, edgeType); err != nil {
		return err
	}
	return s.run(ctx, op, []string{source, target}, func(x *txn) error {
		return x.link(source, target, edgeType, meta)
	})
}

// RemoveEdge removes "source edgeType target" from both records. Removing
// an absent edge changes nothing and records no history.
func (s *GraphService) RemoveEdge(ctx context.Context, source, target string, edgeType model.EdgeType) error {
	const op = "remove edge"
	if err := checkEdge(op, source, target, edgeType); err != nil {
		return err
	}
	return s.run(ctx, op, []string{source, target}, func(x *txn) error {
		return x.unlink(source, target, edgeType)
	})
}

// SetParent makes parent the parent of child. It fails with
// KindDuplicateParent if child already has a different parent.
func (s *GraphService) SetParent(ctx context.Context, child, parent string) error {
	const op = "set parent"
	if err := checkEdge(op, parent, child, model.EdgeParent); err != nil {
		return err
	}
	return s.run(ctx, op, []string{child, parent}, func(x *txn) error {
		return x.link(parent, child, model.EdgeParent, EdgeMeta{})
	})
}

// ClearParent detaches child from its parent, if it has one.
func (s *GraphService) ClearParent(ctx context.Context, child string) error {
	const op = "clear parent"
	if err := checkID(op, "child id", child); err != nil {
		return err
	}
	return s.run(ctx, op, []string{child}, func(x *txn) error {
		c, err := x.load(child)
		if err != nil {
			return err
		}
		if c.Parent == nil {
			return nil
		}
		parentID := c.Parent.ID
		if _, err := x.load(parentID); errors.Is(err, store.ErrNotFound) {
			return x.dropDanglingParent(c)
		}
		return x.unlink(parentID, child, model.EdgeParent)
	})
}

func checkEdge(op, source, target string, edgeType model.EdgeType) error {
	if err := checkID(op, "source", source); err != nil {
		return err
	}
	if err := checkID(op, "target", target); err != nil {
		return err
	}
	if !edgeType.IsValid() {
		return invalidArgument(op, "unknown edge type %q", edgeType)
	}
	if source == target {
		return &GraphError{
			Kind: KindSelfReference,
			Op:   op,
			IDs:  []string{source, target},
			Err:  fmt.Errorf("%w: %s", graph.ErrSelfReference, source),
		}
	}
	return nil
}

func (x *txn) link(source, target string, edgeType model.EdgeType, meta EdgeMeta) error {
	src, dst, err := x.loadPair(source, target)
	if err != nil {
		return err
	}
	if err := graph.CanAddEdge(edgeType, source, target, x.lookup); err != nil {
		return err
	}
	if x.err != nil {
		return x.err
	}

	src, dst = graph.Clone(src), graph.Clone(dst)
	if !graph.Link(src, dst, edgeType, meta.Source, meta.Target, x.now) {
		return nil
	}
	if err := x.save(src); err != nil {
		return err
	}
	if err := x.save(dst); err != nil {
		return err
	}

	ed := history.Edge{Type: edgeType, Source: source, Target: target}
	for _, id := range []string{source, target} {
		e := history.ForEdgeAdd(id, x.actor, ed, x.origin)
		if meta.Reason != "" {
			e.ExtraData = map[string]any{"reason": meta.Reason}
		}
		if err := x.record(e); err != nil {
			return err
		}
	}
	x.emit(events.TopicEdgeAdded, source, events.EdgeAdded{
		Edge:  model.GraphEdge{Source: source, Target: target, Type: edgeType},
		Actor: x.actor,
	})
	return nil
}

func (x *txn) unlink(source, target string, edgeType model.EdgeType) error {
	src, dst, err := x.loadPair(source, target)
	if err != nil {
		return err
	}

	src, dst = graph.Clone(src), graph.Clone(dst)
	if !graph.Unlink(src, dst, edgeType, x.now) {
		return nil
	}
	if err := x.save(src); err != nil {
		return err
	}
	if err := x.save(dst); err != nil {
		return err
	}

	ed := history.Edge{Type: edgeType, Source: source, Target: target}
	for _, id := range []string{source, target} {
		if err := x.record(history.ForEdgeRemove(id, x.actor, ed, x.origin)); err != nil {
			return err
		}
	}
	x.emit(events.TopicEdgeRemoved, source, events.EdgeRemoved{
		Edge:  model.GraphEdge{Source: source, Target: target, Type: edgeType},
		Actor: x.actor,
	})
	return nil
}

// dropDanglingParent clears a parent ref whose record no longer exists.
// Only the child side is written.
func (x *txn) dropDanglingParent(child *model.DependencyGraph) error {
	c := graph.Clone(child)
	ed := history.Edge{Type: model.EdgeParent, Source: c.Parent.ID, Target: c.RequirementID}
	c.Parent = nil
	c.UpdatedAt = x.now
	if err := x.save(c); err != nil {
		return err
	}
	if err := x.record(history.ForEdgeRemove(c.RequirementID, x.actor, ed, x.origin)); err != nil {
		return err
	}
	x.emit(events.TopicEdgeRemoved, c.RequirementID, events.EdgeRemoved{
		Edge:  model.GraphEdge{Source: ed.Source, Target: ed.Target, Type: model.EdgeParent},
		Actor: x.actor,
	})
	return nil
}
