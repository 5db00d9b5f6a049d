package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// CanAddEdge reports whether the edge "source t target" may be added given
// the records visible through lookup. It returns nil, or an error wrapping
// ErrSelfReference, ErrCycleDetected or ErrDuplicateParent.
//
// Blocking edges are rejected when target already reaches source through
// blocking dependents. Parent edges (source is the parent) are rejected when
// target is already an ancestor of source, or when target already has a
// different parent. Related and duplicate edges are pairwise facts and only
// get the self-reference check.
func CanAddEdge(t model.EdgeType, source, target string, lookup Lookup) error {
	if source == target {
		return fmt.Errorf("%w: %s", ErrSelfReference, source)
	}
	switch t {
	case model.EdgeBlocking:
		if path := blockingPath(target, source, lookup); path != nil {
			return fmt.Errorf("%w: %s blocks %s would close %s",
				ErrCycleDetected, source, target, strings.Join(append(path, target), " -> "))
		}
	case model.EdgeParent:
		if ancestorOf(target, source, lookup) {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrCycleDetected, target, source)
		}
		if child := lookup(target); child != nil && child.Parent != nil && child.Parent.ID != source {
			return fmt.Errorf("%w: %s already has parent %s", ErrDuplicateParent, target, child.Parent.ID)
		}
	}
	return nil
}

// blockingPath returns the chain of ids from "from" to "to" following
// blocking dependents breadth-first, or nil if "to" is unreachable.
func blockingPath(from, to string, lookup Lookup) []string {
	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		g := lookup(current)
		if g == nil {
			continue
		}
		for _, dep := range g.Dependents {
			if dep.RelationType != model.RelationBlocking {
				continue
			}
			if _, seen := prev[dep.ID]; seen {
				continue
			}
			prev[dep.ID] = current
			if dep.ID == to {
				return unwind(prev, to)
			}
			queue = append(queue, dep.ID)
		}
	}
	return nil
}

func unwind(prev map[string]string, end string) []string {
	var path []string
	for id := end; id != ""; id = prev[id] {
		path = append(path, id)
	}
	slices.Reverse(path)
	return path
}

// ancestorOf reports whether candidate appears in the parent chain above id.
func ancestorOf(candidate, id string, lookup Lookup) bool {
	visited := map[string]struct{}{id: {}}
	current := id
	for range MaxDepth {
		g := lookup(current)
		if g == nil || g.Parent == nil {
			return false
		}
		parent := g.Parent.ID
		if parent == candidate {
			return true
		}
		if _, seen := visited[parent]; seen {
			return false
		}
		visited[parent] = struct{}{}
		current = parent
	}
	return false
}

// Ancestors returns the parent chain above id, nearest first.
func Ancestors(id string, lookup Lookup) []string {
	var out []string
	visited := map[string]struct{}{id: {}}
	current := id
	for range MaxDepth {
		g := lookup(current)
		if g == nil || g.Parent == nil {
			break
		}
		parent := g.Parent.ID
		if _, seen := visited[parent]; seen {
			break
		}
		visited[parent] = struct{}{}
		out = append(out, parent)
		current = parent
	}
	return out
}
