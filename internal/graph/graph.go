// Package graph implements the dependency graph engine: edge mutation on
// per-requirement records, cycle validation, blocking resolution, critical
// path and statistics. Everything here is a pure function over
// model.DependencyGraph values; loading and saving records is the caller's
// job.
package graph

import (
	"errors"
	"slices"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

var (
	// ErrSelfReference is returned when an edge's source equals its target.
	ErrSelfReference = errors.New("self reference")

	// ErrCycleDetected is returned when an edge would close a blocking cycle
	// or make a requirement its own ancestor.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrDuplicateParent is returned when a child already has a different parent.
	ErrDuplicateParent = errors.New("duplicate parent")

	// ErrNoSuchEdge is returned when an operation needs an edge that is absent.
	ErrNoSuchEdge = errors.New("no such edge")
)

// MaxDepth bounds every chain walk so corrupted data cannot loop forever.
const MaxDepth = 1000

// Lookup is a read-only accessor for graph records. It returns nil for ids
// it does not know.
type Lookup func(id string) *model.DependencyGraph

// MapLookup returns a Lookup over a fixed set of records keyed by id.
func MapLookup(m map[string]*model.DependencyGraph) Lookup {
	return func(id string) *model.DependencyGraph {
		return m[id]
	}
}

// Overlay returns a Lookup that prefers the given records and falls back to
// base for everything else.
func Overlay(base Lookup, records ...*model.DependencyGraph) Lookup {
	return func(id string) *model.DependencyGraph {
		for _, g := range records {
			if g != nil && g.RequirementID == id {
				return g
			}
		}
		if base == nil {
			return nil
		}
		return base(id)
	}
}

// Clone returns a deep copy of g.
func Clone(g *model.DependencyGraph) *model.DependencyGraph {
	if g == nil {
		return nil
	}
	out := *g
	out.Prerequisites = cloneRefs(g.Prerequisites)
	out.Dependents = cloneRefs(g.Dependents)
	out.Related = cloneRefs(g.Related)
	out.Duplicates = cloneRefs(g.Duplicates)
	out.Subtasks = cloneRefs(g.Subtasks)
	if g.Parent != nil {
		p := cloneRef(*g.Parent)
		out.Parent = &p
	}
	out.Statistics.CriticalPath = slices.Clone(g.Statistics.CriticalPath)
	if g.GraphConfig != nil {
		cfg := model.MergeGraphConfig(g.GraphConfig, model.GraphConfigPatch{})
		out.GraphConfig = &cfg
	}
	return &out
}

func cloneRefs(refs []model.RequirementRef) []model.RequirementRef {
	if refs == nil {
		return nil
	}
	out := make([]model.RequirementRef, len(refs))
	for i, r := range refs {
		out[i] = cloneRef(r)
	}
	return out
}

func cloneRef(r model.RequirementRef) model.RequirementRef {
	if r.Progress != nil {
		p := *r.Progress
		r.Progress = &p
	}
	if r.EstimatedHours != nil {
		h := *r.EstimatedHours
		r.EstimatedHours = &h
	}
	if r.ActualHours != nil {
		h := *r.ActualHours
		r.ActualHours = &h
	}
	return r
}
