package graph

import (
	"math"
	"slices"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// Recompute derives the statistics of g from its relation lists. It does
// not modify g. The cached critical path is carried over unchanged; use
// CriticalPath to refresh it.
func Recompute(g *model.DependencyGraph, now time.Time) model.Statistics {
	s := model.Statistics{
		TotalPrerequisites: len(g.Prerequisites),
		TotalDependents:    len(g.Dependents),
		TotalRelated:       len(g.Related),
		TotalDuplicates:    len(g.Duplicates),
		TotalSubtasks:      len(g.Subtasks),
		CriticalPath:       slices.Clone(g.Statistics.CriticalPath),
		LastUpdated:        now,
	}
	if s.CriticalPath == nil {
		s.CriticalPath = []string{}
	}
	for _, r := range g.Subtasks {
		if r.IsResolved() {
			s.CompletedSubtasks++
		}
	}
	for _, r := range g.Prerequisites {
		if r.RelationType == model.RelationBlocking && !r.IsResolved() {
			s.BlockedByCount++
		}
	}
	for _, r := range g.Dependents {
		if r.RelationType == model.RelationBlocking {
			s.BlockingCount++
		}
	}
	s.EstimatedImpact = Impact(s.TotalPrerequisites+s.TotalDependents, s.BlockingCount)
	return s
}

// Refresh assigns Recompute's result to g.
func Refresh(g *model.DependencyGraph, now time.Time) {
	g.Statistics = Recompute(g, now)
}

// Impact tiers a requirement by its prerequisite+dependent count and the
// number of dependents it blocks.
func Impact(total, blocking int) model.Impact {
	switch {
	case total >= 10 || blocking >= 5:
		return model.ImpactCritical
	case total >= 5 || blocking >= 3:
		return model.ImpactHigh
	case total >= 2 || blocking >= 1:
		return model.ImpactMedium
	}
	return model.ImpactLow
}

// SubtaskProgress returns the mean snapshotted progress of g's subtasks,
// rounded to the nearest integer. Subtasks without progress count as 0.
func SubtaskProgress(g *model.DependencyGraph) int {
	if len(g.Subtasks) == 0 {
		return 0
	}
	var sum int
	for _, r := range g.Subtasks {
		if r.Progress != nil {
			sum += *r.Progress
		}
	}
	return int(math.Round(float64(sum) / float64(len(g.Subtasks))))
}

// View builds the read-only projection of g, walking the critical path
// through lookup.
func View(g *model.DependencyGraph, lookup Lookup) *model.DependencyView {
	c := Clone(g)
	return &model.DependencyView{
		RequirementID:         c.RequirementID,
		Prerequisites:         nonNil(c.Prerequisites),
		Dependents:            nonNil(c.Dependents),
		Related:               nonNil(c.Related),
		Duplicates:            nonNil(c.Duplicates),
		Subtasks:              nonNil(c.Subtasks),
		Parent:                c.Parent,
		Ancestors:             Ancestors(c.RequirementID, Overlay(lookup, c)),
		IsBlocked:             IsBlocked(c),
		IsBlocking:            IsBlocking(c),
		CriticalPath:          CriticalPath(c.RequirementID, Overlay(lookup, c)),
		BlockingPrerequisites: BlockingPrerequisites(c),
		BlockedDependents:     BlockedDependents(c),
		SubtaskProgress:       SubtaskProgress(c),
		Statistics:            c.Statistics,
		GraphConfig:           c.GraphConfig,
		Version:               c.Version,
	}
}

func nonNil(refs []model.RequirementRef) []model.RequirementRef {
	if refs == nil {
		return []model.RequirementRef{}
	}
	return refs
}
