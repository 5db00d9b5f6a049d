package graph

import "github.com/alfredjeanlab/reqgraph/internal/model"

// Blocking status is computed from the snapshots stored on the edges, not
// from the live state of the referenced requirements.

// IsBlocked reports whether g has a blocking prerequisite whose snapshot
// status is not terminal.
func IsBlocked(g *model.DependencyGraph) bool {
	for _, r := range g.Prerequisites {
		if r.RelationType == model.RelationBlocking && !r.IsResolved() {
			return true
		}
	}
	return false
}

// IsBlocking reports whether g blocks any dependent. A requirement stays a
// blocker until the edge is removed, whatever the dependent's status.
func IsBlocking(g *model.DependencyGraph) bool {
	for _, r := range g.Dependents {
		if r.RelationType == model.RelationBlocking {
			return true
		}
	}
	return false
}

// BlockingPrerequisites returns the unresolved blocking prerequisites of g.
func BlockingPrerequisites(g *model.DependencyGraph) []model.RequirementRef {
	out := []model.RequirementRef{}
	for _, r := range g.Prerequisites {
		if r.RelationType == model.RelationBlocking && !r.IsResolved() {
			out = append(out, r)
		}
	}
	return out
}

// BlockedDependents returns the dependents g blocks.
func BlockedDependents(g *model.DependencyGraph) []model.RequirementRef {
	out := []model.RequirementRef{}
	for _, r := range g.Dependents {
		if r.RelationType == model.RelationBlocking {
			out = append(out, r)
		}
	}
	return out
}
