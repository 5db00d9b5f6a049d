package graph

import (
	"slices"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// CriticalPath walks unresolved blocking prerequisites from id, at each step
// following the one with the highest priority (ties go to the smaller id).
// The walk stops at a requirement with no unresolved blocker, at an unknown
// record, on revisiting a node, or after MaxDepth steps.
//
// The result runs from the deepest blocker up to, but not including, id.
func CriticalPath(id string, lookup Lookup) []string {
	path := []string{}
	visited := map[string]struct{}{id: {}}
	current := lookup(id)
	for depth := 0; current != nil && depth < MaxDepth; depth++ {
		next, ok := nextBlocker(current)
		if !ok {
			break
		}
		if _, seen := visited[next]; seen {
			break
		}
		visited[next] = struct{}{}
		path = append(path, next)
		current = lookup(next)
	}
	slices.Reverse(path)
	return path
}

func nextBlocker(g *model.DependencyGraph) (string, bool) {
	var best *model.RequirementRef
	for i := range g.Prerequisites {
		r := &g.Prerequisites[i]
		if r.RelationType != model.RelationBlocking || r.IsResolved() {
			continue
		}
		if best == nil || r.Priority > best.Priority ||
			(r.Priority == best.Priority && r.ID < best.ID) {
			best = r
		}
	}
	if best == nil {
		return "", false
	}
	return best.ID, true
}
