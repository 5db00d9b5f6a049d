package export

import (
	"fmt"

	"github.com/alfredjeanlab/reqgraph/internal/graph"
	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// Verify checks a decoded export as a whole. Every graph must pass
// model.ValidateGraph, every edge must be recorded on both of its records,
// and no blocking or parent edge may close a cycle. Refs to requirements
// that have no record in the export are not followed.
func (s *Snapshot) Verify() error {
	byID := make(map[string]*model.DependencyGraph, len(s.Graphs))
	for _, g := range s.Graphs {
		if err := model.ValidateGraph(g); err != nil {
			return fmt.Errorf("graph %s: %w", g.RequirementID, err)
		}
		if _, dup := byID[g.RequirementID]; dup {
			return fmt.Errorf("graph %s: exported twice", g.RequirementID)
		}
		byID[g.RequirementID] = g
	}
	lookup := graph.MapLookup(byID)

	for _, g := range s.Graphs {
		id := g.RequirementID
		mirrors := []struct {
			refs []model.RequirementRef
			t    model.EdgeType
		}{
			{g.Prerequisites, model.EdgeBlocking},
			{g.Related, model.EdgeRelated},
			{g.Duplicates, model.EdgeDuplicate},
		}
		for _, m := range mirrors {
			for _, r := range m.refs {
				if other := byID[r.ID]; other != nil && !graph.HasEdge(other, id, m.t) {
					return fmt.Errorf("graph %s: %s edge from %s is not recorded on %s", id, m.t, r.ID, r.ID)
				}
			}
		}
		if g.Parent != nil {
			if p := byID[g.Parent.ID]; p != nil && !graph.HasEdge(p, id, model.EdgeParent) {
				return fmt.Errorf("graph %s: parent %s does not list it as a subtask", id, g.Parent.ID)
			}
		}

		for _, d := range g.Dependents {
			dst := byID[d.ID]
			if dst == nil {
				continue
			}
			if graph.IndexOf(dst.Prerequisites, id) < 0 {
				return fmt.Errorf("graph %s: blocking edge to %s is not recorded on %s", id, d.ID, d.ID)
			}
			// An existing edge closes a cycle exactly when adding it again would.
			if err := graph.CanAddEdge(model.EdgeBlocking, id, d.ID, lookup); err != nil {
				return fmt.Errorf("graph %s: %w", id, err)
			}
		}
		for _, sub := range g.Subtasks {
			child := byID[sub.ID]
			if child == nil {
				continue
			}
			if child.Parent == nil || child.Parent.ID != id {
				return fmt.Errorf("graph %s: subtask %s has a different parent", id, sub.ID)
			}
			if err := graph.CanAddEdge(model.EdgeParent, id, sub.ID, lookup); err != nil {
				return fmt.Errorf("graph %s: %w", id, err)
			}
		}
	}
	return nil
}
