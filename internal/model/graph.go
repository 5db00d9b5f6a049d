package model

// DependencyView is the read-only projection of a requirement's graph
// returned to callers.
type DependencyView struct {
	RequirementID string           `json:"requirement_id"`
	Prerequisites []RequirementRef `json:"prerequisites"`
	Dependents    []RequirementRef `json:"dependents"`
	Related       []RequirementRef `json:"related"`
	Duplicates    []RequirementRef `json:"duplicates"`
	Subtasks      []RequirementRef `json:"subtasks"`
	Parent        *RequirementRef  `json:"parent,omitempty"`
	Ancestors     []string         `json:"ancestors,omitempty"` // parent chain, nearest first

	IsBlocked             bool             `json:"is_blocked"`
	IsBlocking            bool             `json:"is_blocking"`
	CriticalPath          []string         `json:"critical_path"`
	BlockingPrerequisites []RequirementRef `json:"blocking_prerequisites"`
	BlockedDependents     []RequirementRef `json:"blocked_dependents"`
	SubtaskProgress       int              `json:"subtask_progress"`

	Statistics  Statistics   `json:"statistics"`
	GraphConfig *GraphConfig `json:"graph_config,omitempty"`
	Version     int64        `json:"version"`
}

// GraphEdge represents a dependency relationship as a graph edge, source
// blocking or containing target.
type GraphEdge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
}

// Edges lists the edges this record owns from its own side: blocking edges to
// dependents, containment edges to subtasks, and symmetric edges once per
// pair, emitted only when RequirementID sorts first.
func (g *DependencyGraph) Edges() []GraphEdge {
	var out []GraphEdge
	for _, r := range g.Dependents {
		if r.RelationType == RelationBlocking {
			out = append(out, GraphEdge{Source: g.RequirementID, Target: r.ID, Type: EdgeBlocking})
		}
	}
	for _, r := range g.Subtasks {
		out = append(out, GraphEdge{Source: g.RequirementID, Target: r.ID, Type: EdgeParent})
	}
	for _, r := range g.Related {
		if g.RequirementID < r.ID {
			out = append(out, GraphEdge{Source: g.RequirementID, Target: r.ID, Type: EdgeRelated})
		}
	}
	for _, r := range g.Duplicates {
		if g.RequirementID < r.ID {
			out = append(out, GraphEdge{Source: g.RequirementID, Target: r.ID, Type: EdgeDuplicate})
		}
	}
	return out
}
