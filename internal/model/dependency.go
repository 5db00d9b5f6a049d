package model

import "time"

// EdgeType categorizes a mutation on the dependency graph.
//
// For EdgeBlocking the source blocks the target: the target lists the source
// as a prerequisite and the source lists the target as a dependent.
// For EdgeParent the source is the parent and the target is its subtask.
// EdgeRelated and EdgeDuplicate are symmetric.
type EdgeType string

const (
	EdgeBlocking  EdgeType = "blocking"
	EdgeRelated   EdgeType = "related"
	EdgeDuplicate EdgeType = "duplicate"
	EdgeParent    EdgeType = "parent"
)

// String returns the string representation of the edge type.
func (e EdgeType) String() string {
	return string(e)
}

// IsValid checks whether the edge type is a known value.
func (e EdgeType) IsValid() bool {
	switch e {
	case EdgeBlocking, EdgeRelated, EdgeDuplicate, EdgeParent:
		return true
	}
	return false
}

// ParseEdgeType converts user input to an EdgeType. "subtask" is accepted as
// an alias for EdgeParent and "blocks" for EdgeBlocking.
func ParseEdgeType(s string) (EdgeType, bool) {
	switch s {
	case "subtask":
		return EdgeParent, true
	case "blocks":
		return EdgeBlocking, true
	}
	e := EdgeType(s)
	return e, e.IsValid()
}

// Relation returns the relation type recorded on refs created by this edge.
func (e EdgeType) Relation() RelationType {
	switch e {
	case EdgeBlocking:
		return RelationBlocking
	case EdgeRelated:
		return RelationRelated
	case EdgeDuplicate:
		return RelationDuplicate
	case EdgeParent:
		return RelationSubtask
	}
	return ""
}

// Impact is the estimated impact tier of a requirement.
type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"
)

// String returns the string representation of the impact tier.
func (i Impact) String() string {
	return string(i)
}

// Statistics holds the rollup counters of a DependencyGraph. Every field is
// derived from the relation lists; nothing here is edited by hand.
type Statistics struct {
	TotalPrerequisites int       `json:"total_prerequisites"`
	TotalDependents    int       `json:"total_dependents"`
	TotalRelated       int       `json:"total_related"`
	TotalDuplicates    int       `json:"total_duplicates"`
	TotalSubtasks      int       `json:"total_subtasks"`
	CompletedSubtasks  int       `json:"completed_subtasks"`
	BlockedByCount     int       `json:"blocked_by_count"`
	BlockingCount      int       `json:"blocking_count"`
	CriticalPath       []string  `json:"critical_path"`
	EstimatedImpact    Impact    `json:"estimated_impact"`
	LastUpdated        time.Time `json:"last_updated"`
}

// DependencyGraph is the per-requirement record of dependency edges. Each edge
// is a shared fact: both endpoint records carry their half of it.
type DependencyGraph struct {
	RequirementID string           `json:"requirement_id"`
	Prerequisites []RequirementRef `json:"prerequisites,omitempty"`
	Dependents    []RequirementRef `json:"dependents,omitempty"`
	Related       []RequirementRef `json:"related,omitempty"`
	Duplicates    []RequirementRef `json:"duplicates,omitempty"`
	Subtasks      []RequirementRef `json:"subtasks,omitempty"`
	Parent        *RequirementRef  `json:"parent,omitempty"`
	Statistics    Statistics       `json:"statistics"`
	GraphConfig   *GraphConfig     `json:"graph_config,omitempty"`

	// Version is the optimistic lock token. Stores reject a save whose
	// Version does not match the persisted one, and bump it on success.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDependencyGraph returns an empty record for requirementID.
func NewDependencyGraph(requirementID string, now time.Time) *DependencyGraph {
	return &DependencyGraph{
		RequirementID: requirementID,
		Statistics: Statistics{
			CriticalPath:    []string{},
			EstimatedImpact: ImpactLow,
			LastUpdated:     now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GraphConfig holds presentation-only layout hints for dependency graph
// rendering.
type GraphConfig struct {
	Layout       string            `json:"layout"`    // hierarchical, force, circular, grid
	Direction    string            `json:"direction"` // top-bottom, bottom-top, left-right, right-left
	NodeSpacing  int               `json:"node_spacing"`
	LevelSpacing int               `json:"level_spacing"`
	ShowLabels   bool              `json:"show_labels"`
	ShowTypes    bool              `json:"show_types"`
	ColorScheme  map[string]string `json:"color_scheme,omitempty"`
	CustomStyles map[string]any    `json:"custom_styles,omitempty"`
}

// DefaultGraphConfig returns the layout used when none has been set.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		Layout:       "hierarchical",
		Direction:    "top-bottom",
		NodeSpacing:  100,
		LevelSpacing: 150,
		ShowLabels:   true,
		ShowTypes:    true,
		ColorScheme: map[string]string{
			string(RelationBlocking):  "#ff4757",
			string(RelationRelated):   "#3742fa",
			string(RelationDuplicate): "#ffa502",
			string(RelationSubtask):   "#2ed573",
		},
	}
}

// GraphConfigPatch is a partial update of a GraphConfig. Nil fields keep the
// current value.
type GraphConfigPatch struct {
	Layout       *string           `json:"layout,omitempty"`
	Direction    *string           `json:"direction,omitempty"`
	NodeSpacing  *int              `json:"node_spacing,omitempty"`
	LevelSpacing *int              `json:"level_spacing,omitempty"`
	ShowLabels   *bool             `json:"show_labels,omitempty"`
	ShowTypes    *bool             `json:"show_types,omitempty"`
	ColorScheme  map[string]string `json:"color_scheme,omitempty"`
	CustomStyles map[string]any    `json:"custom_styles,omitempty"`
}

// MergeGraphConfig applies patch on top of current, falling back to the
// defaults when current is nil.
func MergeGraphConfig(current *GraphConfig, patch GraphConfigPatch) GraphConfig {
	out := DefaultGraphConfig()
	if current != nil {
		out = *current
		out.ColorScheme = copyStringMap(current.ColorScheme)
		out.CustomStyles = copyAnyMap(current.CustomStyles)
	}
	if patch.Layout != nil {
		out.Layout = *patch.Layout
	}
	if patch.Direction != nil {
		out.Direction = *patch.Direction
	}
	if patch.NodeSpacing != nil {
		out.NodeSpacing = *patch.NodeSpacing
	}
	if patch.LevelSpacing != nil {
		out.LevelSpacing = *patch.LevelSpacing
	}
	if patch.ShowLabels != nil {
		out.ShowLabels = *patch.ShowLabels
	}
	if patch.ShowTypes != nil {
		out.ShowTypes = *patch.ShowTypes
	}
	if len(patch.ColorScheme) > 0 {
		if out.ColorScheme == nil {
			out.ColorScheme = map[string]string{}
		}
		for k, v := range patch.ColorScheme {
			out.ColorScheme[k] = v
		}
	}
	if len(patch.CustomStyles) > 0 {
		if out.CustomStyles == nil {
			out.CustomStyles = map[string]any{}
		}
		for k, v := range patch.CustomStyles {
			out.CustomStyles[k] = v
		}
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
