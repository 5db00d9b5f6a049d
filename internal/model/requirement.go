package model

import (
	"strings"
	"time"
)

// RelationType is the relation recorded on a RequirementRef.
type RelationType string

const (
	RelationBlocking  RelationType = "blocking"
	RelationRelated   RelationType = "related"
	RelationDuplicate RelationType = "duplicate"
	RelationSubtask   RelationType = "subtask"
)

// String returns the string representation of the relation type.
func (r RelationType) String() string {
	return string(r)
}

// IsValid checks whether the relation type is a known value.
func (r RelationType) IsValid() bool {
	switch r {
	case RelationBlocking, RelationRelated, RelationDuplicate, RelationSubtask:
		return true
	}
	return false
}

// terminalStatuses are the snapshot statuses that count as resolved.
var terminalStatuses = map[string]struct{}{
	"completed": {},
	"closed":    {},
	"resolved":  {},
}

// IsTerminalStatus reports whether a snapshotted status is resolved.
// The comparison is case-insensitive.
func IsTerminalStatus(status string) bool {
	_, ok := terminalStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// Snapshot is the denormalized copy of a requirement's own state that the
// caller supplies when an edge is created. It becomes the RequirementRef
// stored on the opposite endpoint.
type Snapshot struct {
	Title          string   `json:"title,omitempty"`
	Status         string   `json:"status,omitempty"`
	Priority       int      `json:"priority,omitempty"`
	Description    string   `json:"description,omitempty"`
	Progress       *int     `json:"progress,omitempty"`
	AssigneeID     string   `json:"assignee_id,omitempty"`
	AssigneeName   string   `json:"assignee_name,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	ActualHours    *float64 `json:"actual_hours,omitempty"`
}

// RequirementRef is a denormalized snapshot of a related requirement, stored
// on one endpoint of an edge.
type RequirementRef struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	RelationType RelationType `json:"relation_type"`
	Status       string       `json:"status"`
	Priority     int          `json:"priority"`
	Description  string       `json:"description,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	// Subtask-only fields.
	Progress       *int     `json:"progress,omitempty"`
	AssigneeID     string   `json:"assignee_id,omitempty"`
	AssigneeName   string   `json:"assignee_name,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	ActualHours    *float64 `json:"actual_hours,omitempty"`
}

// IsResolved reports whether the snapshotted status is terminal.
func (r RequirementRef) IsResolved() bool {
	return IsTerminalStatus(r.Status)
}

// NewRef builds a RequirementRef for id from a snapshot. Subtask fields are
// only carried when rel is RelationSubtask.
func NewRef(id string, rel RelationType, snap Snapshot, now time.Time) RequirementRef {
	ref := RequirementRef{
		ID:           id,
		Title:        snap.Title,
		RelationType: rel,
		Status:       snap.Status,
		Priority:     snap.Priority,
		Description:  snap.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if rel == RelationSubtask {
		if snap.Progress != nil {
			p := ClampProgress(*snap.Progress)
			ref.Progress = &p
		}
		ref.AssigneeID = snap.AssigneeID
		ref.AssigneeName = snap.AssigneeName
		ref.EstimatedHours = snap.EstimatedHours
		ref.ActualHours = snap.ActualHours
	}
	return ref
}

// ClampProgress bounds a progress percentage to 0..100.
func ClampProgress(p int) int {
	return max(0, min(100, p))
}
