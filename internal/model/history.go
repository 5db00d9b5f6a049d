package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// HistoryAction is the kind of change a HistoryEvent records.
type HistoryAction string

const (
	ActionCreate          HistoryAction = "create"
	ActionUpdate          HistoryAction = "update"
	ActionDelete          HistoryAction = "delete"
	ActionStatusChange    HistoryAction = "status_change"
	ActionAssign          HistoryAction = "assign"
	ActionGraphEdgeAdd    HistoryAction = "graph_edge_add"
	ActionGraphEdgeRemove HistoryAction = "graph_edge_remove"
)

// String returns the string representation of the action.
func (a HistoryAction) String() string {
	return string(a)
}

// IsBuiltin reports whether a is one of the lifecycle actions defined here.
func (a HistoryAction) IsBuiltin() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionStatusChange,
		ActionAssign, ActionGraphEdgeAdd, ActionGraphEdgeRemove:
		return true
	}
	return false
}

// IsValid checks whether the action is a builtin or a namespaced extension of
// the form "namespace:action". Both halves of an extension must be non-empty
// and free of whitespace.
func (a HistoryAction) IsValid() bool {
	if a.IsBuiltin() {
		return true
	}
	ns, name, ok := strings.Cut(string(a), ":")
	if !ok || ns == "" || name == "" {
		return false
	}
	return !strings.ContainsAny(string(a), " \t\r\n")
}

// HistoryResult is the outcome recorded on a HistoryEvent.
type HistoryResult string

const (
	ResultSuccess HistoryResult = "success"
	ResultFailed  HistoryResult = "failed"
	ResultPartial HistoryResult = "partial"
)

// IsValid checks whether the result is a known value.
func (r HistoryResult) IsValid() bool {
	switch r {
	case ResultSuccess, ResultFailed, ResultPartial:
		return true
	}
	return false
}

// RelatedEntity names another entity an event touched.
type RelatedEntity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// HistoryEvent is one immutable entry in a requirement's change ledger.
type HistoryEvent struct {
	ID             string         `json:"id"`
	RequirementID  string         `json:"requirement_id"`
	OperatorID     string         `json:"operator_id"`
	Action         HistoryAction  `json:"action"`
	Description    string         `json:"description"`
	OldValues      map[string]any `json:"old_values,omitempty"`
	NewValues      map[string]any `json:"new_values,omitempty"`
	ChangedFields  []string       `json:"changed_fields,omitempty"`
	IsSystemAction bool           `json:"is_system_action"`
	Result         HistoryResult  `json:"result"`
	ErrorMessage   string         `json:"error_message,omitempty"`

	Source          string          `json:"source,omitempty"` // web, api, cli, system
	UserAgent       string          `json:"user_agent,omitempty"`
	IPAddress       string          `json:"ip_address,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	RequestID       string          `json:"request_id,omitempty"`
	DurationMS      *int64          `json:"duration_ms,omitempty"`
	ExtraData       map[string]any  `json:"extra_data,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	RelatedEntities []RelatedEntity `json:"related_entities,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsSuccessful reports whether the event records a successful change. An
// empty result counts as success.
func (e *HistoryEvent) IsSuccessful() bool {
	return e.Result == ResultSuccess || e.Result == ""
}

// IsFailed reports whether the event records a failed attempt.
func (e *HistoryEvent) IsFailed() bool {
	return e.Result == ResultFailed
}

// HasFieldChanges reports whether any changed fields were recorded.
func (e *HistoryEvent) HasFieldChanges() bool {
	return len(e.ChangedFields) > 0
}

// HasFieldChanged reports whether field is among the changed fields.
func (e *HistoryEvent) HasFieldChanged(field string) bool {
	return slices.Contains(e.ChangedFields, field)
}

// FieldChangeDescription renders "field: old → new" for a changed field, or
// "" if the field did not change.
func (e *HistoryEvent) FieldChangeDescription(field string) string {
	if !e.HasFieldChanged(field) {
		return ""
	}
	return fmt.Sprintf("%s: %v → %v", field, e.OldValues[field], e.NewValues[field])
}

// FieldChangeDescriptions renders every changed field in recorded order.
func (e *HistoryEvent) FieldChangeDescriptions() []string {
	out := make([]string, 0, len(e.ChangedFields))
	for _, f := range e.ChangedFields {
		out = append(out, e.FieldChangeDescription(f))
	}
	return out
}

// HasTag reports whether the event carries tag.
func (e *HistoryEvent) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// AddTag adds tag if absent. Only valid before the event is appended.
func (e *HistoryEvent) AddTag(tag string) {
	if !e.HasTag(tag) {
		e.Tags = append(e.Tags, tag)
	}
}

// AddRelatedEntity records ent if no entity of the same type and id exists.
// Only valid before the event is appended.
func (e *HistoryEvent) AddRelatedEntity(ent RelatedEntity) {
	for _, r := range e.RelatedEntities {
		if r.Type == ent.Type && r.ID == ent.ID {
			return
		}
	}
	e.RelatedEntities = append(e.RelatedEntities, ent)
}

// Clone returns a deep copy of the event.
func (e *HistoryEvent) Clone() *HistoryEvent {
	if e == nil {
		return nil
	}
	out := *e
	out.OldValues = copyAnyMap(e.OldValues)
	out.NewValues = copyAnyMap(e.NewValues)
	out.ExtraData = copyAnyMap(e.ExtraData)
	out.ChangedFields = slices.Clone(e.ChangedFields)
	out.Tags = slices.Clone(e.Tags)
	out.RelatedEntities = slices.Clone(e.RelatedEntities)
	if e.DurationMS != nil {
		d := *e.DurationMS
		out.DurationMS = &d
	}
	return &out
}
