package history

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// Origin describes where a change came from. Transports attach it to the
// request context and the service copies it onto every event it records.
type Origin struct {
	Source    string // web, api, grpc, cli, system
	UserAgent string
	IPAddress string
	SessionID string
	RequestID string
}

type originKey struct{}

// WithOrigin returns a copy of ctx carrying o.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// OriginFrom returns the Origin attached to ctx, or the zero Origin.
func OriginFrom(ctx context.Context) Origin {
	o, _ := ctx.Value(originKey{}).(Origin)
	return o
}

// Apply copies o onto e's context fields. A "system" source marks e as a
// system action.
func (o Origin) Apply(e *model.HistoryEvent) *model.HistoryEvent {
	e.Source = o.Source
	e.UserAgent = o.UserAgent
	e.IPAddress = o.IPAddress
	e.SessionID = o.SessionID
	e.RequestID = o.RequestID
	e.IsSystemAction = o.Source == "system"
	return e
}

func newEvent(action model.HistoryAction, requirementID, operatorID, desc string, o Origin) *model.HistoryEvent {
	return o.Apply(&model.HistoryEvent{
		Action:        action,
		Description:   truncate(desc),
		RequirementID: requirementID,
		OperatorID:    operatorID,
		Result:        model.ResultSuccess,
	})
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= model.MaxDescriptionLength {
		return s
	}
	return string(r[:model.MaxDescriptionLength-1]) + "…"
}

// ForCreate records the creation of a requirement's graph record.
func ForCreate(requirementID, operatorID string, values map[string]any, o Origin) *model.HistoryEvent {
	e := newEvent(model.ActionCreate, requirementID, operatorID, "created requirement", o)
	e.NewValues = maps.Clone(values)
	return e
}

// ForUpdate records a field update. When changed is nil it is computed from
// the two value maps.
func ForUpdate(requirementID, operatorID string, oldValues, newValues map[string]any, changed []string, o Origin) *model.HistoryEvent {
	if changed == nil {
		changed = Diff(oldValues, newValues)
	}
	desc := fmt.Sprintf("updated requirement (%s)", strings.Join(changed, ", "))
	e := newEvent(model.ActionUpdate, requirementID, operatorID, desc, o)
	e.OldValues = maps.Clone(oldValues)
	e.NewValues = maps.Clone(newValues)
	e.ChangedFields = slices.Clone(changed)
	return e
}

// ForDelete records the deletion of a requirement.
func ForDelete(requirementID, operatorID string, values map[string]any, o Origin) *model.HistoryEvent {
	e := newEvent(model.ActionDelete, requirementID, operatorID, "deleted requirement", o)
	e.OldValues = maps.Clone(values)
	return e
}

// ForStatusChange records a status transition.
func ForStatusChange(requirementID, operatorID, oldStatus, newStatus string, o Origin) *model.HistoryEvent {
	desc := fmt.Sprintf("status changed: %s → %s", oldStatus, newStatus)
	e := newEvent(model.ActionStatusChange, requirementID, operatorID, desc, o)
	e.OldValues = map[string]any{"status": oldStatus}
	e.NewValues = map[string]any{"status": newStatus}
	e.ChangedFields = []string{"status"}
	return e
}

// ForAssign records an assignment change. Empty ids mean "unassigned".
func ForAssign(requirementID, operatorID, oldAssignee, newAssignee string, o Origin) *model.HistoryEvent {
	var desc string
	switch {
	case oldAssignee == "" && newAssignee != "":
		desc = "assigned owner"
	case oldAssignee != "" && newAssignee == "":
		desc = "unassigned owner"
	default:
		desc = "reassigned owner"
	}
	e := newEvent(model.ActionAssign, requirementID, operatorID, desc, o)
	e.OldValues = map[string]any{"assignee_id": nullable(oldAssignee)}
	e.NewValues = map[string]any{"assignee_id": nullable(newAssignee)}
	e.ChangedFields = []string{"assignee_id"}
	return e
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Edge identifies a graph edge: source blocks, relates to, duplicates or
// contains target.
type Edge struct {
	Type   model.EdgeType
	Source string
	Target string
}

func (ed Edge) values() map[string]any {
	return map[string]any{
		"edge_type": string(ed.Type),
		"source":    ed.Source,
		"target":    ed.Target,
	}
}

// Field returns the relation field an edge touches on the given side.
func (ed Edge) Field(requirementID string) string {
	isSource := requirementID == ed.Source
	switch ed.Type {
	case model.EdgeBlocking:
		if isSource {
			return "dependents"
		}
		return "prerequisites"
	case model.EdgeParent:
		if isSource {
			return "subtasks"
		}
		return "parent"
	case model.EdgeDuplicate:
		return "duplicates"
	}
	return "related"
}

// Other returns the endpoint that is not requirementID.
func (ed Edge) Other(requirementID string) string {
	if requirementID == ed.Source {
		return ed.Target
	}
	return ed.Source
}

func (ed Edge) String() string {
	return fmt.Sprintf("%s %s %s", ed.Source, ed.Type, ed.Target)
}

func edgeEvent(action model.HistoryAction, verb, requirementID, operatorID string, ed Edge, o Origin) *model.HistoryEvent {
	field := ed.Field(requirementID)
	desc := fmt.Sprintf("%s %s edge %s -> %s", verb, ed.Type, ed.Source, ed.Target)
	e := newEvent(action, requirementID, operatorID, desc, o)
	e.ChangedFields = []string{field}
	e.AddTag("graph")
	e.AddRelatedEntity(model.RelatedEntity{Type: "requirement", ID: ed.Other(requirementID)})
	return e
}

// ForEdgeAdd records the addition of ed on requirementID's side.
func ForEdgeAdd(requirementID, operatorID string, ed Edge, o Origin) *model.HistoryEvent {
	e := edgeEvent(model.ActionGraphEdgeAdd, "added", requirementID, operatorID, ed, o)
	e.NewValues = ed.values()
	return e
}

// ForEdgeRemove records the removal of ed on requirementID's side.
func ForEdgeRemove(requirementID, operatorID string, ed Edge, o Origin) *model.HistoryEvent {
	e := edgeEvent(model.ActionGraphEdgeRemove, "removed", requirementID, operatorID, ed, o)
	e.OldValues = ed.values()
	return e
}

// Failed marks e as a failed attempt carrying err's message.
func Failed(e *model.HistoryEvent, err error) *model.HistoryEvent {
	e.Result = model.ResultFailed
	if err != nil {
		e.ErrorMessage = err.Error()
	} else {
		e.ErrorMessage = "unknown error"
	}
	return e
}

// Diff returns the sorted keys whose values differ between a and b,
// including keys present on only one side.
func Diff(a, b map[string]any) []string {
	changed := []string{}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !reflect.DeepEqual(av, bv) {
			changed = append(changed, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			changed = append(changed, k)
		}
	}
	slices.Sort(changed)
	return changed
}
