package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func stamp(e *model.HistoryEvent, id string, at time.Time) *model.HistoryEvent {
	e.ID = id
	e.CreatedAt = at
	return e
}

func TestForCreate(t *testing.T) {
	values := map[string]any{"title": "Login"}
	e := ForCreate("rq-1", "alice", values, Origin{Source: "api", RequestID: "req-9"})
	if e.Action != model.ActionCreate || e.Result != model.ResultSuccess {
		t.Errorf("event = %+v", e)
	}
	if e.Source != "api" || e.RequestID != "req-9" || e.IsSystemAction {
		t.Errorf("origin not applied: %+v", e)
	}
	values["title"] = "changed"
	if e.NewValues["title"] != "Login" {
		t.Error("ForCreate kept a reference to the caller's map")
	}
}

func TestForUpdate_ComputesChangedFields(t *testing.T) {
	e := ForUpdate("rq-1", "alice",
		map[string]any{"title": "a", "priority": 1, "gone": true},
		map[string]any{"title": "b", "priority": 1, "new": "x"},
		nil, Origin{})
	if !slices.Equal(e.ChangedFields, []string{"gone", "new", "title"}) {
		t.Errorf("changed = %v", e.ChangedFields)
	}
	if e.Description != "updated requirement (gone, new, title)" {
		t.Errorf("description = %q", e.Description)
	}
}

func TestForStatusChange(t *testing.T) {
	e := ForStatusChange("rq-1", "bob", "open", "closed", Origin{})
	if e.Description != "status changed: open → closed" {
		t.Errorf("description = %q", e.Description)
	}
	if got := e.FieldChangeDescription("status"); got != "status: open → closed" {
		t.Errorf("field change = %q", got)
	}
}

func TestForAssign(t *testing.T) {
	for _, tc := range []struct {
		old, new, want string
	}{
		{"", "u1", "assigned owner"},
		{"u1", "", "unassigned owner"},
		{"u1", "u2", "reassigned owner"},
	} {
		e := ForAssign("rq-1", "bob", tc.old, tc.new, Origin{})
		if e.Description != tc.want {
			t.Errorf("ForAssign(%q, %q) = %q, want %q", tc.old, tc.new, e.Description, tc.want)
		}
	}
	e := ForAssign("rq-1", "bob", "", "u1", Origin{})
	if e.OldValues["assignee_id"] != nil {
		t.Errorf("old assignee = %v, want nil", e.OldValues["assignee_id"])
	}
}

func TestForEdgeAdd_BothSides(t *testing.T) {
	ed := Edge{Type: model.EdgeBlocking, Source: "a", Target: "b"}
	src := ForEdgeAdd("a", "alice", ed, Origin{})
	dst := ForEdgeAdd("b", "alice", ed, Origin{})

	if src.ChangedFields[0] != "dependents" || dst.ChangedFields[0] != "prerequisites" {
		t.Errorf("fields = %v / %v", src.ChangedFields, dst.ChangedFields)
	}
	if src.RelatedEntities[0].ID != "b" || dst.RelatedEntities[0].ID != "a" {
		t.Errorf("related = %v / %v", src.RelatedEntities, dst.RelatedEntities)
	}
	if src.Description != "added blocking edge a -> b" || !src.HasTag("graph") {
		t.Errorf("src = %+v", src)
	}
	if src.NewValues["edge_type"] != "blocking" || src.OldValues != nil {
		t.Errorf("values = %v / %v", src.OldValues, src.NewValues)
	}
}

func TestForEdgeRemove(t *testing.T) {
	ed := Edge{Type: model.EdgeParent, Source: "p", Target: "c"}
	e := ForEdgeRemove("c", "alice", ed, Origin{Source: "system"})
	if e.Action != model.ActionGraphEdgeRemove || e.ChangedFields[0] != "parent" {
		t.Errorf("event = %+v", e)
	}
	if e.OldValues["source"] != "p" || e.NewValues != nil {
		t.Errorf("values = %v / %v", e.OldValues, e.NewValues)
	}
	if !e.IsSystemAction {
		t.Error("system origin should mark a system action")
	}
}

func TestFailed(t *testing.T) {
	e := Failed(ForDelete("rq-1", "alice", nil, Origin{}), errors.New("disk full"))
	if !e.IsFailed() || e.ErrorMessage != "disk full" {
		t.Errorf("event = %+v", e)
	}
}

func TestDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("f", 600)
	e := ForUpdate("rq-1", "alice", nil, map[string]any{long: 1}, nil, Origin{})
	if n := len([]rune(e.Description)); n != model.MaxDescriptionLength {
		t.Errorf("description length = %d", n)
	}
	if err := model.ValidateHistoryEvent(e); err != nil {
		t.Errorf("truncated event invalid: %v", err)
	}
}

func TestOriginContext(t *testing.T) {
	ctx := WithOrigin(context.Background(), Origin{Source: "cli"})
	if OriginFrom(ctx).Source != "cli" {
		t.Error("origin not carried by context")
	}
	if OriginFrom(context.Background()) != (Origin{}) {
		t.Error("bare context should yield zero origin")
	}
}

func TestMemoryLedger_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	for i, action := range []model.HistoryAction{model.ActionCreate, model.ActionUpdate, model.ActionStatusChange} {
		e := &model.HistoryEvent{
			RequirementID: "rq-1", OperatorID: "alice", Action: action,
			Description: string(action), Result: model.ResultSuccess,
		}
		if err := l.Append(ctx, stamp(e, fmt.Sprintf("h%d", i), t0.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := l.QueryByRequirement(ctx, "rq-1", model.HistoryFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 || got[0].ID != "h2" || got[2].ID != "h0" {
		t.Errorf("default order = %v", ids(got))
	}

	got, _ = l.QueryByRequirement(ctx, "rq-1", model.HistoryFilter{Ascending: true, Limit: 2})
	if !slices.Equal(ids(got), []string{"h0", "h1"}) {
		t.Errorf("ascending limit = %v", ids(got))
	}

	got, _ = l.QueryByRequirement(ctx, "rq-1", model.HistoryFilter{Actions: []model.HistoryAction{model.ActionUpdate}})
	if !slices.Equal(ids(got), []string{"h1"}) {
		t.Errorf("action filter = %v", ids(got))
	}

	got, _ = l.QueryByRequirement(ctx, "rq-2", model.HistoryFilter{})
	if len(got) != 0 {
		t.Errorf("other requirement = %v", ids(got))
	}
}

func TestMemoryLedger_Immutable(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	e := stamp(ForCreate("rq-1", "alice", map[string]any{"k": "v"}, Origin{}), "h1", t0)
	if err := l.Append(ctx, e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	e.Description = "tampered"

	got, _ := l.QueryByRequirement(ctx, "rq-1", model.HistoryFilter{})
	got[0].NewValues["k"] = "tampered"

	again, _ := l.QueryByRequirement(ctx, "rq-1", model.HistoryFilter{})
	if again[0].Description != "created requirement" || again[0].NewValues["k"] != "v" {
		t.Errorf("stored event was mutated: %+v", again[0])
	}
}

func TestMemoryLedger_Rejects(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	if err := l.Append(ctx, ForCreate("rq-1", "alice", nil, Origin{})); err == nil {
		t.Error("event without id should be rejected")
	}
	bad := stamp(&model.HistoryEvent{RequirementID: "rq-1", Action: model.ActionCreate, Description: "x"}, "h1", t0)
	var ve *model.ValidationError
	if err := l.Append(ctx, bad); !errors.As(err, &ve) {
		t.Errorf("missing operator err = %v, want *ValidationError", err)
	}
	ok := stamp(ForCreate("rq-1", "alice", nil, Origin{}), "h2", t0)
	if err := l.Append(ctx, ok); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(ctx, ok); err == nil {
		t.Error("duplicate id should be rejected")
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestMemoryLedger_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := stamp(ForCreate("rq-1", "alice", nil, Origin{}), fmt.Sprintf("h%d", i), t0)
			if err := l.Append(ctx, e); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()
	if l.Len() != 50 {
		t.Errorf("Len = %d, want 50", l.Len())
	}
}

func TestFilterEvents_StableOnEqualTimestamps(t *testing.T) {
	events := []*model.HistoryEvent{
		{ID: "a", CreatedAt: t0},
		{ID: "b", CreatedAt: t0},
		{ID: "c", CreatedAt: t0},
	}
	if got := ids(FilterEvents(events, model.HistoryFilter{})); !slices.Equal(got, []string{"c", "b", "a"}) {
		t.Errorf("newest first = %v", got)
	}
	if got := ids(FilterEvents(events, model.HistoryFilter{Ascending: true})); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("ascending = %v", got)
	}
	if events[0].ID != "a" {
		t.Error("input slice reordered")
	}
}

func TestDiff(t *testing.T) {
	got := Diff(map[string]any{"a": []int{1}, "b": 2}, map[string]any{"a": []int{1}, "b": 3})
	if !slices.Equal(got, []string{"b"}) {
		t.Errorf("Diff = %v", got)
	}
	if got := Diff(nil, nil); len(got) != 0 {
		t.Errorf("Diff(nil, nil) = %v", got)
	}
}

func ids(events []*model.HistoryEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestMemoryLedger_AppendAllIsAtomic(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	good := stamp(ForCreate("rq-1", "alice", nil, Origin{}), "h1", t0)
	bad := stamp(ForCreate("rq-2", "", nil, Origin{}), "h2", t0)

	if err := l.AppendAll(ctx, []*model.HistoryEvent{good, bad}); err == nil {
		t.Fatal("expected validation error")
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d after failed batch, want 0", l.Len())
	}
	if err := l.AppendAll(ctx, []*model.HistoryEvent{good}); err != nil {
		t.Fatalf("AppendAll: %v", err)
	}
	if err := l.AppendAll(ctx, []*model.HistoryEvent{good}); err == nil {
		t.Error("re-appending a stored id should fail")
	}
}
