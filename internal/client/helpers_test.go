package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/clock"
	"github.com/alfredjeanlab/reqgraph/internal/idgen"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/server"
	"github.com/alfredjeanlab/reqgraph/internal/service"
	"github.com/alfredjeanlab/reqgraph/internal/store/memory"
)

var t0 = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

// serverEnv is a real server over an in-memory store.
type serverEnv struct {
	srv     *server.Server
	store   *memory.MemoryStore
	handler http.Handler
}

func newServerEnv(t *testing.T, ids ...string) *serverEnv {
	t.Helper()
	st := memory.New()
	for _, id := range ids {
		if err := st.CreateGraph(context.Background(), model.NewDependencyGraph(id, t0)); err != nil {
			t.Fatalf("seeding %s: %v", id, err)
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(st,
		service.WithClock(clock.Fake(t0)),
		service.WithIDFunc(idgen.Sequence("h-")),
		service.WithLogger(logger),
	)
	srv := server.New(svc, nil, logger)
	return &serverEnv{srv: srv, store: st, handler: srv.NewHTTPHandler("")}
}

// exerciseClient drives every GraphClient method against env. The client
// must be configured with actor "alice".
func exerciseClient(t *testing.T, c GraphClient, env *serverEnv) {
	t.Helper()
	ctx := context.Background()

	status, err := c.Health(ctx)
	if err != nil || status != "ok" {
		t.Fatalf("Health() = %q, %v", status, err)
	}

	ensured, err := c.EnsureGraph(ctx, "rq-epic")
	if err != nil {
		t.Fatalf("EnsureGraph() error = %v", err)
	}
	if !ensured.Created || ensured.Graph.RequirementID != "rq-epic" {
		t.Fatalf("EnsureGraph() = %+v", ensured)
	}

	if _, err := c.AddEdge(ctx, &AddEdgeRequest{
		Source:         "rq-a",
		Target:         "rq-b",
		Type:           model.EdgeBlocking,
		SourceSnapshot: model.Snapshot{Title: "Schema", Status: "open"},
	}); err != nil {
		t.Fatalf("AddEdge() error = %v", err)
	}

	_, err = c.AddEdge(ctx, &AddEdgeRequest{Source: "rq-b", Target: "rq-a", Type: model.EdgeBlocking})
	if KindOf(err) != service.KindCycleDetected {
		t.Fatalf("reverse AddEdge() error = %v, want cycle_detected", err)
	}
	_, err = c.GetDependencyView(ctx, "rq-missing")
	if KindOf(err) != service.KindNotFound {
		t.Fatalf("GetDependencyView(missing) error = %v, want not_found", err)
	}

	view, err := c.GetDependencyView(ctx, "rq-b")
	if err != nil {
		t.Fatalf("GetDependencyView() error = %v", err)
	}
	if !view.IsBlocked || len(view.Prerequisites) != 1 || view.Prerequisites[0].Title != "Schema" {
		t.Fatalf("view = %+v", view)
	}

	path, err := c.RefreshCriticalPath(ctx, "rq-b")
	if err != nil || len(path) != 1 || path[0] != "rq-a" {
		t.Fatalf("RefreshCriticalPath() = %v, %v", path, err)
	}

	if err := c.SetParent(ctx, "rq-a", "rq-epic"); err != nil {
		t.Fatalf("SetParent() error = %v", err)
	}
	if err := c.UpdateSubtaskProgress(ctx, "rq-epic", "rq-a", 55); err != nil {
		t.Fatalf("UpdateSubtaskProgress() error = %v", err)
	}
	if err := c.ClearParent(ctx, "rq-a"); err != nil {
		t.Fatalf("ClearParent() error = %v", err)
	}

	layout := "grid"
	cfg, err := c.SetGraphConfig(ctx, "rq-b", model.GraphConfigPatch{Layout: &layout})
	if err != nil || cfg.Layout != "grid" {
		t.Fatalf("SetGraphConfig() = %+v, %v", cfg, err)
	}

	stored, err := c.RecordChange(ctx, &model.HistoryEvent{
		RequirementID: "rq-b",
		Action:        model.ActionStatusChange,
		Description:   "status changed: open → in_progress",
		ChangedFields: []string{"status"},
	})
	if err != nil {
		t.Fatalf("RecordChange() error = %v", err)
	}
	if stored.OperatorID != "alice" || stored.ID == "" {
		t.Fatalf("stored = %+v", stored)
	}

	if err := c.RemoveEdge(ctx, "rq-a", "rq-b", model.EdgeBlocking); err != nil {
		t.Fatalf("RemoveEdge() error = %v", err)
	}

	evs, err := c.GetHistory(ctx, "rq-a", model.HistoryFilter{Ascending: true})
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	var actions []model.HistoryAction
	for _, e := range evs {
		if e.OperatorID != "alice" {
			t.Errorf("event %s operator = %q, want alice", e.ID, e.OperatorID)
		}
		actions = append(actions, e.Action)
	}
	want := []model.HistoryAction{
		model.ActionGraphEdgeAdd,
		model.ActionGraphEdgeAdd,
		model.ActionGraphEdgeRemove,
		model.ActionGraphEdgeRemove,
	}
	if len(actions) != len(want) {
		t.Fatalf("rq-a actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("rq-a actions = %v, want %v", actions, want)
		}
	}

	g, err := env.store.LoadGraph(ctx, "rq-b")
	if err != nil {
		t.Fatalf("LoadGraph() error = %v", err)
	}
	if len(g.Prerequisites) != 0 || g.GraphConfig == nil {
		t.Fatalf("rq-b after scenario = %+v", g)
	}
}
