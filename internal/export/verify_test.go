package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alfredjeanlab/reqgraph/internal/graph"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store/memory"
)

// snapshotOf returns fresh records for ids, in order, and a way to link
// them without any of the service's checks.
func snapshotOf(ids ...string) (*Snapshot, func(src, dst string, t model.EdgeType)) {
	snap := &Snapshot{}
	byID := map[string]*model.DependencyGraph{}
	for _, id := range ids {
		g := model.NewDependencyGraph(id, t0)
		byID[id] = g
		snap.Graphs = append(snap.Graphs, g)
	}
	link := func(src, dst string, t model.EdgeType) {
		graph.Link(byID[src], byID[dst], t, model.Snapshot{Status: "open"}, model.Snapshot{Status: "open"}, t0)
	}
	return snap, link
}

func TestVerify_Valid(t *testing.T) {
	snap, link := snapshotOf("rq-a", "rq-b", "rq-c", "rq-epic")
	link("rq-a", "rq-b", model.EdgeBlocking)
	link("rq-b", "rq-c", model.EdgeBlocking)
	link("rq-a", "rq-c", model.EdgeRelated)
	link("rq-b", "rq-a", model.EdgeDuplicate)
	link("rq-epic", "rq-a", model.EdgeParent)

	if err := snap.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_SkipsRefsOutsideExport(t *testing.T) {
	snap, link := snapshotOf("rq-a", "rq-b")
	link("rq-a", "rq-b", model.EdgeBlocking)
	snap.Graphs = snap.Graphs[:1]

	if err := snap.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_Rejects(t *testing.T) {
	for _, tc := range []struct {
		name  string
		build func() *Snapshot
		want  string
	}{
		{"BlockingCycle", func() *Snapshot {
			snap, link := snapshotOf("rq-a", "rq-b", "rq-c")
			link("rq-a", "rq-b", model.EdgeBlocking)
			link("rq-b", "rq-c", model.EdgeBlocking)
			link("rq-c", "rq-a", model.EdgeBlocking)
			return snap
		}, "cycle"},
		{"ParentCycle", func() *Snapshot {
			snap, link := snapshotOf("rq-a", "rq-b")
			link("rq-a", "rq-b", model.EdgeParent)
			link("rq-b", "rq-a", model.EdgeParent)
			return snap
		}, "cycle"},
		{"PrerequisiteAndDependent", func() *Snapshot {
			snap, link := snapshotOf("rq-a", "rq-b")
			link("rq-a", "rq-b", model.EdgeBlocking)
			link("rq-b", "rq-a", model.EdgeBlocking)
			return snap
		}, "also a prerequisite"},
		{"OneSidedBlocking", func() *Snapshot {
			snap, link := snapshotOf("rq-a", "rq-b")
			link("rq-a", "rq-b", model.EdgeBlocking)
			snap.Graphs[1].Prerequisites = nil
			return snap
		}, "not recorded on rq-b"},
		{"OneSidedRelated", func() *Snapshot {
			snap, link := snapshotOf("rq-a", "rq-b")
			link("rq-a", "rq-b", model.EdgeRelated)
			snap.Graphs[0].Related = nil
			return snap
		}, "not recorded on rq-a"},
		{"OrphanedSubtask", func() *Snapshot {
			snap, link := snapshotOf("rq-epic", "rq-a")
			link("rq-epic", "rq-a", model.EdgeParent)
			snap.Graphs[0].Subtasks = nil
			return snap
		}, "does not list it"},
		{"DuplicateRecord", func() *Snapshot {
			snap, _ := snapshotOf("rq-a", "rq-a")
			return snap
		}, "exported twice"},
		{"InvalidRecord", func() *Snapshot {
			snap, _ := snapshotOf(strings.Repeat("x", model.MaxRequirementIDLength+1))
			return snap
		}, "requirement_id"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.build().Verify()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Verify() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestVerify_CycleErrorWrapsSentinel(t *testing.T) {
	snap, link := snapshotOf("rq-a", "rq-b", "rq-c")
	link("rq-a", "rq-b", model.EdgeBlocking)
	link("rq-b", "rq-c", model.EdgeBlocking)
	link("rq-c", "rq-a", model.EdgeBlocking)
	if err := snap.Verify(); !errors.Is(err, graph.ErrCycleDetected) {
		t.Fatalf("Verify() = %v, want ErrCycleDetected", err)
	}
}

func TestReadJSONL_RejectsCorruptGraphs(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	a, b := model.NewDependencyGraph("rq-a", t0), model.NewDependencyGraph("rq-b", t0)
	graph.Link(a, b, model.EdgeBlocking, model.Snapshot{}, model.Snapshot{}, t0)
	b.Prerequisites = nil
	for _, g := range []*model.DependencyGraph{a, b} {
		if err := st.CreateGraph(ctx, g); err != nil {
			t.Fatalf("CreateGraph: %v", err)
		}
	}

	var buf bytes.Buffer
	if _, err := ExportJSONL(ctx, st, &buf, t0); err != nil {
		t.Fatalf("export: %v", err)
	}
	_, err := ReadJSONL(&buf)
	if err == nil || !strings.Contains(err.Error(), "verify export") {
		t.Fatalf("ReadJSONL() = %v, want a verify error", err)
	}
}
