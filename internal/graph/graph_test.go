package graph

import (
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// world is a set of records addressed by id, with helpers to link them the
// way the service does.
type world map[string]*model.DependencyGraph

func newWorld(ids ...string) world {
	w := world{}
	for _, id := range ids {
		w[id] = model.NewDependencyGraph(id, t0)
	}
	return w
}

func (w world) lookup() Lookup { return MapLookup(w) }

func (w world) link(t *testing.T, src, dst string, et model.EdgeType, status string) {
	t.Helper()
	if err := CanAddEdge(et, src, dst, w.lookup()); err != nil {
		t.Fatalf("CanAddEdge(%s, %s, %s): %v", et, src, dst, err)
	}
	Link(w[src], w[dst], et,
		model.Snapshot{Title: src, Status: status},
		model.Snapshot{Title: dst, Status: status}, t0)
	Refresh(w[src], t0)
	Refresh(w[dst], t0)
}

func TestLink_Symmetry(t *testing.T) {
	for _, et := range []model.EdgeType{model.EdgeBlocking, model.EdgeRelated, model.EdgeDuplicate} {
		t.Run(string(et), func(t *testing.T) {
			w := newWorld("a", "b")
			w.link(t, "a", "b", et, "open")

			var aSide, bSide []model.RequirementRef
			switch et {
			case model.EdgeBlocking:
				aSide, bSide = w["a"].Dependents, w["b"].Prerequisites
			case model.EdgeRelated:
				aSide, bSide = w["a"].Related, w["b"].Related
			case model.EdgeDuplicate:
				aSide, bSide = w["a"].Duplicates, w["b"].Duplicates
			}
			if len(aSide) != 1 || aSide[0].ID != "b" || aSide[0].RelationType != et.Relation() {
				t.Errorf("a side = %+v", aSide)
			}
			if len(bSide) != 1 || bSide[0].ID != "a" || bSide[0].RelationType != et.Relation() {
				t.Errorf("b side = %+v", bSide)
			}
			if !HasEdge(w["a"], "b", et) {
				t.Error("HasEdge(a, b) = false")
			}
		})
	}
}

func TestLink_Parent(t *testing.T) {
	w := newWorld("p", "c")
	w.link(t, "p", "c", model.EdgeParent, "open")

	if len(w["p"].Subtasks) != 1 || w["p"].Subtasks[0].ID != "c" {
		t.Fatalf("parent subtasks = %+v", w["p"].Subtasks)
	}
	if w["c"].Parent == nil || w["c"].Parent.ID != "p" {
		t.Fatalf("child parent = %+v", w["c"].Parent)
	}
	if len(w["c"].Subtasks) != 0 || w["p"].Parent != nil {
		t.Error("parent edge leaked onto the wrong side")
	}
}

func TestLink_Idempotent(t *testing.T) {
	w := newWorld("a", "b")
	w.link(t, "a", "b", model.EdgeRelated, "open")
	changed := Link(w["a"], w["b"], model.EdgeRelated, model.Snapshot{}, model.Snapshot{}, t0)
	if changed {
		t.Error("second Link reported a change")
	}
	if len(w["a"].Related) != 1 || len(w["b"].Related) != 1 {
		t.Errorf("related lists = %d, %d, want 1, 1", len(w["a"].Related), len(w["b"].Related))
	}
}

func TestLink_RepairsHalfEdge(t *testing.T) {
	w := newWorld("a", "b")
	w["a"].Related = []model.RequirementRef{model.NewRef("b", model.RelationRelated, model.Snapshot{}, t0)}
	if !Link(w["a"], w["b"], model.EdgeRelated, model.Snapshot{}, model.Snapshot{}, t0) {
		t.Fatal("Link should report a change when one side is missing")
	}
	if len(w["b"].Related) != 1 {
		t.Errorf("b.Related = %+v", w["b"].Related)
	}
}

func TestUnlink_RoundTrip(t *testing.T) {
	for _, et := range []model.EdgeType{model.EdgeBlocking, model.EdgeRelated, model.EdgeDuplicate, model.EdgeParent} {
		t.Run(string(et), func(t *testing.T) {
			w := newWorld("a", "b")
			beforeA, beforeB := Clone(w["a"]), Clone(w["b"])

			w.link(t, "a", "b", et, "open")
			if !Unlink(w["a"], w["b"], et, t0) {
				t.Fatal("Unlink reported no change")
			}
			Refresh(w["a"], t0)
			Refresh(w["b"], t0)

			for _, pair := range []struct{ got, want *model.DependencyGraph }{
				{w["a"], beforeA}, {w["b"], beforeB},
			} {
				if !reflect.DeepEqual(pair.got, pair.want) {
					t.Errorf("record %s not restored:\n got %+v\nwant %+v", pair.want.RequirementID, pair.got, pair.want)
				}
			}
		})
	}
}

func TestUnlink_Absent(t *testing.T) {
	w := newWorld("a", "b")
	if Unlink(w["a"], w["b"], model.EdgeBlocking, t0) {
		t.Error("Unlink of absent edge reported a change")
	}
}

func TestUnlink_ParentOnlyClearsMatchingParent(t *testing.T) {
	w := newWorld("p", "q", "c")
	w.link(t, "p", "c", model.EdgeParent, "open")
	Unlink(w["q"], w["c"], model.EdgeParent, t0)
	if w["c"].Parent == nil || w["c"].Parent.ID != "p" {
		t.Errorf("unrelated unlink cleared parent: %+v", w["c"].Parent)
	}
}

func TestRemoveRef_EmptiesToNil(t *testing.T) {
	refs := []model.RequirementRef{{ID: "x"}}
	out, changed := RemoveRef(refs, "x")
	if !changed || out != nil {
		t.Errorf("RemoveRef = %v, %v; want nil, true", out, changed)
	}
	out, changed = RemoveRef([]model.RequirementRef{{ID: "x"}, {ID: "y"}}, "x")
	if !changed || len(out) != 1 || out[0].ID != "y" {
		t.Errorf("RemoveRef = %v, %v", out, changed)
	}
}

func TestUpdateSubtaskProgress(t *testing.T) {
	w := newWorld("p", "c")
	w.link(t, "p", "c", model.EdgeParent, "open")

	changed, err := UpdateSubtaskProgress(w["p"], "c", 250, t0)
	if err != nil || !changed {
		t.Fatalf("UpdateSubtaskProgress = %v, %v", changed, err)
	}
	if got := *w["p"].Subtasks[0].Progress; got != 100 {
		t.Errorf("progress = %d, want 100", got)
	}
	changed, _ = UpdateSubtaskProgress(w["p"], "c", 100, t0)
	if changed {
		t.Error("same progress reported a change")
	}
	if _, err := UpdateSubtaskProgress(w["p"], "zz", 10, t0); !errors.Is(err, ErrNoSuchEdge) {
		t.Errorf("unknown subtask err = %v, want ErrNoSuchEdge", err)
	}
}

func TestClone_Deep(t *testing.T) {
	w := newWorld("p", "c")
	w.link(t, "p", "c", model.EdgeParent, "open")
	UpdateSubtaskProgress(w["p"], "c", 40, t0)
	cfg := model.DefaultGraphConfig()
	w["p"].GraphConfig = &cfg

	c := Clone(w["p"])
	*c.Subtasks[0].Progress = 99
	c.Subtasks[0].Title = "changed"
	c.GraphConfig.ColorScheme["blocking"] = "#fff"
	c.Statistics.CriticalPath = append(c.Statistics.CriticalPath, "x")

	if *w["p"].Subtasks[0].Progress != 40 || w["p"].Subtasks[0].Title != "c" {
		t.Errorf("clone shares subtasks: %+v", w["p"].Subtasks[0])
	}
	if w["p"].GraphConfig.ColorScheme["blocking"] == "#fff" {
		t.Error("clone shares graph config")
	}
	if len(w["p"].Statistics.CriticalPath) != 0 {
		t.Error("clone shares critical path")
	}
}

func TestOverlay(t *testing.T) {
	w := newWorld("a", "b")
	shadow := model.NewDependencyGraph("a", t0)
	shadow.Version = 7
	l := Overlay(w.lookup(), shadow)
	if l("a").Version != 7 {
		t.Error("overlay did not prefer the given record")
	}
	if l("b") != w["b"] {
		t.Error("overlay did not fall back to base")
	}
	if Overlay(nil)("a") != nil {
		t.Error("nil base should return nil")
	}
}

func TestAncestors(t *testing.T) {
	w := newWorld("root", "mid", "leaf")
	w.link(t, "root", "mid", model.EdgeParent, "open")
	w.link(t, "mid", "leaf", model.EdgeParent, "open")
	if got := Ancestors("leaf", w.lookup()); !slices.Equal(got, []string{"mid", "root"}) {
		t.Errorf("Ancestors(leaf) = %v", got)
	}
}
