package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

func TestCanAddEdge_SelfReference(t *testing.T) {
	w := newWorld("a")
	for _, et := range []model.EdgeType{model.EdgeBlocking, model.EdgeRelated, model.EdgeDuplicate, model.EdgeParent} {
		if err := CanAddEdge(et, "a", "a", w.lookup()); !errors.Is(err, ErrSelfReference) {
			t.Errorf("CanAddEdge(%s, a, a) = %v, want ErrSelfReference", et, err)
		}
	}
}

func TestCanAddEdge_BlockingDirectCycle(t *testing.T) {
	w := newWorld("a", "b")
	w.link(t, "a", "b", model.EdgeBlocking, "open")
	if err := CanAddEdge(model.EdgeBlocking, "b", "a", w.lookup()); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("b blocks a = %v, want ErrCycleDetected", err)
	}
}

func TestCanAddEdge_BlockingTransitiveCycle(t *testing.T) {
	w := newWorld("a", "b", "c")
	w.link(t, "a", "b", model.EdgeBlocking, "open")
	w.link(t, "b", "c", model.EdgeBlocking, "open")

	err := CanAddEdge(model.EdgeBlocking, "c", "a", w.lookup())
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("c blocks a = %v, want ErrCycleDetected", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Errorf("error should name the cycle, got %q", err)
	}
}

func TestCanAddEdge_BlockingNoCycle(t *testing.T) {
	w := newWorld("a", "b", "c")
	w.link(t, "a", "b", model.EdgeBlocking, "open")
	w.link(t, "b", "c", model.EdgeBlocking, "open")
	if err := CanAddEdge(model.EdgeBlocking, "a", "c", w.lookup()); err != nil {
		t.Errorf("a blocks c (shortcut) = %v, want nil", err)
	}
}

func TestCanAddEdge_IgnoresResolvedStatus(t *testing.T) {
	// A completed blocker still participates in cycle detection.
	w := newWorld("a", "b")
	w.link(t, "a", "b", model.EdgeBlocking, "completed")
	if err := CanAddEdge(model.EdgeBlocking, "b", "a", w.lookup()); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("b blocks a = %v, want ErrCycleDetected", err)
	}
}

func TestCanAddEdge_RelatedNeverCycles(t *testing.T) {
	w := newWorld("a", "b")
	w.link(t, "a", "b", model.EdgeBlocking, "open")
	for _, et := range []model.EdgeType{model.EdgeRelated, model.EdgeDuplicate} {
		if err := CanAddEdge(et, "b", "a", w.lookup()); err != nil {
			t.Errorf("CanAddEdge(%s, b, a) = %v, want nil", et, err)
		}
	}
}

func TestCanAddEdge_MissingRecords(t *testing.T) {
	w := newWorld()
	if err := CanAddEdge(model.EdgeBlocking, "x", "y", w.lookup()); err != nil {
		t.Errorf("unknown records = %v, want nil", err)
	}
}

func TestCanAddEdge_ParentCycle(t *testing.T) {
	// a is the parent of b; making b the parent of a must fail.
	w := newWorld("a", "b")
	w.link(t, "a", "b", model.EdgeParent, "open")
	if err := CanAddEdge(model.EdgeParent, "b", "a", w.lookup()); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("b parent of a = %v, want ErrCycleDetected", err)
	}
}

func TestCanAddEdge_ParentDeepCycle(t *testing.T) {
	w := newWorld("a", "b", "c")
	w.link(t, "a", "b", model.EdgeParent, "open")
	w.link(t, "b", "c", model.EdgeParent, "open")
	if err := CanAddEdge(model.EdgeParent, "c", "a", w.lookup()); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("c parent of a = %v, want ErrCycleDetected", err)
	}
}

func TestCanAddEdge_DuplicateParent(t *testing.T) {
	w := newWorld("p", "q", "c")
	w.link(t, "p", "c", model.EdgeParent, "open")

	if err := CanAddEdge(model.EdgeParent, "q", "c", w.lookup()); !errors.Is(err, ErrDuplicateParent) {
		t.Errorf("second parent = %v, want ErrDuplicateParent", err)
	}
	if err := CanAddEdge(model.EdgeParent, "p", "c", w.lookup()); err != nil {
		t.Errorf("same parent again = %v, want nil", err)
	}
}

func TestCanAddEdge_ParentChainTerminatesOnCorruptLoop(t *testing.T) {
	w := newWorld("a", "b", "x")
	pa := model.NewRef("b", model.RelationSubtask, model.Snapshot{}, t0)
	pb := model.NewRef("a", model.RelationSubtask, model.Snapshot{}, t0)
	w["a"].Parent = &pa
	w["b"].Parent = &pb

	if err := CanAddEdge(model.EdgeParent, "a", "x", w.lookup()); err != nil {
		t.Errorf("corrupt loop not involving x = %v, want nil", err)
	}
}
