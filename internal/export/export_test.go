package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/history"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store/memory"
)

var t0 = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

// newSeededStore returns a memory store holding graphs for ids, each with
// one create event.
func newSeededStore(t *testing.T, ids ...string) *memory.MemoryStore {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	for i, id := range ids {
		if err := st.CreateGraph(ctx, model.NewDependencyGraph(id, t0)); err != nil {
			t.Fatalf("CreateGraph(%s): %v", id, err)
		}
		e := history.ForCreate(id, "alice", map[string]any{"requirement_id": id}, history.Origin{Source: "api"})
		e.ID = "h-" + id
		e.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		if err := st.Append(ctx, e); err != nil {
			t.Fatalf("Append(%s): %v", id, err)
		}
	}
	return st
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	sum, err := ExportJSONL(context.Background(), memory.New(), &buf, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != (Summary{}) {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h Header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != FormatVersion || h.Type != TypeHeader || !h.Timestamp.Equal(t0) || h.GraphCount != 0 || h.HistoryCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_GraphsThenHistory(t *testing.T) {
	st := newSeededStore(t, "rq-zzz", "rq-aaa")

	var buf bytes.Buffer
	sum, err := ExportJSONL(context.Background(), st, &buf, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Graphs != 2 || sum.Events != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 graphs + 2 history events
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), buf.String())
	}

	wantTypes := []string{TypeHeader, TypeGraph, TypeGraph, TypeHistory, TypeHistory}
	for i, line := range lines {
		var rec struct {
			Type string `json:"type"`
			Data struct {
				RequirementID string `json:"requirement_id"`
			} `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if rec.Type != wantTypes[i] {
			t.Fatalf("line %d type = %q, want %q", i, rec.Type, wantTypes[i])
		}
		if i == 1 && rec.Data.RequirementID != "rq-aaa" {
			t.Fatalf("graphs not sorted: first is %q", rec.Data.RequirementID)
		}
	}
}

func TestExportJSONL_NoHTMLEscaping(t *testing.T) {
	st := newSeededStore(t)
	ctx := context.Background()
	if err := st.CreateGraph(ctx, model.NewDependencyGraph("rq-1", t0)); err != nil {
		t.Fatal(err)
	}
	e := history.ForStatusChange("rq-1", "alice", "<draft>", "done", history.Origin{})
	e.ID = "h-1"
	e.CreatedAt = t0
	if err := st.Append(ctx, e); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := ExportJSONL(ctx, st, &buf, t0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "<draft> → done") {
		t.Fatalf("expected unescaped description in output:\n%s", buf.String())
	}
}

type failingSource struct {
	memory.MemoryStore
}

func (*failingSource) ListGraphs(context.Context) ([]*model.DependencyGraph, error) {
	return nil, errors.New("db down")
}

func TestExportJSONL_SourceError(t *testing.T) {
	var buf bytes.Buffer
	if _, err := ExportJSONL(context.Background(), &failingSource{}, &buf, t0); err == nil {
		t.Fatal("expected error")
	}
	if buf.Len() != 0 {
		t.Fatal("nothing should be written when listing fails")
	}
}

func TestReadJSONL(t *testing.T) {
	st := newSeededStore(t, "rq-a", "rq-b")

	var buf bytes.Buffer
	if _, err := ExportJSONL(context.Background(), st, &buf, t0); err != nil {
		t.Fatalf("export: %v", err)
	}
	snap, err := ReadJSONL(&buf)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(snap.Graphs) != 2 || snap.Graphs[0].RequirementID != "rq-a" {
		t.Fatalf("unexpected graphs: %+v", snap.Graphs)
	}
	if len(snap.History) != 2 || snap.History[1].ID != "h-rq-b" || snap.History[1].OperatorID != "alice" {
		t.Fatalf("unexpected history: %+v", snap.History)
	}
}

func TestReadJSONL_Rejects(t *testing.T) {
	for _, tc := range []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"NoHeader", `{"type":"graph","data":{"requirement_id":"rq-a"}}` + "\n"},
		{"CountMismatch", `{"version":"1","type":"header","graph_count":2,"history_count":0}` + "\n" +
			`{"type":"graph","data":{"requirement_id":"rq-a"}}` + "\n"},
		{"UnknownType", `{"version":"1","type":"header"}` + "\n" + `{"type":"comment","data":{}}` + "\n"},
		{"BadVersion", `{"version":"9","type":"header"}` + "\n"},
		{"DuplicateHeader", `{"version":"1","type":"header"}` + "\n" + `{"version":"1","type":"header"}` + "\n"},
		{"Garbage", "not json\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadJSONL(strings.NewReader(tc.input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
