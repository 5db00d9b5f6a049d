package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/clock"
	"github.com/alfredjeanlab/reqgraph/internal/idgen"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/service"
	"github.com/alfredjeanlab/reqgraph/internal/store/memory"
)

var t0 = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

// testEnv bundles a Server over an in-memory store.
type testEnv struct {
	srv     *Server
	hub     *EventHub
	store   *memory.MemoryStore
	handler http.Handler
}

// newTestServer returns a Server whose service publishes to its hub and
// whose store is seeded with empty graphs for ids.
func newTestServer(t *testing.T, ids ...string) *testEnv {
	t.Helper()
	st := memory.New()
	for _, id := range ids {
		if err := st.CreateGraph(context.Background(), model.NewDependencyGraph(id, t0)); err != nil {
			t.Fatalf("seeding %s: %v", id, err)
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewEventHub()
	svc := service.New(st,
		service.WithClock(clock.Fake(t0)),
		service.WithPublisher(hub),
		service.WithIDFunc(idgen.Sequence("h-")),
		service.WithLogger(logger),
	)
	srv := New(svc, hub, logger)
	return &testEnv{srv: srv, hub: hub, store: st, handler: srv.NewHTTPHandler("")}
}

// do sends a request with an optional JSON body through the handler.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus fails the test if rec.Code is not want.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d; body: %s", want, rec.Code, rec.Body.String())
	}
}

// decode unmarshals the response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response: %v; body: %s", err, rec.Body.String())
	}
}

func (e *testEnv) graph(t *testing.T, id string) *model.DependencyGraph {
	t.Helper()
	g, err := e.store.LoadGraph(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadGraph(%s): %v", id, err)
	}
	return g
}
