package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/alfredjeanlab/reqgraph/internal/client"
	"github.com/alfredjeanlab/reqgraph/internal/config"
	"github.com/alfredjeanlab/reqgraph/internal/server"
	"github.com/alfredjeanlab/reqgraph/internal/service"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

// handlerTransport serves requests with an in-process handler instead of
// the network.
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, r)
	return rec.Result(), nil
}

// localClient is a GraphClient backed by an in-process service. Close also
// closes the store.
type localClient struct {
	client.GraphClient
	store store.Store
}

func (c *localClient) Close() error {
	_ = c.GraphClient.Close()
	return c.store.Close()
}

// newLocalClient runs the service in-process against the configured store
// (REQGRAPH_DATABASE_URL, or an in-memory store) and talks to it through the
// regular HTTP handler.
func newLocalClient(opts ...client.Option) (client.GraphClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("REQGRAPH_DEBUG") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	svc := service.New(st,
		service.WithActorContext(service.ContextActor{Fallback: cfg.DefaultActor}),
		service.WithLogger(logger),
	)
	handler := server.New(svc, nil, logger).NewHTTPHandler("")

	hc := &http.Client{Transport: handlerTransport{handler: handler}}
	c := client.NewHTTPClient("http://reqgraph.local", append(opts, client.WithHTTPClient(hc))...)
	return &localClient{GraphClient: c, store: st}, nil
}
