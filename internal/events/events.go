package events

import (
	"context"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// Event topic constants
const (
	TopicGraphCreated    = "reqgraph.graph.created"
	TopicGraphUpdated    = "reqgraph.graph.updated"
	TopicEdgeAdded       = "reqgraph.edge.added"
	TopicEdgeRemoved     = "reqgraph.edge.removed"
	TopicHistoryRecorded = "reqgraph.history.recorded"

	// TopicAll matches every topic above (NATS wildcard).
	TopicAll = "reqgraph.>"
)

// Event types

type GraphCreated struct {
	Graph *model.DependencyGraph `json:"graph"`
}

type GraphUpdated struct {
	Graph   *model.DependencyGraph `json:"graph"`
	Changes map[string]any         `json:"changes"` // field name -> new value
}

type EdgeAdded struct {
	Edge  model.GraphEdge `json:"edge"`
	Actor string          `json:"actor,omitempty"`
}

type EdgeRemoved struct {
	Edge  model.GraphEdge `json:"edge"`
	Actor string          `json:"actor,omitempty"`
}

type HistoryRecorded struct {
	Event *model.HistoryEvent `json:"event"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
