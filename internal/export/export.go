// Package export writes the dependency graphs and their history ledger as
// JSONL and ships the result to retention destinations on a schedule.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// FormatVersion is written into every export header.
const FormatVersion = "1"

// Record types used in the "type" discriminator of each JSONL line.
const (
	TypeHeader  = "header"
	TypeGraph   = "graph"
	TypeHistory = "history"
)

// Source is the read side of the store an export needs.
type Source interface {
	ListGraphs(ctx context.Context) ([]*model.DependencyGraph, error)
	QueryByRequirement(ctx context.Context, requirementID string, filter model.HistoryFilter) ([]*model.HistoryEvent, error)
}

// Header is the first JSONL record written by ExportJSONL.
type Header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	GraphCount   int       `json:"graph_count"`
	HistoryCount int       `json:"history_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Summary reports what an export contained.
type Summary struct {
	Graphs int
	Events int
}

// ExportJSONL writes every graph record followed by the history of each
// record to w. Graphs are sorted by requirement id and history is in ledger
// order. History is exported for requirements that have a graph record.
func ExportJSONL(ctx context.Context, src Source, w io.Writer, at time.Time) (Summary, error) {
	graphs, err := src.ListGraphs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list graphs: %w", err)
	}
	sort.Slice(graphs, func(i, j int) bool {
		return graphs[i].RequirementID < graphs[j].RequirementID
	})

	var events []*model.HistoryEvent
	for _, g := range graphs {
		evs, err := src.QueryByRequirement(ctx, g.RequirementID, model.HistoryFilter{Ascending: true})
		if err != nil {
			return Summary{}, fmt.Errorf("query history for %s: %w", g.RequirementID, err)
		}
		events = append(events, evs...)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(Header{
		Version:      FormatVersion,
		Type:         TypeHeader,
		Timestamp:    at.UTC(),
		GraphCount:   len(graphs),
		HistoryCount: len(events),
	}); err != nil {
		return Summary{}, fmt.Errorf("encode header: %w", err)
	}

	for _, g := range graphs {
		if err := enc.Encode(record{Type: TypeGraph, Data: g}); err != nil {
			return Summary{}, fmt.Errorf("encode graph %s: %w", g.RequirementID, err)
		}
	}

	for _, e := range events {
		if err := enc.Encode(record{Type: TypeHistory, Data: e}); err != nil {
			return Summary{}, fmt.Errorf("encode history %s: %w", e.ID, err)
		}
	}

	return Summary{Graphs: len(graphs), Events: len(events)}, nil
}
