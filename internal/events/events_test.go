package events

import (
	"testing"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

func TestSubject(t *testing.T) {
	now := time.Now()
	edge := model.GraphEdge{Source: "rq-a", Target: "rq-b", Type: model.EdgeBlocking}

	for _, tc := range []struct {
		name  string
		topic string
		event any
		want  string
	}{
		{"graph created", TopicGraphCreated, GraphCreated{Graph: model.NewDependencyGraph("rq-a", now)}, "reqgraph.graph.created.rq-a"},
		{"graph updated pointer", TopicGraphUpdated, &GraphUpdated{Graph: model.NewDependencyGraph("rq-a", now)}, "reqgraph.graph.updated.rq-a"},
		{"edge added", TopicEdgeAdded, EdgeAdded{Edge: edge}, "reqgraph.edge.added.rq-a.rq-b"},
		{"edge removed", TopicEdgeRemoved, EdgeRemoved{Edge: edge}, "reqgraph.edge.removed.rq-a.rq-b"},
		{"history", TopicHistoryRecorded, HistoryRecorded{Event: &model.HistoryEvent{ID: "h-1", RequirementID: "rq-c"}}, "reqgraph.history.recorded.rq-c"},
		{"no graph", TopicGraphCreated, GraphCreated{}, TopicGraphCreated},
		{"no history event", TopicHistoryRecorded, HistoryRecorded{}, TopicHistoryRecorded},
		{"unscoped", TopicGraphUpdated, map[string]any{"x": 1}, TopicGraphUpdated},
		{"reserved characters", TopicGraphUpdated, GraphUpdated{Graph: model.NewDependencyGraph("team.api v2>*", now)}, "reqgraph.graph.updated.team_api_v2__"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := Subject(tc.topic, tc.event); got != tc.want {
				t.Errorf("Subject() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTopicOf(t *testing.T) {
	for subject, want := range map[string]string{
		"reqgraph.edge.added.rq-a.rq-b":  TopicEdgeAdded,
		"reqgraph.history.recorded.rq-c": TopicHistoryRecorded,
		TopicGraphCreated:                TopicGraphCreated,
		"reqgraph.other":                 "reqgraph.other",
	} {
		if got := TopicOf(subject); got != want {
			t.Errorf("TopicOf(%q) = %q, want %q", subject, got, want)
		}
	}
}

func TestToken(t *testing.T) {
	for id, want := range map[string]string{
		"rq-42":     "rq-42",
		"":          "_",
		"a.b":       "a_b",
		"tab\there": "tab_here",
		"ünïcode":   "ünïcode",
	} {
		if got := Token(id); got != want {
			t.Errorf("Token(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestHistoryRecorded_MessageID(t *testing.T) {
	var ev Identified = HistoryRecorded{Event: &model.HistoryEvent{ID: "h-9"}}
	if got := ev.MessageID(); got != "h-9" {
		t.Errorf("MessageID() = %q, want h-9", got)
	}
	if got := (HistoryRecorded{}).MessageID(); got != "" {
		t.Errorf("MessageID() without event = %q, want empty", got)
	}
	if _, ok := any(EdgeAdded{}).(Identified); ok {
		t.Error("EdgeAdded should not carry a message id")
	}
}
