package events

import (
	"strings"
	"unicode"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// Scoped is implemented by events that concern specific requirements. The
// ids become trailing tokens of the subject the event is published on.
type Scoped interface {
	Requirements() []string
}

// Identified is implemented by events that carry a stable id of their own.
// NATS publishers send it as the Nats-Msg-Id header so a JetStream stream
// can drop redeliveries.
type Identified interface {
	MessageID() string
}

func (e GraphCreated) Requirements() []string { return graphScope(e.Graph) }
func (e GraphUpdated) Requirements() []string { return graphScope(e.Graph) }
func (e EdgeAdded) Requirements() []string    { return []string{e.Edge.Source, e.Edge.Target} }
func (e EdgeRemoved) Requirements() []string  { return []string{e.Edge.Source, e.Edge.Target} }

func (e HistoryRecorded) Requirements() []string {
	if e.Event == nil {
		return nil
	}
	return []string{e.Event.RequirementID}
}

func (e HistoryRecorded) MessageID() string {
	if e.Event == nil {
		return ""
	}
	return e.Event.ID
}

func graphScope(g *model.DependencyGraph) []string {
	if g == nil {
		return nil
	}
	return []string{g.RequirementID}
}

// Token maps a requirement id onto a single subject token. Characters NATS
// reserves become '_', so distinct ids can share a token; consumers filtering
// on a requirement still check the payload.
func Token(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, id)
}

// Subject returns the subject event is published on: topic, then one token
// per requirement the event concerns. Edge events carry source then target.
func Subject(topic string, event any) string {
	s, ok := event.(Scoped)
	if !ok {
		return topic
	}
	ids := s.Requirements()
	if len(ids) == 0 {
		return topic
	}
	var b strings.Builder
	b.WriteString(topic)
	for _, id := range ids {
		b.WriteByte('.')
		b.WriteString(Token(id))
	}
	return b.String()
}

// TopicOf strips the requirement tokens from a subject built by Subject.
func TopicOf(subject string) string {
	dots := 0
	for i := range len(subject) {
		if subject[i] == '.' {
			dots++
			if dots == 3 {
				return subject[:i]
			}
		}
	}
	return subject
}

// RequirementSubjects returns the subscriptions that together match every
// event concerning id exactly once: graph and history events, edges out of
// id, and edges into id.
func RequirementSubjects(id string) []string {
	tok := Token(id)
	return []string{
		"reqgraph.*.*." + tok,
		"reqgraph.edge.*." + tok + ".*",
		"reqgraph.edge.*.*." + tok,
	}
}
