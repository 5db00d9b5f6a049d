package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/events"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchTopics = []string{
	events.TopicGraphCreated,
	events.TopicGraphUpdated,
	events.TopicEdgeAdded,
	events.TopicEdgeRemoved,
	events.TopicHistoryRecorded,
}

var watchCmd = &cobra.Command{
	Use:     "watch [id]",
	Short:   "Stream graph changes, optionally for one requirement",
	GroupID: "history",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id string
		if len(args) == 1 {
			id = args[0]
		}
		natsURL, _ := cmd.Flags().GetString("nats")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		emit := func(topic string, data []byte) {
			if line, ok := describeEvent(topic, data, id); ok {
				if jsonOutput {
					fmt.Fprintf(cmd.OutOrStdout(), "{\"topic\":%q,\"data\":%s}\n", topic, data)
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
		}

		if natsURL != "" {
			return watchNATS(ctx, natsURL, id, emit)
		}
		return watchSSE(ctx, httpURL, token, emit)
	},
}

// watchNATS follows graph events on NATS until ctx is done. With an id the
// broker only routes that requirement's subjects.
func watchNATS(ctx context.Context, natsURL, id string, handle func(topic string, data []byte)) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()
	return followNATS(ctx, sub, id, handle)
}

func followNATS(ctx context.Context, sub events.Subscriber, id string, handle func(topic string, data []byte)) error {
	subjects := []string{events.TopicAll}
	if id != "" {
		subjects = events.RequirementSubjects(id)
	}
	ch, cancel, err := sub.Subscribe(subjects...)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			handle(m.Topic, m.Data)
		}
	}
}

// watchSSE follows the server's event stream, reconnecting with
// Last-Event-ID after a dropped connection.
func watchSSE(ctx context.Context, baseURL, bearer string, handle func(topic string, data []byte)) error {
	streamURL := strings.TrimRight(baseURL, "/") + "/v1/events/stream?topics=" +
		url.QueryEscape(strings.Join(watchTopics, ","))

	var lastID string
	backoff := time.Second
	for {
		err := streamOnce(ctx, streamURL, bearer, lastID, func(m sseMessage) {
			lastID = m.ID
			backoff = time.Second
			handle(m.Event, m.Data)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			log.Printf("event stream: %v; reconnecting in %s", err, backoff)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, 30*time.Second)
	}
}

// permanentError marks a stream failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func streamOnce(ctx context.Context, streamURL, bearer, lastID string, fn func(sseMessage)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return &permanentError{err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &permanentError{err: fmt.Errorf("event stream: unauthorized")}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("event stream: HTTP %d", resp.StatusCode)
	}
	return readSSE(resp.Body, fn)
}

// sseMessage is one dispatched server-sent event.
type sseMessage struct {
	ID    string
	Event string
	Data  []byte
}

// readSSE parses a text/event-stream body and calls fn for each event. It
// returns io.ErrUnexpectedEOF when the stream ends, since the server never
// closes a healthy stream.
func readSSE(r io.Reader, fn func(sseMessage)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	var (
		cur  sseMessage
		data []string
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 {
				cur.Data = []byte(strings.Join(data, "\n"))
				fn(cur)
			}
			cur = sseMessage{ID: cur.ID}
			data = nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			cur.ID = value
		case "event":
			cur.Event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// eventPayload is the union of the event shapes published on graph topics.
type eventPayload struct {
	Graph   *model.DependencyGraph `json:"graph"`
	Changes map[string]any         `json:"changes"`
	Edge    *model.GraphEdge       `json:"edge"`
	Actor   string                 `json:"actor"`
	Event   *model.HistoryEvent    `json:"event"`
}

func (p *eventPayload) involves(id string) bool {
	switch {
	case id == "":
		return true
	case p.Graph != nil:
		return p.Graph.RequirementID == id
	case p.Edge != nil:
		return p.Edge.Source == id || p.Edge.Target == id
	case p.Event != nil:
		return p.Event.RequirementID == id
	}
	return false
}

// describeEvent renders one event as a single line. It reports false when
// the payload is unreadable or does not involve id.
func describeEvent(topic string, data []byte, id string) (string, bool) {
	var p eventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", false
	}
	if !p.involves(id) {
		return "", false
	}

	by := ""
	if p.Actor != "" {
		by = ui.RenderMuted(" by " + p.Actor)
	}
	switch topic {
	case events.TopicGraphCreated:
		if p.Graph == nil {
			return "", false
		}
		return fmt.Sprintf("%s %s", ui.RenderPass("created"), p.Graph.RequirementID), true
	case events.TopicGraphUpdated:
		if p.Graph == nil {
			return "", false
		}
		fields := make([]string, 0, len(p.Changes))
		for k := range p.Changes {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		return fmt.Sprintf("%s %s v%d %s", ui.RenderAccent("updated"), p.Graph.RequirementID,
			p.Graph.Version, ui.RenderMuted(strings.Join(fields, ","))), true
	case events.TopicEdgeAdded, events.TopicEdgeRemoved:
		if p.Edge == nil {
			return "", false
		}
		verb := ui.RenderPass("edge+")
		if topic == events.TopicEdgeRemoved {
			verb = ui.RenderFail("edge-")
		}
		return fmt.Sprintf("%s %s %s %s%s", verb, p.Edge.Source,
			ui.RenderRelation(p.Edge.Type.String()), p.Edge.Target, by), true
	case events.TopicHistoryRecorded:
		if p.Event == nil {
			return "", false
		}
		return fmt.Sprintf("%s %s %s %s", ui.RenderMuted("history"), p.Event.RequirementID,
			p.Event.Action, p.Event.Description), true
	}
	return "", false
}

func init() {
	watchCmd.Flags().String("nats", os.Getenv("REQGRAPH_NATS_URL"), "read events from NATS instead of the server stream")
}
