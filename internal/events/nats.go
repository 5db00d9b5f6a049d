package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes JSON-encoded events on requirement-scoped
// subjects (see Subject). Events that implement Identified carry their id
// in the Nats-Msg-Id header.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to url. Reconnects are retried forever so a
// broker restart does not lose the publisher.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	defaults := []nats.Option{
		nats.Name("reqgraph-publisher"),
		nats.MaxReconnects(-1),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	msg := nats.NewMsg(Subject(topic, event))
	msg.Data = data
	if ev, ok := event.(Identified); ok {
		if id := ev.MessageID(); id != "" {
			msg.Header.Set(nats.MsgIdHdr, id)
		}
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", msg.Subject, err)
	}
	return nil
}

// Close flushes buffered messages and closes the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(5 * time.Second)
	p.conn.Close()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

// NATSSubscriber receives events from NATS.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects with automatic reconnection. Extra options
// (disconnect and reconnect handlers, say) are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.Name("reqgraph-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe delivers every message matching any of subjects on one
// channel. Messages arriving while the channel is full are dropped rather
// than stalling the NATS client. cancel unsubscribes and closes the channel.
func (s *NATSSubscriber) Subscribe(subjects ...string) (<-chan Message, func(), error) {
	if len(subjects) == 0 {
		return nil, nil, errors.New("subscribe: no subjects")
	}
	ch := make(chan Message, 64)

	var (
		mu     sync.Mutex
		closed bool
		subs   []*nats.Subscription
		once   sync.Once
	)
	deliver := func(msg *nats.Msg) {
		m := Message{Subject: msg.Subject, Topic: TopicOf(msg.Subject), Data: msg.Data}
		if msg.Header != nil {
			m.ID = msg.Header.Get(nats.MsgIdHdr)
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- m:
		default:
		}
	}
	cancel := func() {
		once.Do(func() {
			for _, sub := range subs {
				_ = sub.Unsubscribe()
			}
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}

	for _, subject := range subjects {
		sub, err := s.conn.Subscribe(subject, deliver)
		if err != nil {
			cancel()
			return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}
	// Messages published on other connections are only routed once the
	// server has seen the subscriptions.
	if err := s.conn.Flush(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("flushing subscriptions: %w", err)
	}
	return ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
