package events

// Message is one event received from the bus.
type Message struct {
	Subject string // full subject, requirement tokens included
	Topic   string // one of the Topic constants
	ID      string // Nats-Msg-Id, when the publisher set one
	Data    []byte // JSON payload
}

// Subscriber receives events from the bus.
type Subscriber interface {
	// Subscribe delivers messages matching any of subjects on the returned
	// channel until cancel is called, which also closes the channel.
	Subscribe(subjects ...string) (<-chan Message, func(), error)
	Close() error
}
