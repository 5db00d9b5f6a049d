package events

import (
	"context"
	"errors"
)

// MultiPublisher publishes every event to each of its publishers in order.
type MultiPublisher []Publisher

// Discard is a Publisher with no destinations.
var Discard Publisher = MultiPublisher(nil)

// Multi returns a Publisher that fans out to pubs, skipping nil entries.
func Multi(pubs ...Publisher) MultiPublisher {
	var out MultiPublisher
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Publish sends event to every publisher and joins their errors.
func (m MultiPublisher) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
