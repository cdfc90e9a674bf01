// Package outbox holds the ports between the services that announce cart and order
// changes and the background workers that react to them.
package outbox

import "context"

// Event is a fact announced after a cart or order write has been stored.
// EventName is the routing key subscribers register for, e.g. "cart.changed".
type Event interface {
	EventName() string
}

// Handler reacts to one delivered event.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// PublisherFunc lets a plain function stand in for a Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Typed routes events of concrete type T to h and anything else to other.
// A nil other drops mismatched events.
func Typed[T Event](h func(ctx context.Context, e T) error, other Handler) Handler {
	return func(ctx context.Context, e Event) error {
		if evt, ok := e.(T); ok {
			return h(ctx, evt)
		}
		if other != nil {
			return other(ctx, e)
		}
		return nil
	}
}
