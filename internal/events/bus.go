// Package events provides the in-process event bus connecting the
// supervisor and change detector to metrics and the API's SSE stream.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps the kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(StatusChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type, so fan out through a
	// type switch rather than the interface value.
	switch e := ev.(type) {
	case StatusChangedEvent:
		event.Publish(b.dispatcher, e)
	case WorkerCrashedEvent:
		event.Publish(b.dispatcher, e)
	case DriftDetectedEvent:
		event.Publish(b.dispatcher, e)
	case BindingRemovedEvent:
		event.Publish(b.dispatcher, e)
	case OrphanReapedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a typed handler and returns an unsubscribe function.
// Usage: unsub := events.Subscribe(bus, func(e StatusChangedEvent) { ... })
func Subscribe[T Event](b *Bus, handler func(T)) func() {
	return event.Subscribe(b.dispatcher, handler)
}

// SubscribeToChannel forwards events of type T into ch, dropping events when
// the channel is full so a slow consumer never blocks the dispatcher.
func SubscribeToChannel[T Event](b *Bus, ch chan<- any) func() {
	return event.Subscribe(b.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
