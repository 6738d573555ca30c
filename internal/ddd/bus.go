package ddd

import (
	"context"
	"sync"
)

// Handler reacts to a published event. Handlers run synchronously inside the
// publisher's request scope; a handler error propagates to the caller and
// rolls back the triggering unit of work.
type Handler func(ctx context.Context, e Event) error

// Bus is the in-process publish/subscribe router from event name to
// handlers, plus a separate set of handlers subscribed to all events.
// Registration happens once at process start and is static afterwards;
// DeregisterAll exists for test isolation only.
type Bus struct {
	mu     sync.RWMutex
	byName map[string][]Handler
	all    []Handler
}

func NewBus() *Bus {
	return &Bus{byName: make(map[string][]Handler)}
}

// Subscribe registers a handler for events with the given name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byName[name] = append(b.byName[name], h)
}

// SubscribeAll registers a handler invoked for every published event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish invokes every handler registered for the event's exact name
// unioned with the all-events set. Invocation order across the union is
// unspecified; callers must only rely on "all registered handlers run".
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.byName[e.Name()])+len(b.all))
	handlers = append(handlers, b.byName[e.Name()]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// PublishAll publishes sequentially, in event order.
func (b *Bus) PublishAll(ctx context.Context, events []Event) error {
	for _, e := range events {
		if err := b.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// DeregisterAll clears every registration. Test isolation only.
func (b *Bus) DeregisterAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byName = make(map[string][]Handler)
	b.all = nil
}
