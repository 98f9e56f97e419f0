package event

import (
	"context"
	"log/slog"
	"sync"
)

// Listener receives one dispatched event. Listener errors are observational:
// they are logged and never veto the persistence operation that fired them.
type Listener func(ctx context.Context, payload Payload) error

// Dispatcher fans lifecycle events out to subscribed listeners synchronously,
// in registration order per kind.
type Dispatcher struct {
	listeners map[Kind][]subscription
	nextID    int
	logger    *slog.Logger
	mu        sync.RWMutex
}

type subscription struct {
	id       int
	listener Listener
}

// NewDispatcher creates a dispatcher. A nil logger falls back to slog.Default().
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		listeners: make(map[Kind][]subscription),
		logger:    logger,
	}
}

// Subscribe registers a listener for one event kind and returns an
// unsubscribe function.
func (d *Dispatcher) Subscribe(kind Kind, l Listener) func() {
	if l == nil {
		return func() {}
	}

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners[kind] = append(d.listeners[kind], subscription{id: id, listener: l})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		subs := d.listeners[kind]
		for i, s := range subs {
			if s.id == id {
				d.listeners[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// HasListeners reports whether any listener is subscribed for kind.
func (d *Dispatcher) HasListeners(kind Kind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[kind]) > 0
}

// Dispatch delivers the payload to every listener of kind, synchronously and
// in registration order.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, payload Payload) {
	d.mu.RLock()
	subs := d.listeners[kind]
	d.mu.RUnlock()

	for _, s := range subs {
		if err := s.listener(ctx, payload); err != nil {
			d.logger.Warn("lifecycle listener failed",
				"event", kind.String(),
				"field", payload.Field,
				"error", err)
		}
	}
}
