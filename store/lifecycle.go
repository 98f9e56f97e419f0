package store

import "context"

// EntityEventKind identifies a primary-store lifecycle notification.
type EntityEventKind int

const (
	// EntityCreated fires after an entity is first staged in the primary store.
	EntityCreated EntityEventKind = iota
	// EntityUpdated fires after an already-persisted entity is staged again.
	EntityUpdated
	// EntityLoaded fires after an entity is read out of the primary store.
	EntityLoaded
	// EntityDeleted fires after an entity is staged for deletion.
	EntityDeleted
	// StoreFlushed fires after the primary store applies its session work.
	StoreFlushed
	// StoreCleared fires after the primary store drops its session.
	StoreCleared
)

// String returns the string representation of EntityEventKind
func (k EntityEventKind) String() string {
	switch k {
	case EntityCreated:
		return "created"
	case EntityUpdated:
		return "updated"
	case EntityLoaded:
		return "loaded"
	case EntityDeleted:
		return "deleted"
	case StoreFlushed:
		return "flushed"
	case StoreCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// EntityEvent is a primary-store lifecycle notification. Object is nil for
// the store-wide StoreFlushed and StoreCleared kinds.
type EntityEvent struct {
	Kind   EntityEventKind
	Object any
}

// EntityListener receives primary-store lifecycle notifications.
type EntityListener func(ctx context.Context, ev EntityEvent) error

// LifecycleNotifier fans primary-store notifications out to listeners
// synchronously, in registration order. The first listener error stops the
// fan-out and is returned to the notifying store.
type LifecycleNotifier struct {
	listeners []EntityListener
}

// Subscribe registers a listener. Not safe for concurrent use with Notify;
// stores subscribe at wiring time.
func (n *LifecycleNotifier) Subscribe(l EntityListener) {
	if l != nil {
		n.listeners = append(n.listeners, l)
	}
}

// Notify delivers ev to every listener in registration order.
func (n *LifecycleNotifier) Notify(ctx context.Context, ev EntityEvent) error {
	for _, l := range n.listeners {
		if err := l(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
