package adapter

import (
	"context"
	"log/slog"

	"github.com/c360/refbridge/errors"
	"github.com/c360/refbridge/metadata"
	"github.com/c360/refbridge/store"
	"github.com/c360/refbridge/unitofwork"
)

// Adapter drives a unit of work from primary-store lifecycle notifications.
// Attach it to a store's LifecycleNotifier and every create, update, load,
// delete, flush, and clear on that store is mirrored into the bridge without
// the application calling the unit of work directly.
type Adapter struct {
	uow      *unitofwork.UnitOfWork
	registry *metadata.Registry
	logger   *slog.Logger
}

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New builds an adapter over the given unit of work. The registry is used to
// skip objects whose class declares no reference mappings.
func New(uow *unitofwork.UnitOfWork, registry *metadata.Registry, opts ...Option) (*Adapter, error) {
	if uow == nil || registry == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "adapter", "New", "dependency validation")
	}

	a := &Adapter{
		uow:      uow,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Attach subscribes the adapter to the notifier.
func (a *Adapter) Attach(notifier *store.LifecycleNotifier) {
	notifier.Subscribe(a.Handle)
}

// Handle is the store.EntityListener entry point. Object events on classes
// without reference mappings are ignored; store-wide events always pass
// through.
func (a *Adapter) Handle(ctx context.Context, ev store.EntityEvent) error {
	switch ev.Kind {
	case store.StoreFlushed:
		return a.uow.Commit(ctx)
	case store.StoreCleared:
		return a.uow.Clear(ctx)
	}

	if ev.Object == nil {
		return nil
	}
	if !a.registry.Has(ev.Object) {
		return nil
	}

	switch ev.Kind {
	case store.EntityCreated, store.EntityUpdated:
		return a.uow.Persist(ctx, ev.Object)
	case store.EntityLoaded:
		return a.uow.LoadReferences(ctx, ev.Object)
	case store.EntityDeleted:
		return a.uow.Remove(ctx, ev.Object)
	default:
		a.logger.Warn("unhandled lifecycle event",
			"kind", ev.Kind.String(), "type", metadata.TypeNameOf(ev.Object))
		return nil
	}
}
