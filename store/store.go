package store

import "context"

// Manager is the handle the unit of work uses to persist referenced objects
// into their backing store. Concrete managers (relational, document) buffer
// session work and apply it on Flush.
type Manager interface {
	// Persist stages obj for insertion or update in this manager's session.
	Persist(ctx context.Context, obj any) error
	// Remove stages obj for deletion.
	Remove(ctx context.Context, obj any) error
	// Flush applies all staged session work to the backing store.
	Flush(ctx context.Context) error
	// Clear discards all staged session work.
	Clear(ctx context.Context) error
	// GetReference returns a lazy handle for the identified object without
	// loading it. The handle carries the identity and reports Unloaded until
	// materialized.
	GetReference(ctx context.Context, targetType, id string) (any, error)
	// Session exposes session-level lookups.
	Session() Session
}

// Session provides store-session lookups that are distinct from object
// dereferencing.
type Session interface {
	// ResolveUniqueID translates a store unique-id to the canonical
	// identifier. A miss is reported as errors.ErrUniqueIDNotFound, never by
	// returning an empty identifier.
	ResolveUniqueID(ctx context.Context, uid string) (string, error)
}

// Resolver routes a reference field of an owner object to the manager
// responsible for persisting the referenced object.
type Resolver interface {
	ManagerFor(owner any, field string) (Manager, error)
}
