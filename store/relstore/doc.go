// Package relstore implements the relational side of the bridge: a
// store.Manager backed by SQLite.
//
// Entities are stored as JSON rows in a single entities table keyed by their
// canonical identifier, with a unique-id column serving the session-level
// unique-id-to-identifier lookup. Persist and Remove stage work in session
// order; Flush applies the whole session in one transaction; Clear discards
// it.
//
// The store also acts as a primary store: every persist, remove, load, flush,
// and clear is announced through its LifecycleNotifier, which is what the
// adapter package listens to when driving the unit of work.
package relstore
