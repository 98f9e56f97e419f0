// Package store defines the contracts between the unit of work and the
// backing stores it coordinates.
//
// # Managers
//
// A Manager is an opaque, session-scoped persistence service: Persist and
// Remove stage work, Flush applies it, Clear discards it. GetReference hands
// out lazy handles that carry only the identity until materialized; the
// Session lookup translates store unique-ids to canonical identifiers.
//
// A Resolver routes each (owner, field) pair to the manager responsible for
// that reference. StaticResolver covers the common fixed-wiring case.
//
// # Identity
//
// Tracked objects are keyed by Token, a generated per-instance identity
// assigned by a TokenMap at first tracking. State maps never key on memory
// addresses across store boundaries.
//
// # Materialization
//
// Lazy handles report their LoadState through Materializable. The embeddable
// Lazy struct gives stored types that capability; its zero value reads as
// Loaded so ordinary construction is unaffected.
//
// # Lifecycle notifications
//
// Primary stores announce create/update/load/delete/flush/clear through a
// LifecycleNotifier. The adapter package turns those notifications into unit
// of work calls.
package store
