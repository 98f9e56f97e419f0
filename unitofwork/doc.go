// Package unitofwork implements the cross-store unit of work: the state
// machine that keeps relational entities and document-repository nodes
// consistent with one another.
//
// # Overview
//
// The UnitOfWork tracks which in-memory objects hold references into the
// other store. Persist schedules each declared reference field for insert
// (first time) or update (already managed), Remove schedules removal, and
// LoadReferences resolves stored correlation values into lazy handles.
// Commit groups the scheduled work by responsible manager and flushes each
// distinct manager exactly once; Clear cascades to the managers and then
// drops all local state.
//
// # State model
//
// Owner objects move from NEW to MANAGED on their first persist, remove, or
// load.
// Each reference lives in at most one of the three scheduling queues
// (insert, update, remove) per (owner, field) pair; violating that invariant
// fails loudly with errors.ErrSchedulingConflict and mutates nothing.
// Identity is a generated per-instance token, never a memory address.
//
// # Commit and clear cycles
//
// Both operations are guarded by explicit state machines. Commit moves from
// FlushIdle through Flushing to Flushed and stays Flushed: a second Commit in
// the same cycle is a no-op, which also breaks the recursion when a backing
// store's flush notifications re-enter Commit. Clear guards itself the same
// way, and is the only operation that returns the unit of work to a clean
// FlushIdle state.
//
// Failures propagate to the caller without unwinding queue mutations made
// earlier in the same call; after a failed call the unit of work is
// indeterminate and should be Cleared before reuse.
//
// # Common fields
//
// Declared common fields are copied between owner and referenced object in
// the declared direction on every persist and during the deferred-update pass
// at the start of commit. Sync never touches unmaterialized handles and
// tolerates field names missing from partial mappings.
package unitofwork
