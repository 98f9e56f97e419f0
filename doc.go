// Package refbridge keeps two object stores consistent: a relational store
// holding entities and a document repository holding the documents those
// entities reference.
//
// # Philosophy: One Primary Store, One Bridge
//
// Applications work against their primary store only. Entities carry plain
// correlation fields (a document path or a store unique-id); the bridge turns
// those into live document references and keeps both sides synchronized
// without the application issuing document-store calls itself.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        Primary Store                │  relstore: SQLite entities,
//	│   (persist, load, flush, clear)     │  lifecycle notifications
//	└──────────────────┬──────────────────┘
//	                   ↓ notifies
//	┌─────────────────────────────────────┐
//	│           Adapter                   │  maps store lifecycle onto
//	│   (created, loaded, deleted, ...)   │  bridge operations
//	└──────────────────┬──────────────────┘
//	                   ↓ drives
//	┌─────────────────────────────────────┐
//	│         Unit of Work                │  schedules inserts, updates,
//	│  (persist, remove, load, commit)    │  removes per reference field
//	└──────────────────┬──────────────────┘
//	                   ↓ flushes
//	┌─────────────────────────────────────┐
//	│        Document Store               │  docstore: JetStream KV
//	│    (documents + unique-id index)    │  documents by canonical path
//	└─────────────────────────────────────┘
//
// The unit of work tracks every object it has seen, schedules reference
// writes into per-field queues, and applies them on commit by flushing each
// involved manager exactly once. Lifecycle events fire around every phase so
// applications can observe or extend the bridge.
//
// Package layout:
//
//   - metadata: class descriptors, reference mappings, field accessors
//   - unitofwork: scheduling, state tracking, commit and clear
//   - event: lifecycle event dispatch
//   - store: manager and session contracts, identity tokens, lazy loading
//   - store/relstore: SQLite-backed entity store
//   - store/docstore: JetStream-KV-backed document store
//   - adapter: primary-store lifecycle to bridge operations
//   - config: service configuration
//   - errors: error taxonomy shared across the module
package refbridge
