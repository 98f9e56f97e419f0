// Package docstore implements the document side of the bridge: a
// store.Manager backed by NATS JetStream key-value buckets.
//
// Documents are stored as JSON values keyed by their canonical path. A second
// bucket maps store unique-ids to paths, serving the session-level
// ResolveUniqueID lookup. Persist and Remove stage work in session order;
// Flush applies it key by key with retry around transient KV failures; Clear
// discards the staged work.
//
// The store depends on the narrow KeyValue interface rather than the full
// jetstream.KeyValue, so unit tests run against an in-memory bucket. The
// integration tests (build tag "integration") exercise a real NATS server via
// testcontainers.
package docstore
