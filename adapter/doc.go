// Package adapter glues a primary store's lifecycle notifications to the
// unit of work.
//
// The application works only with its primary store. When that store stages,
// loads, flushes, or clears entities, the adapter translates each
// notification into the matching unit of work operation: created and updated
// entities are persisted into the bridge, loaded entities get their
// references resolved, deleted entities are removed, a store flush commits
// the bridge, and a store clear resets it. Classes with no registered
// reference mappings are filtered out before any bridge work happens.
package adapter
