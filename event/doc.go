// Package event is the typed lifecycle notification registry for the bridge.
//
// Event kinds are a closed enum rather than string names, and every dispatch
// carries a typed Payload. Listeners subscribe per kind and are invoked
// synchronously in registration order; a listener error is logged and does
// not interrupt the fan-out or the persistence operation that triggered it.
//
// The unit of work fires object-scoped events around persist, remove, and
// load (pre/post referencing, bind, update, remove, load), manager-scoped
// events around commit (preFlushReference, onFlushReference,
// postFlushReference), and onClear when its state is dropped.
package event
