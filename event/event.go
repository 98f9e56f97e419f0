package event

import (
	"github.com/c360/refbridge/metadata"
	"github.com/c360/refbridge/store"
)

// Kind identifies a lifecycle event fired by the unit of work.
type Kind int

const (
	// PreReferencing fires once before an owner's references are processed by persist.
	PreReferencing Kind = iota
	// PostReferencing fires once after an owner's references are processed by persist.
	PostReferencing
	// PreBindReference fires before a new reference is scheduled for insert.
	PreBindReference
	// PostBindReference fires after commit for every insert-queued reference.
	PostBindReference
	// PreUpdateReference fires before a reference is scheduled for update.
	PreUpdateReference
	// PostUpdateReference fires after commit for every update-queued reference.
	PostUpdateReference
	// PreRemoveReference fires before a reference is scheduled for removal.
	PreRemoveReference
	// PostRemoveReference fires after commit for every remove-queued reference.
	PostRemoveReference
	// PreRemoveReferencing fires once before an owner's references are removed.
	PreRemoveReferencing
	// PostLoadReference fires after a reference field is resolved and assigned.
	PostLoadReference
	// PostLoadReferencing fires once after all of an owner's references are loaded.
	PostLoadReferencing
	// PreFlushReference fires once per commit before any manager flushes.
	PreFlushReference
	// OnFlushReference fires per distinct manager just before its flush.
	OnFlushReference
	// PostFlushReference fires once per commit after all managers flushed.
	PostFlushReference
	// OnClear fires once after the unit of work drops its state.
	OnClear
)

var kindNames = map[Kind]string{
	PreReferencing:       "preReferencing",
	PostReferencing:      "postReferencing",
	PreBindReference:     "preBindReference",
	PostBindReference:    "postBindReference",
	PreUpdateReference:   "preUpdateReference",
	PostUpdateReference:  "postUpdateReference",
	PreRemoveReference:   "preRemoveReference",
	PostRemoveReference:  "postRemoveReference",
	PreRemoveReferencing: "preRemoveReferencing",
	PostLoadReference:    "postLoadReference",
	PostLoadReferencing:  "postLoadReferencing",
	PreFlushReference:    "preFlushReference",
	OnFlushReference:     "onFlushReference",
	PostFlushReference:   "postFlushReference",
	OnClear:              "onClear",
}

// String returns the event name
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Payload carries the event context. Object-scoped events populate Owner,
// Referenced, Field and Descriptor; the manager-scoped flush events populate
// Manager instead. Deferred-update dispatches carry the referenced object in
// Referenced like every other update event.
type Payload struct {
	Owner      any
	Referenced any
	Field      string
	Descriptor *metadata.ClassDescriptor
	Manager    store.Manager
}
