// Package metadata declares which fields of a class are cross-store
// references and how their values are kept in sync.
//
// # Overview
//
// A ClassDescriptor lists, per mapped class, the ReferenceMapping for every
// reference field: the target type in the other store, the identity field on
// the referenced object (ReferencedBy), the owner field holding the stored
// correlation value (InversedBy), and zero or more CommonField sync rules.
//
// Descriptors are read-only once built and are looked up through a Registry
// keyed by class name. The unit of work treats this package as its mapping
// configuration and never introspects objects on its own.
//
// # Field access
//
// All field reads and writes go through the Accessor supplied to the
// descriptor. StructAccessor resolves exported struct fields by reflection
// once at construction time; FuncAccessor adapts arbitrary get/set functions.
// Both report errors.ErrFieldNotFound for unmapped fields so callers can be
// tolerant of partial mappings.
package metadata
