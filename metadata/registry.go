package metadata

import (
	"fmt"
	"sync"

	"github.com/c360/refbridge/errors"
)

// Registry holds the class descriptors known to the bridge. It is safe for
// concurrent lookup; registration normally happens once at startup.
type Registry struct {
	descriptors map[string]*ClassDescriptor
	mu          sync.RWMutex
}

// NewRegistry creates an empty descriptor registry
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]*ClassDescriptor),
	}
}

// Register adds a descriptor. Registering the same class name twice is an error.
func (r *Registry) Register(desc *ClassDescriptor) error {
	if desc == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "descriptor validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[desc.Name()]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("descriptor %q is already registered", desc.Name()),
			"Registry", "Register", "duplicate descriptor check")
	}

	r.descriptors[desc.Name()] = desc
	return nil
}

// Lookup returns the descriptor registered under the given class name.
func (r *Registry) Lookup(name string) (*ClassDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descriptors[name]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrDescriptorNotFound, name),
			"Registry", "Lookup", "descriptor lookup")
	}
	return desc, nil
}

// DescriptorFor returns the descriptor matching a live object's type.
func (r *Registry) DescriptorFor(obj any) (*ClassDescriptor, error) {
	return r.Lookup(TypeNameOf(obj))
}

// Has reports whether a live object's type has a registered descriptor.
// The lifecycle hook adapter uses this to pre-filter store notifications.
func (r *Registry) Has(obj any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.descriptors[TypeNameOf(obj)]
	return ok
}
