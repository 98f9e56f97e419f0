package store

import (
	"fmt"

	"github.com/c360/refbridge/errors"
)

// StaticResolver routes reference fields to managers through a fixed table.
// Routes may be per field name, with an optional default manager for
// everything unrouted.
type StaticResolver struct {
	byField        map[string]Manager
	defaultManager Manager
}

// NewStaticResolver creates a resolver with an optional default manager.
func NewStaticResolver(defaultManager Manager) *StaticResolver {
	return &StaticResolver{
		byField:        make(map[string]Manager),
		defaultManager: defaultManager,
	}
}

// Route assigns a manager to a specific reference field name.
func (r *StaticResolver) Route(field string, m Manager) *StaticResolver {
	r.byField[field] = m
	return r
}

// ManagerFor implements Resolver.
func (r *StaticResolver) ManagerFor(_ any, field string) (Manager, error) {
	if m, ok := r.byField[field]; ok {
		return m, nil
	}
	if r.defaultManager != nil {
		return r.defaultManager, nil
	}
	return nil, errors.WrapInvalid(
		fmt.Errorf("no manager routed for field %q", field),
		"StaticResolver", "ManagerFor", "route lookup")
}
