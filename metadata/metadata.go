package metadata

import (
	"reflect"

	"github.com/c360/refbridge/errors"
)

// SyncType declares the direction a common field is copied in.
type SyncType int

const (
	// SyncToReference copies the owner's field value onto the referenced object
	SyncToReference SyncType = iota
	// SyncFromReference copies the referenced object's field value onto the owner
	SyncFromReference
)

// String returns the string representation of SyncType
func (st SyncType) String() string {
	switch st {
	case SyncToReference:
		return "to-reference"
	case SyncFromReference:
		return "from-reference"
	default:
		return "unknown"
	}
}

// CommonField declares a field kept in sync between an owner object and its
// referenced counterpart, in the declared direction.
type CommonField struct {
	// TargetField is the field name on the owner object.
	TargetField string
	// ReferencedBy is the field name on the referenced object.
	ReferencedBy string
	// InversedBy is the owner field that holds the correlation value.
	InversedBy string
	// Sync is the copy direction.
	Sync SyncType
}

// ReferenceMapping declares one cross-store reference field of a class.
type ReferenceMapping struct {
	// FieldName is the owner field that holds the referenced object.
	FieldName string
	// TargetType is the registered class name of the referenced object.
	TargetType string
	// ReferencedBy is the identity field on the referenced object.
	ReferencedBy string
	// InversedBy is the owner field holding the stored correlation value,
	// either a canonical identifier or a store unique-id.
	InversedBy string
	// CommonFields are the sync rules attached to this reference.
	CommonFields []CommonField
}

// ClassDescriptor supplies the reference mappings and field accessor for one
// mapped class. Descriptors are read-only after construction.
type ClassDescriptor struct {
	name     string
	refs     []ReferenceMapping
	byField  map[string]int
	accessor Accessor
}

// NewClassDescriptor builds a descriptor for the named class. The accessor is
// resolved once here, not per field access.
func NewClassDescriptor(name string, accessor Accessor, refs ...ReferenceMapping) (*ClassDescriptor, error) {
	if name == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "ClassDescriptor", "New", "class name validation")
	}
	if accessor == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "ClassDescriptor", "New", "accessor validation")
	}

	byField := make(map[string]int, len(refs))
	for i, ref := range refs {
		if ref.FieldName == "" || ref.TargetType == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "ClassDescriptor", "New", "reference mapping validation")
		}
		if _, dup := byField[ref.FieldName]; dup {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "ClassDescriptor", "New", "duplicate reference field check")
		}
		byField[ref.FieldName] = i
	}

	return &ClassDescriptor{
		name:     name,
		refs:     refs,
		byField:  byField,
		accessor: accessor,
	}, nil
}

// Name returns the class name this descriptor describes.
func (cd *ClassDescriptor) Name() string {
	return cd.name
}

// References returns the declared reference mappings in declaration order.
func (cd *ClassDescriptor) References() []ReferenceMapping {
	return cd.refs
}

// Reference returns the mapping for a single field name.
func (cd *ClassDescriptor) Reference(field string) (ReferenceMapping, bool) {
	i, ok := cd.byField[field]
	if !ok {
		return ReferenceMapping{}, false
	}
	return cd.refs[i], true
}

// CommonFields returns all declared common fields in declaration order,
// across all reference mappings.
func (cd *ClassDescriptor) CommonFields() []CommonField {
	var out []CommonField
	for _, ref := range cd.refs {
		out = append(out, ref.CommonFields...)
	}
	return out
}

// Accessor returns the field accessor resolved for this class.
func (cd *ClassDescriptor) Accessor() Accessor {
	return cd.accessor
}

// TypeNameOf returns the registered class name for a live object: the
// object's type name with any pointer indirection stripped.
func TypeNameOf(obj any) string {
	if obj == nil {
		return ""
	}
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
