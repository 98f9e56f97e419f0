package metadata

import (
	"reflect"

	"github.com/c360/refbridge/errors"
)

// Accessor reads and writes mapped fields on live objects. Implementations
// resolve their field lookup strategy when the descriptor is built, so per-call
// access is a plain map hit rather than repeated introspection.
//
// Get and Set return errors.ErrFieldNotFound for a field the accessor does not
// know; callers that tolerate partial mappings check for that sentinel.
type Accessor interface {
	Get(obj any, field string) (any, error)
	Set(obj any, field string, value any) error
}

// StructAccessor accesses exported struct fields by name. Field indices are
// resolved once per type in NewStructAccessor.
type StructAccessor struct {
	typ    reflect.Type
	fields map[string][]int
}

// NewStructAccessor builds an accessor for the exported fields of prototype's
// struct type. The prototype may be a struct value or pointer to one.
func NewStructAccessor(prototype any) (*StructAccessor, error) {
	if prototype == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "StructAccessor", "New", "prototype validation")
	}

	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "StructAccessor", "New", "struct type validation")
	}

	fields := make(map[string][]int)
	for _, f := range reflect.VisibleFields(t) {
		if f.IsExported() {
			fields[f.Name] = f.Index
		}
	}

	return &StructAccessor{typ: t, fields: fields}, nil
}

// Get reads the named field off obj.
func (sa *StructAccessor) Get(obj any, field string) (any, error) {
	idx, ok := sa.fields[field]
	if !ok {
		return nil, errors.ErrFieldNotFound
	}

	v, err := sa.structValue(obj)
	if err != nil {
		return nil, err
	}
	return v.FieldByIndex(idx).Interface(), nil
}

// Set writes value into the named field of obj. obj must be a pointer for the
// write to be visible to the caller.
func (sa *StructAccessor) Set(obj any, field string, value any) error {
	idx, ok := sa.fields[field]
	if !ok {
		return errors.ErrFieldNotFound
	}

	v, err := sa.structValue(obj)
	if err != nil {
		return err
	}
	target := v.FieldByIndex(idx)
	if !target.CanSet() {
		return errors.WrapInvalid(errors.ErrFieldNotFound, "StructAccessor", "Set", "addressable field check")
	}

	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	val := reflect.ValueOf(value)
	if !val.Type().AssignableTo(target.Type()) {
		if !val.Type().ConvertibleTo(target.Type()) {
			return errors.WrapInvalid(errors.ErrFieldNotFound, "StructAccessor", "Set", "type compatibility check")
		}
		val = val.Convert(target.Type())
	}
	target.Set(val)
	return nil
}

func (sa *StructAccessor) structValue(obj any) (reflect.Value, error) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, errors.WrapInvalid(errors.ErrFieldNotFound, "StructAccessor", "access", "nil object check")
		}
		v = v.Elem()
	}
	if v.Type() != sa.typ {
		return reflect.Value{}, errors.WrapInvalid(errors.ErrFieldNotFound, "StructAccessor", "access", "object type check")
	}
	return v, nil
}

// FuncAccessor adapts plain functions into an Accessor, for callers that map
// fields onto something other than struct members.
type FuncAccessor struct {
	GetFunc func(obj any, field string) (any, error)
	SetFunc func(obj any, field string, value any) error
}

// Get delegates to GetFunc.
func (fa FuncAccessor) Get(obj any, field string) (any, error) {
	if fa.GetFunc == nil {
		return nil, errors.ErrFieldNotFound
	}
	return fa.GetFunc(obj, field)
}

// Set delegates to SetFunc.
func (fa FuncAccessor) Set(obj any, field string, value any) error {
	if fa.SetFunc == nil {
		return errors.ErrFieldNotFound
	}
	return fa.SetFunc(obj, field, value)
}
