package unitofwork

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/refbridge/errors"
	"github.com/c360/refbridge/event"
	"github.com/c360/refbridge/metadata"
	"github.com/c360/refbridge/store"
)

// objectState tracks whether an owner object has been processed before.
type objectState int

const (
	stateNew objectState = iota // default: nothing recorded yet
	stateManaged
)

// referenceState marks referenced objects that have been associated with an
// owner and field.
type referenceState int

const (
	stateReferenced referenceState = iota + 1
)

// flushState is the commit re-entrancy guard, modeled as explicit states
// rather than a boolean so the reset point is unambiguous: only Clear returns
// the unit of work to flushIdle.
type flushState int

const (
	flushIdle flushState = iota
	flushing
	flushed
)

// clearState guards Clear against re-entrant calls triggered by manager
// notifications during the cascade.
type clearState int

const (
	clearIdle clearState = iota
	clearing
)

// registration records one resolved reference so the deferred-update pass can
// find it without re-reading mapping metadata.
type registration struct {
	ownerToken store.Token
	owner      any
	referenced any
	field      string
}

// UnitOfWork tracks which in-memory objects hold references into the other
// store, schedules insert/update/remove operations against the responsible
// managers, and commits or clears them with ordering and idempotence
// guarantees.
//
// A UnitOfWork is request-scoped and not safe for concurrent mutation.
type UnitOfWork struct {
	registry *metadata.Registry
	resolver store.Resolver
	events   *event.Dispatcher
	logger   *slog.Logger
	metrics  *uowMetrics

	tokens           *store.TokenMap
	objects          map[store.Token]any
	objectStates     map[store.Token]objectState
	referencedStates map[store.Token]referenceState
	registrations    []registration

	inserts *scheduleQueue
	updates *scheduleQueue
	removes *scheduleQueue

	flushState flushState
	clearState clearState

	// accessors caches per-type fallback accessors for referenced objects
	// whose class has no registered descriptor.
	accessors   map[string]metadata.Accessor
	accessorsMu sync.Mutex
}

// Option configures a UnitOfWork
type Option func(*UnitOfWork) error

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(u *UnitOfWork) error {
		if logger != nil {
			u.logger = logger
		}
		return nil
	}
}

// WithDispatcher sets the lifecycle event dispatcher
func WithDispatcher(d *event.Dispatcher) Option {
	return func(u *UnitOfWork) error {
		if d != nil {
			u.events = d
		}
		return nil
	}
}

// WithMetrics registers operation metrics on the given registerer
func WithMetrics(reg prometheus.Registerer) Option {
	return func(u *UnitOfWork) error {
		m, err := newUOWMetrics(reg)
		if err != nil {
			return err
		}
		u.metrics = m
		return nil
	}
}

// New creates a UnitOfWork over the given descriptor registry and manager
// resolver.
func New(registry *metadata.Registry, resolver store.Resolver, opts ...Option) (*UnitOfWork, error) {
	if registry == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "UnitOfWork", "New", "registry validation")
	}
	if resolver == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "UnitOfWork", "New", "resolver validation")
	}

	u := &UnitOfWork{
		registry:         registry,
		resolver:         resolver,
		logger:           slog.Default(),
		tokens:           store.NewTokenMap(),
		objects:          make(map[store.Token]any),
		objectStates:     make(map[store.Token]objectState),
		referencedStates: make(map[store.Token]referenceState),
		inserts:          newScheduleQueue(),
		updates:          newScheduleQueue(),
		removes:          newScheduleQueue(),
		accessors:        make(map[string]metadata.Accessor),
	}

	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}
	if u.events == nil {
		u.events = event.NewDispatcher(u.logger)
	}

	return u, nil
}

// Events returns the lifecycle dispatcher for listener registration.
func (u *UnitOfWork) Events() *event.Dispatcher {
	return u.events
}

// Stats is a point-in-time snapshot of the unit of work's tracked state.
type Stats struct {
	TrackedObjects int
	Registered     int
	Inserts        int
	Updates        int
	Removes        int
}

// Stats reports the current tracking and queue depths.
func (u *UnitOfWork) Stats() Stats {
	return Stats{
		TrackedObjects: len(u.objects),
		Registered:     len(u.registrations),
		Inserts:        u.inserts.len(),
		Updates:        u.updates.len(),
		Removes:        u.removes.len(),
	}
}

// resolvedReference is one extracted reference field with its current value.
type resolvedReference struct {
	mapping metadata.ReferenceMapping
	value   any
}

// Persist schedules the object's references for insert (first time) or update
// (already managed). Every declared reference field must be populated.
func (u *UnitOfWork) Persist(ctx context.Context, obj any) error {
	desc, err := u.registry.DescriptorFor(obj)
	if err != nil {
		return errors.Wrap(err, "UnitOfWork", "Persist", "descriptor lookup")
	}

	refs, err := u.extractReferences(obj, desc, "Persist")
	if err != nil {
		return err
	}

	tok := u.tokens.TokenFor(obj)
	state := u.objectStates[tok]

	u.events.Dispatch(ctx, event.PreReferencing, event.Payload{Owner: obj, Descriptor: desc})

	if state == stateNew {
		for _, ref := range refs {
			u.events.Dispatch(ctx, event.PreBindReference, event.Payload{
				Owner: obj, Referenced: ref.value, Field: ref.mapping.FieldName, Descriptor: desc,
			})
			if err := u.schedule(u.inserts, tok, ref.mapping.FieldName, ref.value); err != nil {
				return err
			}
			if err := u.syncCommonFields(obj, ref.value, desc); err != nil {
				return err
			}
			u.referencedStates[u.tokens.TokenFor(ref.value)] = stateReferenced
		}
	} else {
		for _, ref := range refs {
			u.events.Dispatch(ctx, event.PreUpdateReference, event.Payload{
				Owner: obj, Referenced: ref.value, Field: ref.mapping.FieldName, Descriptor: desc,
			})
			manager, err := u.resolver.ManagerFor(obj, ref.mapping.FieldName)
			if err != nil {
				return errors.Wrap(err, "UnitOfWork", "Persist", "manager resolution")
			}
			if err := manager.Persist(ctx, ref.value); err != nil {
				return errors.Wrap(err, "UnitOfWork", "Persist", "persist reference")
			}
			if err := u.syncCommonFields(obj, ref.value, desc); err != nil {
				return err
			}
			if err := u.schedule(u.updates, tok, ref.mapping.FieldName, ref.value); err != nil {
				return err
			}
			u.referencedStates[u.tokens.TokenFor(ref.value)] = stateReferenced
		}
	}

	u.objects[tok] = obj
	u.objectStates[tok] = stateManaged
	u.metrics.observePersist(state == stateNew)
	u.updateQueueMetrics()

	u.events.Dispatch(ctx, event.PostReferencing, event.Payload{Owner: obj, Descriptor: desc})
	return nil
}

// Remove schedules the object's references for removal and invokes remove on
// the resolved managers.
func (u *UnitOfWork) Remove(ctx context.Context, obj any) error {
	desc, err := u.registry.DescriptorFor(obj)
	if err != nil {
		return errors.Wrap(err, "UnitOfWork", "Remove", "descriptor lookup")
	}

	refs, err := u.extractReferences(obj, desc, "Remove")
	if err != nil {
		return err
	}

	tok := u.tokens.TokenFor(obj)

	u.events.Dispatch(ctx, event.PreRemoveReferencing, event.Payload{Owner: obj, Descriptor: desc})

	for _, ref := range refs {
		u.events.Dispatch(ctx, event.PreRemoveReference, event.Payload{
			Owner: obj, Referenced: ref.value, Field: ref.mapping.FieldName, Descriptor: desc,
		})
		manager, err := u.resolver.ManagerFor(obj, ref.mapping.FieldName)
		if err != nil {
			return errors.Wrap(err, "UnitOfWork", "Remove", "manager resolution")
		}
		if err := manager.Remove(ctx, ref.value); err != nil {
			return errors.Wrap(err, "UnitOfWork", "Remove", "remove reference")
		}
		if err := u.schedule(u.removes, tok, ref.mapping.FieldName, ref.value); err != nil {
			return err
		}
	}

	u.objects[tok] = obj
	u.objectStates[tok] = stateManaged
	u.metrics.observeRemove()
	u.updateQueueMetrics()
	return nil
}

// LoadReferences resolves each declared reference field from its stored
// correlation value to a lazy handle and assigns it onto the object. A stored
// unique-id is translated to the canonical identifier through the session
// lookup first; a not-found lookup leaves that field unset and loading
// continues with the next field.
func (u *UnitOfWork) LoadReferences(ctx context.Context, obj any) error {
	desc, err := u.registry.DescriptorFor(obj)
	if err != nil {
		return errors.Wrap(err, "UnitOfWork", "LoadReferences", "descriptor lookup")
	}

	tok := u.tokens.TokenFor(obj)
	accessor := desc.Accessor()

	for _, mapping := range desc.References() {
		raw, err := accessor.Get(obj, mapping.InversedBy)
		if err != nil {
			if errors.Is(err, errors.ErrFieldNotFound) {
				continue
			}
			return errors.Wrap(err, "UnitOfWork", "LoadReferences", "read correlation value")
		}

		id, ok := raw.(string)
		if !ok || id == "" {
			continue
		}

		manager, err := u.resolver.ManagerFor(obj, mapping.FieldName)
		if err != nil {
			return errors.Wrap(err, "UnitOfWork", "LoadReferences", "manager resolution")
		}

		// A unique-id is not an identifier: dereferencing by it directly
		// would populate the wrong identity field on the loaded object.
		if isUniqueID(id) {
			resolved, err := manager.Session().ResolveUniqueID(ctx, id)
			if err != nil {
				if errors.Is(err, errors.ErrUniqueIDNotFound) {
					u.logger.Debug("unique id not found, leaving reference unset",
						"field", mapping.FieldName, "uid", id)
					continue
				}
				return errors.Wrap(err, "UnitOfWork", "LoadReferences", "resolve unique id")
			}
			id = resolved
		}

		ref, err := manager.GetReference(ctx, mapping.TargetType, id)
		if err != nil {
			return errors.Wrap(err, "UnitOfWork", "LoadReferences", "get reference")
		}

		if err := accessor.Set(obj, mapping.FieldName, ref); err != nil {
			return errors.Wrap(err, "UnitOfWork", "LoadReferences", "assign reference")
		}

		u.registrations = append(u.registrations, registration{
			ownerToken: tok,
			owner:      obj,
			referenced: ref,
			field:      mapping.FieldName,
		})
		u.referencedStates[u.tokens.TokenFor(ref)] = stateReferenced

		u.events.Dispatch(ctx, event.PostLoadReference, event.Payload{
			Owner: obj, Referenced: ref, Field: mapping.FieldName, Descriptor: desc,
		})
	}

	u.objects[tok] = obj
	u.objectStates[tok] = stateManaged
	u.metrics.observeLoad()

	u.events.Dispatch(ctx, event.PostLoadReferencing, event.Payload{Owner: obj, Descriptor: desc})
	return nil
}

// extractReferences reads every declared reference field off the object. A
// declared field with no value is a caller error: references must be
// populated before Persist or Remove act on them.
func (u *UnitOfWork) extractReferences(obj any, desc *metadata.ClassDescriptor, op string) ([]resolvedReference, error) {
	accessor := desc.Accessor()
	refs := make([]resolvedReference, 0, len(desc.References()))

	for _, mapping := range desc.References() {
		value, err := accessor.Get(obj, mapping.FieldName)
		if err != nil {
			return nil, errors.Wrap(err, "UnitOfWork", op, "read reference field")
		}
		if isUnset(value) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s.%s", errors.ErrMissingReference, desc.Name(), mapping.FieldName),
				"UnitOfWork", op, "reference field check")
		}
		refs = append(refs, resolvedReference{mapping: mapping, value: value})
	}

	return refs, nil
}

// schedule enforces the one-queue-per-key invariant before adding: a key may
// occupy at most one queue, once. Scheduling for insert or update while the
// key sits in any queue fails without mutating state, so a pending removal is
// never silently lost and an insert is never double-counted. Scheduling for
// removal supersedes a pending insert or update for the same key, but a key
// cannot be scheduled for removal twice.
func (u *UnitOfWork) schedule(target *scheduleQueue, owner store.Token, field string, ref any) error {
	key := queueKey{owner: owner, field: field}

	if target == u.removes {
		if u.removes.has(key) {
			u.metrics.observeConflict()
			return errors.WrapInvalid(
				fmt.Errorf("%w: field %q already scheduled for removal", errors.ErrSchedulingConflict, field),
				"UnitOfWork", "schedule", "conflict check")
		}
		u.inserts.delete(key)
		u.updates.delete(key)
		u.removes.add(key, ref)
		return nil
	}

	if u.inserts.has(key) || u.updates.has(key) || u.removes.has(key) {
		u.metrics.observeConflict()
		return errors.WrapInvalid(
			fmt.Errorf("%w: field %q", errors.ErrSchedulingConflict, field),
			"UnitOfWork", "schedule", "conflict check")
	}

	target.add(key, ref)
	return nil
}

// syncCommonFields copies configured common-field values between the owner
// and its referenced object in the declared direction. It is a no-op when
// either side is an unmaterialized handle, and tolerates field names missing
// from a partial mapping.
func (u *UnitOfWork) syncCommonFields(owner, referenced any, desc *metadata.ClassDescriptor) error {
	refType := metadata.TypeNameOf(referenced)
	ownerAccessor := desc.Accessor()

	for _, mapping := range desc.References() {
		if mapping.TargetType != refType || len(mapping.CommonFields) == 0 {
			continue
		}

		// Field access on a sleeping handle would force an unwanted load.
		if !store.IsMaterialized(owner) || !store.IsMaterialized(referenced) {
			return nil
		}

		refAccessor, err := u.accessorFor(referenced, refType)
		if err != nil {
			return err
		}

		for _, cf := range mapping.CommonFields {
			var copyErr error
			switch cf.Sync {
			case metadata.SyncToReference:
				value, err := ownerAccessor.Get(owner, cf.TargetField)
				if err != nil {
					copyErr = err
					break
				}
				copyErr = refAccessor.Set(referenced, cf.ReferencedBy, value)
			case metadata.SyncFromReference:
				value, err := refAccessor.Get(referenced, cf.ReferencedBy)
				if err != nil {
					copyErr = err
					break
				}
				copyErr = ownerAccessor.Set(owner, cf.TargetField, value)
			}

			if copyErr != nil {
				if errors.Is(copyErr, errors.ErrFieldNotFound) {
					continue // tolerate partial mappings
				}
				return errors.Wrap(copyErr, "UnitOfWork", "syncCommonFields", "copy field value")
			}
		}
	}

	return nil
}

// accessorFor returns the accessor for a referenced object: the registered
// descriptor's accessor when the class is mapped, otherwise a struct accessor
// resolved once and cached per type.
func (u *UnitOfWork) accessorFor(obj any, typeName string) (metadata.Accessor, error) {
	if desc, err := u.registry.Lookup(typeName); err == nil {
		return desc.Accessor(), nil
	}

	u.accessorsMu.Lock()
	defer u.accessorsMu.Unlock()

	if acc, ok := u.accessors[typeName]; ok {
		return acc, nil
	}
	acc, err := metadata.NewStructAccessor(obj)
	if err != nil {
		return nil, errors.Wrap(err, "UnitOfWork", "accessorFor", "build fallback accessor")
	}
	u.accessors[typeName] = acc
	return acc, nil
}

// isUniqueID reports whether a stored correlation value is a store-specific
// unique-id rather than a canonical identifier.
func isUniqueID(id string) bool {
	return uuid.Validate(id) == nil
}

// isUnset reports whether a reference field value is absent.
func isUnset(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
