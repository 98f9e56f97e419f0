package unitofwork

import (
	"context"
	"fmt"

	"github.com/c360/refbridge/errors"
	"github.com/c360/refbridge/event"
	"github.com/c360/refbridge/store"
)

// Commit flushes every scheduled reference through its responsible manager.
// It is idempotent per lifecycle cycle: once a commit has run, further calls
// are no-ops until Clear resets the cycle. The guard also stops infinite
// recursion when a manager's flush re-enters Commit through lifecycle
// notifications.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.flushState != flushIdle {
		return nil
	}
	u.flushState = flushing

	if err := u.computeReferencedObjectsForUpdate(ctx); err != nil {
		return err
	}

	managers, err := u.groupManagers("Commit")
	if err != nil {
		return err
	}

	u.events.Dispatch(ctx, event.PreFlushReference, event.Payload{})

	for _, manager := range managers {
		u.events.Dispatch(ctx, event.OnFlushReference, event.Payload{Manager: manager})
		if err := manager.Flush(ctx); err != nil {
			return errors.Wrap(err, "UnitOfWork", "Commit", "flush manager")
		}
	}

	u.events.Dispatch(ctx, event.PostFlushReference, event.Payload{})

	u.dispatchPerEntry(ctx, u.inserts, event.PostBindReference)
	u.dispatchPerEntry(ctx, u.updates, event.PostUpdateReference)
	u.dispatchPerEntry(ctx, u.removes, event.PostRemoveReference)

	u.flushState = flushed
	u.metrics.observeCommit(len(managers))
	u.updateQueueMetrics()
	return nil
}

// Clear cascades clear to every manager responsible for a scheduled
// reference, then drops all tracked state and resets both lifecycle guards.
// Re-entrant calls during the cascade are no-ops.
func (u *UnitOfWork) Clear(ctx context.Context) error {
	if u.clearState != clearIdle {
		return nil
	}
	u.clearState = clearing

	managers, err := u.groupManagers("Clear")
	if err != nil {
		return err
	}

	for _, manager := range managers {
		if err := manager.Clear(ctx); err != nil {
			return errors.Wrap(err, "UnitOfWork", "Clear", "clear manager")
		}
	}

	u.objects = make(map[store.Token]any)
	u.objectStates = make(map[store.Token]objectState)
	u.referencedStates = make(map[store.Token]referenceState)
	u.registrations = nil
	u.inserts.reset()
	u.updates.reset()
	u.removes.reset()
	u.tokens.Reset()

	u.flushState = flushIdle
	u.clearState = clearIdle

	u.metrics.observeClear()
	u.updateQueueMetrics()

	u.events.Dispatch(ctx, event.OnClear, event.Payload{})
	return nil
}

// computeReferencedObjectsForUpdate treats every registered reference without
// a pending scheduled operation as implicitly dirty: references loaded and
// then mutated in place must still be flushed even though nobody called
// Persist on their owner again.
func (u *UnitOfWork) computeReferencedObjectsForUpdate(ctx context.Context) error {
	for _, reg := range u.registrations {
		key := queueKey{owner: reg.ownerToken, field: reg.field}
		if u.inserts.has(key) || u.updates.has(key) || u.removes.has(key) {
			continue
		}

		desc, err := u.registry.DescriptorFor(reg.owner)
		if err != nil {
			return errors.Wrap(err, "UnitOfWork", "computeReferencedObjectsForUpdate", "descriptor lookup")
		}

		u.events.Dispatch(ctx, event.PreUpdateReference, event.Payload{
			Owner: reg.owner, Referenced: reg.referenced, Field: reg.field, Descriptor: desc,
		})

		if err := u.syncCommonFields(reg.owner, reg.referenced, desc); err != nil {
			return err
		}
		if err := u.schedule(u.updates, reg.ownerToken, reg.field, reg.referenced); err != nil {
			return err
		}
	}
	return nil
}

// groupManagers resolves the distinct set of managers responsible for the
// currently queued references, in first-discovery order across the insert,
// update, and remove queues.
func (u *UnitOfWork) groupManagers(op string) ([]store.Manager, error) {
	var managers []store.Manager
	seen := make(map[store.Manager]bool)

	for _, queue := range []*scheduleQueue{u.inserts, u.updates, u.removes} {
		for _, key := range queue.keys() {
			owner, ok := u.objects[key.owner]
			if !ok {
				// Unreachable given the scheduling invariants, checked anyway.
				return nil, errors.WrapFatal(
					fmt.Errorf("%w: queued owner %s missing from object map", errors.ErrInconsistentState, key.owner),
					"UnitOfWork", op, "manager grouping")
			}

			manager, err := u.resolver.ManagerFor(owner, key.field)
			if err != nil {
				return nil, errors.Wrap(err, "UnitOfWork", op, "manager resolution")
			}
			if !seen[manager] {
				seen[manager] = true
				managers = append(managers, manager)
			}
		}
	}

	return managers, nil
}

// dispatchPerEntry fires one event per queued entry, in scheduling order. The
// owner's descriptor rides along like it does on the pre-side events; queued
// owners always have one since scheduling required it.
func (u *UnitOfWork) dispatchPerEntry(ctx context.Context, queue *scheduleQueue, kind event.Kind) {
	for _, key := range queue.keys() {
		owner := u.objects[key.owner]
		desc, _ := u.registry.DescriptorFor(owner)
		u.events.Dispatch(ctx, kind, event.Payload{
			Owner:      owner,
			Referenced: queue.get(key),
			Field:      key.field,
			Descriptor: desc,
		})
	}
}
