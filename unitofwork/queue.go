package unitofwork

import "github.com/c360/refbridge/store"

// queueKey identifies one scheduled reference: the owning object's identity
// token plus the reference field name.
type queueKey struct {
	owner store.Token
	field string
}

// scheduleQueue is an insertion-ordered map of queued references. Commit and
// clear depend on stable iteration order, which plain map ranging does not
// give.
type scheduleQueue struct {
	entries map[queueKey]any
	order   []queueKey
}

func newScheduleQueue() *scheduleQueue {
	return &scheduleQueue{entries: make(map[queueKey]any)}
}

func (q *scheduleQueue) has(key queueKey) bool {
	_, ok := q.entries[key]
	return ok
}

func (q *scheduleQueue) add(key queueKey, ref any) {
	if _, ok := q.entries[key]; !ok {
		q.order = append(q.order, key)
	}
	q.entries[key] = ref
}

func (q *scheduleQueue) get(key queueKey) any {
	return q.entries[key]
}

func (q *scheduleQueue) delete(key queueKey) {
	if _, ok := q.entries[key]; !ok {
		return
	}
	delete(q.entries, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i:i], q.order[i+1:]...)
			break
		}
	}
}

// keys returns the queued keys in scheduling order.
func (q *scheduleQueue) keys() []queueKey {
	keys := make([]queueKey, len(q.order))
	copy(keys, q.order)
	return keys
}

func (q *scheduleQueue) len() int {
	return len(q.entries)
}

func (q *scheduleQueue) reset() {
	q.entries = make(map[queueKey]any)
	q.order = nil
}
