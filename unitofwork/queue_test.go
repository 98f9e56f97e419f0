package unitofwork

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/refbridge/store"
)

func TestScheduleQueueOrder(t *testing.T) {
	q := newScheduleQueue()

	k1 := queueKey{owner: store.Token("a"), field: "Content"}
	k2 := queueKey{owner: store.Token("b"), field: "Content"}
	k3 := queueKey{owner: store.Token("a"), field: "Extra"}

	q.add(k1, "one")
	q.add(k2, "two")
	q.add(k3, "three")

	assert.Equal(t, []queueKey{k1, k2, k3}, q.keys(), "insertion order is stable")
	assert.Equal(t, 3, q.len())
	assert.Equal(t, "two", q.get(k2))
	assert.True(t, q.has(k1))
}

func TestScheduleQueueDelete(t *testing.T) {
	q := newScheduleQueue()

	k1 := queueKey{owner: store.Token("a"), field: "Content"}
	k2 := queueKey{owner: store.Token("b"), field: "Content"}

	q.add(k1, "one")
	q.add(k2, "two")
	q.delete(k1)

	assert.False(t, q.has(k1))
	assert.Equal(t, []queueKey{k2}, q.keys(), "deleted keys drop out of iteration")

	// Re-adding after delete must not duplicate the key in iteration.
	q.add(k1, "again")
	assert.Equal(t, []queueKey{k2, k1}, q.keys())
}

func TestScheduleQueueReset(t *testing.T) {
	q := newScheduleQueue()
	q.add(queueKey{owner: store.Token("a"), field: "Content"}, "one")

	q.reset()
	assert.Zero(t, q.len())
	assert.Empty(t, q.keys())
}
