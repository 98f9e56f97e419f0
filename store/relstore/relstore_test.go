package relstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/refbridge/errors"
	"github.com/c360/refbridge/store"
)

type author struct {
	store.Lazy
	ID   string
	UID  string
	Name string
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.RegisterType(EntityType{
		Name:          "author",
		New:           func() any { return &author{} },
		IdentityField: "ID",
		UniqueIDField: "UID",
	}))
	return s
}

func TestRegisterTypeValidation(t *testing.T) {
	s := newTestStore(t)

	err := s.RegisterType(EntityType{Name: "author", New: func() any { return &author{} }, IdentityField: "ID"})
	assert.Error(t, err, "duplicate registration fails")

	err = s.RegisterType(EntityType{Name: "incomplete"})
	assert.Error(t, err)
}

func TestPersistFlushLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &author{ID: "author-1", Name: "Ada"}
	require.NoError(t, s.Persist(ctx, a))
	require.NoError(t, s.Flush(ctx))
	assert.NotEmpty(t, a.UID, "unique id generated at flush")

	loaded := &author{ID: "author-1"}
	require.NoError(t, s.Load(ctx, loaded))
	assert.Equal(t, "Ada", loaded.Name)
	assert.Equal(t, store.Loaded, loaded.LoadState())
}

func TestFlushIsTransactionalPerSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &author{ID: "author-1", Name: "Ada"}
	b := &author{ID: "author-2", Name: "Grace"}
	require.NoError(t, s.Persist(ctx, a))
	require.NoError(t, s.Persist(ctx, b))
	require.NoError(t, s.Flush(ctx))

	// Update and remove in one later session.
	a.Name = "Ada Lovelace"
	require.NoError(t, s.Persist(ctx, a))
	require.NoError(t, s.Remove(ctx, b))
	require.NoError(t, s.Flush(ctx))

	loaded := &author{ID: "author-1"}
	require.NoError(t, s.Load(ctx, loaded))
	assert.Equal(t, "Ada Lovelace", loaded.Name)

	missing := &author{ID: "author-2"}
	err := s.Load(ctx, missing)
	assert.True(t, errors.Is(err, errors.ErrReferenceNotFound))
}

func TestClearDropsPendingWork(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Persist(ctx, &author{ID: "author-1", Name: "Ada"}))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Flush(ctx))

	err := s.Load(ctx, &author{ID: "author-1"})
	assert.True(t, errors.Is(err, errors.ErrReferenceNotFound), "cleared work is never applied")
}

func TestGetReferenceReturnsLazyHandle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ref, err := s.GetReference(ctx, "author", "author-9")
	require.NoError(t, err)

	handle, ok := ref.(*author)
	require.True(t, ok)
	assert.Equal(t, "author-9", handle.ID)
	assert.Equal(t, store.Unloaded, handle.LoadState())

	_, err = s.GetReference(ctx, "unknown", "x")
	assert.True(t, errors.Is(err, errors.ErrTypeNotRegistered))
}

func TestResolveUniqueID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &author{ID: "author-1", Name: "Ada"}
	require.NoError(t, s.Persist(ctx, a))
	require.NoError(t, s.Flush(ctx))

	id, err := s.Session().ResolveUniqueID(ctx, a.UID)
	require.NoError(t, err)
	assert.Equal(t, "author-1", id)

	_, err = s.Session().ResolveUniqueID(ctx, "nope")
	assert.True(t, errors.Is(err, errors.ErrUniqueIDNotFound))
}

func TestLifecycleNotifications(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var kinds []store.EntityEventKind
	s.Notifier().Subscribe(func(_ context.Context, ev store.EntityEvent) error {
		kinds = append(kinds, ev.Kind)
		return nil
	})

	a := &author{ID: "author-1", Name: "Ada"}
	require.NoError(t, s.Persist(ctx, a))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Persist(ctx, a))
	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, []store.EntityEventKind{
		store.EntityCreated,
		store.StoreFlushed,
		store.EntityUpdated,
		store.StoreCleared,
	}, kinds)
}

func TestPersistUnregisteredTypeFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	type stranger struct{ ID string }
	err := s.Persist(ctx, &stranger{ID: "x"})
	assert.True(t, errors.Is(err, errors.ErrTypeNotRegistered))
}

func TestPersistWithoutIdentityFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Persist(ctx, &author{Name: "anonymous"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
