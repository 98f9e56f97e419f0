package docstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/refbridge/errors"
	"github.com/c360/refbridge/pkg/retry"
	"github.com/c360/refbridge/store"
)

type page struct {
	store.Lazy
	Path  string
	UID   string
	Title string
}

// fakeEntry implements jetstream.KeyValueEntry for the in-memory bucket.
type fakeEntry struct {
	bucket string
	key    string
	value  []byte
}

func (e *fakeEntry) Bucket() string                  { return e.bucket }
func (e *fakeEntry) Key() string                     { return e.key }
func (e *fakeEntry) Value() []byte                   { return e.value }
func (e *fakeEntry) Revision() uint64                { return 1 }
func (e *fakeEntry) Created() time.Time              { return time.Time{} }
func (e *fakeEntry) Delta() uint64                   { return 0 }
func (e *fakeEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

// fakeBucket is an in-memory KeyValue. failures makes the next N Put calls
// fail with a transient error, for retry coverage.
type fakeBucket struct {
	name     string
	data     map[string][]byte
	puts     int
	failures int
}

func newFakeBucket(name string) *fakeBucket {
	return &fakeBucket{name: name, data: make(map[string][]byte)}
}

func (b *fakeBucket) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	value, ok := b.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return &fakeEntry{bucket: b.name, key: key, value: value}, nil
}

func (b *fakeBucket) Put(_ context.Context, key string, value []byte) (uint64, error) {
	b.puts++
	if b.failures > 0 {
		b.failures--
		return 0, errors.WrapTransient(errors.ErrConnectionLost, "fakeBucket", "Put", "injected failure")
	}
	b.data[key] = value
	return 1, nil
}

func (b *fakeBucket) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	if _, ok := b.data[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(b.data, key)
	return nil
}

func newTestStore(t *testing.T) (*Store, *fakeBucket, *fakeBucket) {
	t.Helper()

	docs := newFakeBucket("documents")
	uids := newFakeBucket("uids")
	s := NewFromBuckets(docs, uids, WithRetry(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}))

	require.NoError(t, s.RegisterType(DocumentType{
		Name:          "page",
		New:           func() any { return &page{} },
		PathField:     "Path",
		UniqueIDField: "UID",
	}))
	return s, docs, uids
}

func TestRegisterTypeValidation(t *testing.T) {
	s, _, _ := newTestStore(t)

	err := s.RegisterType(DocumentType{Name: "page", New: func() any { return &page{} }, PathField: "Path"})
	assert.Error(t, err, "duplicate registration fails")

	err = s.RegisterType(DocumentType{Name: "incomplete"})
	assert.True(t, errors.IsInvalid(err))
}

func TestPersistFlushLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, docs, uids := newTestStore(t)

	p := &page{Path: "/cms/home", UID: "uid-1", Title: "Home"}
	require.NoError(t, s.Persist(ctx, p))
	assert.Empty(t, docs.data, "nothing written before flush")

	require.NoError(t, s.Flush(ctx))
	assert.Contains(t, docs.data, "/cms/home")
	assert.Equal(t, "/cms/home", string(uids.data["uid-1"]))

	loaded := &page{Path: "/cms/home"}
	require.NoError(t, s.Load(ctx, loaded))
	assert.Equal(t, "Home", loaded.Title)
	assert.Equal(t, store.Loaded, loaded.LoadState())
}

func TestFlushSerializesAtFlushTime(t *testing.T) {
	ctx := context.Background()
	s, docs, _ := newTestStore(t)

	p := &page{Path: "/cms/home", Title: "Home"}
	require.NoError(t, s.Persist(ctx, p))
	p.Title = "Welcome"
	require.NoError(t, s.Flush(ctx))

	var stored page
	require.NoError(t, json.Unmarshal(docs.data["/cms/home"], &stored))
	assert.Equal(t, "Welcome", stored.Title)
}

func TestFlushRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	s, docs, _ := newTestStore(t)

	docs.failures = 2
	require.NoError(t, s.Persist(ctx, &page{Path: "/cms/home", Title: "Home"}))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 3, docs.puts, "two failures then success")
	assert.Contains(t, docs.data, "/cms/home")
}

func TestFlushGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	s, docs, _ := newTestStore(t)

	docs.failures = 5
	require.NoError(t, s.Persist(ctx, &page{Path: "/cms/home"}))
	err := s.Flush(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, 3, docs.puts)
}

func TestRemoveDropsDocumentAndIndex(t *testing.T) {
	ctx := context.Background()
	s, docs, uids := newTestStore(t)

	p := &page{Path: "/cms/home", UID: "uid-1", Title: "Home"}
	require.NoError(t, s.Persist(ctx, p))
	require.NoError(t, s.Flush(ctx))

	require.NoError(t, s.Remove(ctx, p))
	require.NoError(t, s.Flush(ctx))
	assert.Empty(t, docs.data)
	assert.Empty(t, uids.data)
}

func TestRemoveMissingDocumentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	require.NoError(t, s.Remove(ctx, &page{Path: "/cms/never-stored"}))
	assert.NoError(t, s.Flush(ctx))
}

func TestClearDropsPendingWork(t *testing.T) {
	ctx := context.Background()
	s, docs, _ := newTestStore(t)

	require.NoError(t, s.Persist(ctx, &page{Path: "/cms/home"}))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Flush(ctx))
	assert.Empty(t, docs.data, "cleared work is never applied")
}

func TestGetReferenceReturnsLazyHandle(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	ref, err := s.GetReference(ctx, "page", "/cms/about")
	require.NoError(t, err)

	handle, ok := ref.(*page)
	require.True(t, ok)
	assert.Equal(t, "/cms/about", handle.Path)
	assert.Equal(t, store.Unloaded, handle.LoadState())

	_, err = s.GetReference(ctx, "unknown", "x")
	assert.True(t, errors.Is(err, errors.ErrTypeNotRegistered))
}

func TestLoadMissingDocument(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	err := s.Load(ctx, &page{Path: "/cms/missing"})
	assert.True(t, errors.Is(err, errors.ErrReferenceNotFound))
}

func TestResolveUniqueID(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	p := &page{Path: "/cms/home", UID: "uid-1"}
	require.NoError(t, s.Persist(ctx, p))
	require.NoError(t, s.Flush(ctx))

	path, err := s.Session().ResolveUniqueID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "/cms/home", path)

	_, err = s.Session().ResolveUniqueID(ctx, "nope")
	assert.True(t, errors.Is(err, errors.ErrUniqueIDNotFound))
}

func TestPersistUnregisteredTypeFails(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	type stranger struct{ Path string }
	err := s.Persist(ctx, &stranger{Path: "/x"})
	assert.True(t, errors.Is(err, errors.ErrTypeNotRegistered))
}

func TestFlushWithoutPathFails(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	require.NoError(t, s.Persist(ctx, &page{Title: "orphan"}))
	err := s.Flush(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
