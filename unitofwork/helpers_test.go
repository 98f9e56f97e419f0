package unitofwork

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/refbridge/errors"
	"github.com/c360/refbridge/event"
	"github.com/c360/refbridge/metadata"
	"github.com/c360/refbridge/store"
)

// article is the primary-store entity used throughout these tests.
type article struct {
	Title     string
	Body      string
	Content   *page
	ContentID string
}

// page is the document-store counterpart. It embeds store.Lazy so it can act
// as an unmaterialized handle.
type page struct {
	store.Lazy
	Path  string
	Title string
	Body  string
}

// attachment exercises owners with more than one reference field.
type attachment struct {
	Name    string
	Main    *page
	MainID  string
	Extra   *page
	ExtraID string
}

// fakeSession records unique-id lookups.
type fakeSession struct {
	uids    map[string]string
	lookups []string
}

func (s *fakeSession) ResolveUniqueID(_ context.Context, uid string) (string, error) {
	s.lookups = append(s.lookups, uid)
	id, ok := s.uids[uid]
	if !ok {
		return "", errors.ErrUniqueIDNotFound
	}
	return id, nil
}

// fakeManager is a recording store.Manager.
type fakeManager struct {
	name       string
	persisted  []any
	removed    []any
	flushCalls int
	clearCalls int
	flushErr   error
	session    *fakeSession
	mu         sync.Mutex
}

func newFakeManager(name string) *fakeManager {
	return &fakeManager{
		name:    name,
		session: &fakeSession{uids: make(map[string]string)},
	}
}

func (m *fakeManager) Persist(_ context.Context, obj any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted = append(m.persisted, obj)
	return nil
}

func (m *fakeManager) Remove(_ context.Context, obj any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, obj)
	return nil
}

func (m *fakeManager) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushCalls++
	return m.flushErr
}

func (m *fakeManager) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	return nil
}

func (m *fakeManager) GetReference(_ context.Context, targetType, id string) (any, error) {
	if targetType != "page" {
		return nil, fmt.Errorf("%w: %s", errors.ErrTypeNotRegistered, targetType)
	}
	p := &page{Path: id}
	p.SetLoadState(store.Unloaded)
	return p, nil
}

func (m *fakeManager) Session() store.Session {
	return m.session
}

// eventRecorder captures dispatched lifecycle events in order.
type eventRecorder struct {
	kinds    []event.Kind
	payloads []event.Payload
}

func (r *eventRecorder) record(kind event.Kind, d *event.Dispatcher) {
	d.Subscribe(kind, func(_ context.Context, p event.Payload) error {
		r.kinds = append(r.kinds, kind)
		r.payloads = append(r.payloads, p)
		return nil
	})
}

func (r *eventRecorder) recordAll(d *event.Dispatcher) {
	for k := event.PreReferencing; k <= event.OnClear; k++ {
		r.record(k, d)
	}
}

func (r *eventRecorder) count(kind event.Kind) int {
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) payloadsOf(kind event.Kind) []event.Payload {
	var out []event.Payload
	for i, k := range r.kinds {
		if k == kind {
			out = append(out, r.payloads[i])
		}
	}
	return out
}

// newTestRegistry registers descriptors for the test entity types.
func newTestRegistry(t *testing.T, commonFields ...metadata.CommonField) *metadata.Registry {
	t.Helper()

	registry := metadata.NewRegistry()

	articleAccessor, err := metadata.NewStructAccessor(&article{})
	require.NoError(t, err)
	articleDesc, err := metadata.NewClassDescriptor("article", articleAccessor, metadata.ReferenceMapping{
		FieldName:    "Content",
		TargetType:   "page",
		ReferencedBy: "Path",
		InversedBy:   "ContentID",
		CommonFields: commonFields,
	})
	require.NoError(t, err)
	require.NoError(t, registry.Register(articleDesc))

	pageAccessor, err := metadata.NewStructAccessor(&page{})
	require.NoError(t, err)
	pageDesc, err := metadata.NewClassDescriptor("page", pageAccessor)
	require.NoError(t, err)
	require.NoError(t, registry.Register(pageDesc))

	attachmentAccessor, err := metadata.NewStructAccessor(&attachment{})
	require.NoError(t, err)
	attachmentDesc, err := metadata.NewClassDescriptor("attachment", attachmentAccessor,
		metadata.ReferenceMapping{
			FieldName:    "Main",
			TargetType:   "page",
			ReferencedBy: "Path",
			InversedBy:   "MainID",
		},
		metadata.ReferenceMapping{
			FieldName:    "Extra",
			TargetType:   "page",
			ReferencedBy: "Path",
			InversedBy:   "ExtraID",
		})
	require.NoError(t, err)
	require.NoError(t, registry.Register(attachmentDesc))

	return registry
}

// newTestUOW wires a unit of work with one fake manager behind all fields.
func newTestUOW(t *testing.T, commonFields ...metadata.CommonField) (*UnitOfWork, *fakeManager, *eventRecorder) {
	t.Helper()

	manager := newFakeManager("docs")
	resolver := store.NewStaticResolver(manager)

	uow, err := New(newTestRegistry(t, commonFields...), resolver)
	require.NoError(t, err)

	recorder := &eventRecorder{}
	recorder.recordAll(uow.Events())

	return uow, manager, recorder
}

func loadedPage(path string) *page {
	return &page{Path: path}
}
