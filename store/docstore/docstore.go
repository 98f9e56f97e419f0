package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/refbridge/errors"
	"github.com/c360/refbridge/metadata"
	"github.com/c360/refbridge/pkg/retry"
	"github.com/c360/refbridge/store"
)

// KeyValue is the subset of jetstream.KeyValue the store depends on. Unit
// tests substitute an in-memory implementation.
type KeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
}

// DocumentType describes one document class persisted by this store.
type DocumentType struct {
	// Name is the registered class name, matching metadata.TypeNameOf.
	Name string
	// New constructs an empty instance (pointer).
	New func() any
	// PathField is the field carrying the canonical path identifier.
	PathField string
	// UniqueIDField optionally carries the store unique-id.
	UniqueIDField string
}

// Config holds the bucket names for a document store.
type Config struct {
	// DocsBucket holds documents keyed by canonical path.
	DocsBucket string
	// UIDBucket maps unique-ids to canonical paths.
	UIDBucket string
}

// DefaultConfig returns the default bucket layout
func DefaultConfig() Config {
	return Config{
		DocsBucket: "refbridge_documents",
		UIDBucket:  "refbridge_uids",
	}
}

type opKind int

const (
	opPersist opKind = iota
	opRemove
)

type operation struct {
	kind opKind
	obj  any
}

// Store is a document store.Manager backed by NATS JetStream KV. Documents
// live in one bucket keyed by canonical path; a second bucket indexes store
// unique-ids to paths for the session lookup. Writes are buffered per session
// and applied by Flush with transient-failure retry.
type Store struct {
	docs      KeyValue
	uids      KeyValue
	types     map[string]DocumentType
	accessors map[string]metadata.Accessor
	pending   []operation
	retryCfg  retry.Config
	session   *session
	logger    *slog.Logger
	mu        sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetry overrides the flush retry policy
func WithRetry(cfg retry.Config) Option {
	return func(s *Store) {
		s.retryCfg = cfg
	}
}

// New creates the KV buckets on the given JetStream context and returns a
// store over them.
func New(ctx context.Context, js jetstream.JetStream, cfg Config, opts ...Option) (*Store, error) {
	if js == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "docstore", "New", "jetstream validation")
	}
	if cfg.DocsBucket == "" || cfg.UIDBucket == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "docstore", "New", "bucket name validation")
	}

	docs, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.DocsBucket,
		Description: "Bridged documents keyed by canonical path",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "docstore", "New", "create documents bucket")
	}

	uids, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.UIDBucket,
		Description: "Unique-id to canonical path index",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "docstore", "New", "create uid bucket")
	}

	return NewFromBuckets(docs, uids, opts...), nil
}

// NewFromBuckets builds a store over existing buckets.
func NewFromBuckets(docs, uids KeyValue, opts ...Option) *Store {
	s := &Store{
		docs:      docs,
		uids:      uids,
		types:     make(map[string]DocumentType),
		accessors: make(map[string]metadata.Accessor),
		retryCfg:  retry.DefaultConfig(),
		logger:    slog.Default(),
	}
	s.session = &session{store: s}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterType makes a document class known to the store. The field accessor
// is resolved here, once.
func (s *Store) RegisterType(dt DocumentType) error {
	if dt.Name == "" || dt.New == nil || dt.PathField == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "docstore", "RegisterType", "document type validation")
	}

	accessor, err := metadata.NewStructAccessor(dt.New())
	if err != nil {
		return errors.Wrap(err, "docstore", "RegisterType", "resolve accessor")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.types[dt.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("document type %q is already registered", dt.Name),
			"docstore", "RegisterType", "duplicate type check")
	}
	s.types[dt.Name] = dt
	s.accessors[dt.Name] = accessor
	return nil
}

// Persist stages obj for writing at the next Flush.
func (s *Store) Persist(_ context.Context, obj any) error {
	if _, _, err := s.typeOf(obj, "Persist"); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = append(s.pending, operation{kind: opPersist, obj: obj})
	s.mu.Unlock()
	return nil
}

// Remove stages obj for deletion at the next Flush.
func (s *Store) Remove(_ context.Context, obj any) error {
	if _, _, err := s.typeOf(obj, "Remove"); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = append(s.pending, operation{kind: opRemove, obj: obj})
	s.mu.Unlock()
	return nil
}

// Flush drains the session buffer in staging order, retrying transient KV
// failures. Document state is serialized at flush time, so in-place edits
// made after Persist are captured.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, op := range pending {
		dt, accessor, err := s.typeOf(op.obj, "Flush")
		if err != nil {
			return err
		}
		path, err := s.pathOf(op.obj, dt, accessor, "Flush")
		if err != nil {
			return err
		}
		uid, err := s.uniqueIDOf(op.obj, dt, accessor)
		if err != nil {
			return err
		}

		switch op.kind {
		case opPersist:
			data, err := json.Marshal(op.obj)
			if err != nil {
				return errors.WrapFatal(err, "docstore", "Flush", "marshal document")
			}
			err = retry.Do(ctx, s.retryCfg, func() error {
				_, putErr := s.docs.Put(ctx, path, data)
				return putErr
			})
			if err != nil {
				return errors.WrapTransient(err, "docstore", "Flush", "put document")
			}
			if uid != "" {
				err = retry.Do(ctx, s.retryCfg, func() error {
					_, putErr := s.uids.Put(ctx, uid, []byte(path))
					return putErr
				})
				if err != nil {
					return errors.WrapTransient(err, "docstore", "Flush", "index unique id")
				}
			}
		case opRemove:
			if err := s.docs.Delete(ctx, path); err != nil && err != jetstream.ErrKeyNotFound {
				return errors.WrapTransient(err, "docstore", "Flush", "delete document")
			}
			if uid != "" {
				if err := s.uids.Delete(ctx, uid); err != nil && err != jetstream.ErrKeyNotFound {
					return errors.WrapTransient(err, "docstore", "Flush", "drop unique id index")
				}
			}
		}
	}

	if len(pending) > 0 {
		s.logger.Debug("document session flushed", "operations", len(pending))
	}
	return nil
}

// Clear discards the staged session work.
func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return nil
}

// GetReference returns a lazy handle carrying only the path identity.
func (s *Store) GetReference(_ context.Context, targetType, id string) (any, error) {
	s.mu.Lock()
	dt, ok := s.types[targetType]
	accessor := s.accessors[targetType]
	s.mu.Unlock()
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrTypeNotRegistered, targetType),
			"docstore", "GetReference", "type lookup")
	}

	obj := dt.New()
	if err := accessor.Set(obj, dt.PathField, id); err != nil {
		return nil, errors.Wrap(err, "docstore", "GetReference", "set path")
	}
	if setter, ok := obj.(store.LoadStateSetter); ok {
		setter.SetLoadState(store.Unloaded)
	}
	return obj, nil
}

// Load materializes obj from its stored document, keyed by its path field.
func (s *Store) Load(ctx context.Context, obj any) error {
	dt, accessor, err := s.typeOf(obj, "Load")
	if err != nil {
		return err
	}
	path, err := s.pathOf(obj, dt, accessor, "Load")
	if err != nil {
		return err
	}

	entry, err := s.docs.Get(ctx, path)
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrReferenceNotFound, path),
				"docstore", "Load", "document lookup")
		}
		return errors.WrapTransient(err, "docstore", "Load", "get document")
	}

	if err := json.Unmarshal(entry.Value(), obj); err != nil {
		return errors.WrapFatal(err, "docstore", "Load", "unmarshal document")
	}
	if setter, ok := obj.(store.LoadStateSetter); ok {
		setter.SetLoadState(store.Loaded)
	}
	return nil
}

// Session implements store.Manager.
func (s *Store) Session() store.Session {
	return s.session
}

func (s *Store) typeOf(obj any, method string) (DocumentType, metadata.Accessor, error) {
	name := metadata.TypeNameOf(obj)

	s.mu.Lock()
	dt, ok := s.types[name]
	accessor := s.accessors[name]
	s.mu.Unlock()

	if !ok {
		return DocumentType{}, nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrTypeNotRegistered, name),
			"docstore", method, "type lookup")
	}
	return dt, accessor, nil
}

func (s *Store) pathOf(obj any, dt DocumentType, accessor metadata.Accessor, method string) (string, error) {
	raw, err := accessor.Get(obj, dt.PathField)
	if err != nil {
		return "", errors.Wrap(err, "docstore", method, "read path field")
	}
	path, _ := raw.(string)
	if path == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("document %s has no path", dt.Name),
			"docstore", method, "path check")
	}
	return path, nil
}

func (s *Store) uniqueIDOf(obj any, dt DocumentType, accessor metadata.Accessor) (string, error) {
	if dt.UniqueIDField == "" {
		return "", nil
	}
	raw, err := accessor.Get(obj, dt.UniqueIDField)
	if err != nil {
		if errors.Is(err, errors.ErrFieldNotFound) {
			return "", nil
		}
		return "", errors.Wrap(err, "docstore", "Flush", "read unique id field")
	}
	uid, _ := raw.(string)
	return uid, nil
}

// session implements store.Session over the uid index bucket.
type session struct {
	store *Store
}

// ResolveUniqueID translates a unique-id to the canonical document path.
func (se *session) ResolveUniqueID(ctx context.Context, uid string) (string, error) {
	entry, err := se.store.uids.Get(ctx, uid)
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return "", errors.ErrUniqueIDNotFound
		}
		return "", errors.WrapTransient(err, "docstore", "ResolveUniqueID", "get uid index")
	}
	return string(entry.Value()), nil
}
