package relstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/c360/refbridge/errors"
	"github.com/c360/refbridge/metadata"
	"github.com/c360/refbridge/store"
)

// EntityType describes one entity class persisted by this store.
type EntityType struct {
	// Name is the registered class name, matching metadata.TypeNameOf.
	Name string
	// New constructs an empty instance (pointer).
	New func() any
	// IdentityField is the field carrying the canonical identifier.
	IdentityField string
	// UniqueIDField optionally carries the store unique-id. When empty, a
	// unique-id is generated at first flush.
	UniqueIDField string
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

// Store is a relational store.Manager backed by SQLite. Persist and Remove
// buffer session work; Flush applies the buffer in a single transaction.
//
// The store doubles as a primary store: it announces entity lifecycle
// transitions through its LifecycleNotifier so a hook adapter can drive the
// cross-store unit of work.
type Store struct {
	db        *sql.DB
	types     map[string]EntityType
	accessors map[string]metadata.Accessor
	pending   []operation
	known     map[string]bool // ids seen in this store, for created-vs-updated
	notifier  *store.LifecycleNotifier
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

// New opens (or creates) the SQLite database at path and migrates the schema.
func New(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.WrapTransient(err, "relstore", "New", "open database")
	}

	s := &Store{
		db:        db,
		types:     make(map[string]EntityType),
		accessors: make(map[string]metadata.Accessor),
		known:     make(map[string]bool),
		notifier:  &store.LifecycleNotifier{},
		logger:    slog.Default(),
	}
	s.session = &session{store: s}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.WrapFatal(err, "relstore", "New", "migrate schema")
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		uid TEXT UNIQUE,
		data JSON NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
	CREATE INDEX IF NOT EXISTS idx_entities_uid ON entities(uid);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Notifier exposes the lifecycle notification fan-out for adapter wiring.
func (s *Store) Notifier() *store.LifecycleNotifier {
	return s.notifier
}

// RegisterType makes an entity class known to the store. The field accessor
// is resolved here, once.
func (s *Store) RegisterType(et EntityType) error {
	if et.Name == "" || et.New == nil || et.IdentityField == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "relstore", "RegisterType", "entity type validation")
	}

	accessor, err := metadata.NewStructAccessor(et.New())
	if err != nil {
		return errors.Wrap(err, "relstore", "RegisterType", "resolve accessor")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.types[et.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("entity type %q is already registered", et.Name),
			"relstore", "RegisterType", "duplicate type check")
	}
	s.types[et.Name] = et
	s.accessors[et.Name] = accessor
	return nil
}

// Persist stages obj for upsert and announces the lifecycle transition.
func (s *Store) Persist(ctx context.Context, obj any) error {
	et, accessor, err := s.typeOf(obj, "Persist")
	if err != nil {
		return err
	}

	id, err := s.identityOf(obj, et, accessor, "Persist")
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = append(s.pending, operation{kind: opPersist, obj: obj})
	created := !s.known[id]
	s.known[id] = true
	s.mu.Unlock()

	kind := store.EntityUpdated
	if created {
		kind = store.EntityCreated
	}
	return s.notifier.Notify(ctx, store.EntityEvent{Kind: kind, Object: obj})
}

// Remove stages obj for deletion.
func (s *Store) Remove(ctx context.Context, obj any) error {
	if _, _, err := s.typeOf(obj, "Remove"); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = append(s.pending, operation{kind: opRemove, obj: obj})
	s.mu.Unlock()

	return s.notifier.Notify(ctx, store.EntityEvent{Kind: store.EntityDeleted, Object: obj})
}

// Flush applies the staged session work in one transaction, in staging order.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return s.notifier.Notify(ctx, store.EntityEvent{Kind: store.StoreFlushed})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "relstore", "Flush", "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, op := range pending {
		et, accessor, err := s.typeOf(op.obj, "Flush")
		if err != nil {
			return err
		}
		id, err := s.identityOf(op.obj, et, accessor, "Flush")
		if err != nil {
			return err
		}

		switch op.kind {
		case opPersist:
			data, err := json.Marshal(op.obj)
			if err != nil {
				return errors.WrapFatal(err, "relstore", "Flush", "marshal entity")
			}
			uid, err := s.uniqueIDOf(op.obj, et, accessor)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO entities (id, type, uid, data) VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP
			`, id, et.Name, uid, string(data))
			if err != nil {
				return errors.WrapTransient(err, "relstore", "Flush", "upsert entity")
			}
		case opRemove:
			if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
				return errors.WrapTransient(err, "relstore", "Flush", "delete entity")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "relstore", "Flush", "commit transaction")
	}

	s.logger.Debug("relational session flushed", "operations", len(pending))
	return s.notifier.Notify(ctx, store.EntityEvent{Kind: store.StoreFlushed})
}

// Clear discards the staged session work.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	return s.notifier.Notify(ctx, store.EntityEvent{Kind: store.StoreCleared})
}

// GetReference returns a lazy handle carrying only the identity.
func (s *Store) GetReference(_ context.Context, targetType, id string) (any, error) {
	s.mu.Lock()
	et, ok := s.types[targetType]
	accessor := s.accessors[targetType]
	s.mu.Unlock()
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrTypeNotRegistered, targetType),
			"relstore", "GetReference", "type lookup")
	}

	obj := et.New()
	if err := accessor.Set(obj, et.IdentityField, id); err != nil {
		return nil, errors.Wrap(err, "relstore", "GetReference", "set identity")
	}
	if setter, ok := obj.(store.LoadStateSetter); ok {
		setter.SetLoadState(store.Unloaded)
	}
	return obj, nil
}

// Load materializes obj from its stored row, keyed by its identity field.
func (s *Store) Load(ctx context.Context, obj any) error {
	et, accessor, err := s.typeOf(obj, "Load")
	if err != nil {
		return err
	}
	id, err := s.identityOf(obj, et, accessor, "Load")
	if err != nil {
		return err
	}

	var data string
	row := s.db.QueryRowContext(ctx, `SELECT data FROM entities WHERE id = ? AND type = ?`, id, et.Name)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrReferenceNotFound, id),
				"relstore", "Load", "entity lookup")
		}
		return errors.WrapTransient(err, "relstore", "Load", "query entity")
	}

	if err := json.Unmarshal([]byte(data), obj); err != nil {
		return errors.WrapFatal(err, "relstore", "Load", "unmarshal entity")
	}
	if setter, ok := obj.(store.LoadStateSetter); ok {
		setter.SetLoadState(store.Loaded)
	}

	s.mu.Lock()
	s.known[id] = true
	s.mu.Unlock()

	return s.notifier.Notify(ctx, store.EntityEvent{Kind: store.EntityLoaded, Object: obj})
}

// Session implements store.Manager.
func (s *Store) Session() store.Session {
	return s.session
}

func (s *Store) typeOf(obj any, method string) (EntityType, metadata.Accessor, error) {
	name := metadata.TypeNameOf(obj)

	s.mu.Lock()
	et, ok := s.types[name]
	accessor := s.accessors[name]
	s.mu.Unlock()

	if !ok {
		return EntityType{}, nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrTypeNotRegistered, name),
			"relstore", method, "type lookup")
	}
	return et, accessor, nil
}

func (s *Store) identityOf(obj any, et EntityType, accessor metadata.Accessor, method string) (string, error) {
	raw, err := accessor.Get(obj, et.IdentityField)
	if err != nil {
		return "", errors.Wrap(err, "relstore", method, "read identity field")
	}
	id, _ := raw.(string)
	if id == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("entity %s has no identity", et.Name),
			"relstore", method, "identity check")
	}
	return id, nil
}

// uniqueIDOf reads the entity's unique-id, generating and writing one back
// when the field is declared but empty.
func (s *Store) uniqueIDOf(obj any, et EntityType, accessor metadata.Accessor) (string, error) {
	if et.UniqueIDField == "" {
		return uuid.NewString(), nil
	}

	raw, err := accessor.Get(obj, et.UniqueIDField)
	if err != nil {
		return "", errors.Wrap(err, "relstore", "Flush", "read unique id field")
	}
	uid, _ := raw.(string)
	if uid == "" {
		uid = uuid.NewString()
		if err := accessor.Set(obj, et.UniqueIDField, uid); err != nil {
			return "", errors.Wrap(err, "relstore", "Flush", "assign unique id")
		}
	}
	return uid, nil
}

// session implements store.Session over the uid column.
type session struct {
	store *Store
}

// ResolveUniqueID translates a unique-id to the canonical entity id.
func (se *session) ResolveUniqueID(ctx context.Context, uid string) (string, error) {
	var id string
	row := se.store.db.QueryRowContext(ctx, `SELECT id FROM entities WHERE uid = ?`, uid)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", errors.ErrUniqueIDNotFound
		}
		return "", errors.WrapTransient(err, "relstore", "ResolveUniqueID", "query uid")
	}
	return id, nil
}
