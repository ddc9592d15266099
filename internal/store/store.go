// Package store provides storage backends for TerraPipe.
//
// It persists questionnaire session snapshots and legal-assistant transcripts.
// Backends: in-memory, SQLite, PostgreSQL and Redis. Snapshots are written as
// whole JSON documents; a missing record is reported as (nil, nil).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/TerraPipe/internal/models"
)

// Store is the persistence contract shared by every backend.
type Store interface {
	SaveSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]string, error)

	SaveTranscript(ctx context.Context, transcript models.Transcript) error
	GetTranscript(ctx context.Context, id string) (*models.Transcript, error)
	DeleteTranscript(ctx context.Context, id string) error

	Close() error
}

// Driver names returned by DetectDSNType.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN    string
	TTL    time.Duration // Redis only; zero keeps records forever
	Prefix string        // Redis only
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the connection string; the backend is chosen with DetectDSNType.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithTTL sets the expiry of Redis records.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// WithPrefix sets the Redis key prefix.
func WithPrefix(prefix string) Option {
	return func(o *Opts) { o.Prefix = prefix }
}

// DetectDSNType guesses the driver for a connection string.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "redis://"), strings.HasPrefix(lower, "rediss://"):
		return DriverRedis
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres
	case strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") ||
		(strings.Contains(lower, "=") && strings.Contains(lower, " ") && !strings.HasPrefix(lower, "file:")):
		return DriverPostgres
	default:
		return DriverSQLite
	}
}

// New opens the backend matching the configured DSN; an empty DSN yields an in-memory store.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("store.New: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	driver := DetectDSNType(cfg.DSN)
	slog.Debug("store.New: selecting backend", "driver", driver)
	switch driver {
	case DriverRedis:
		return NewRedisStoreFromURL(cfg.DSN, opts...)
	case DriverPostgres:
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}

// InMemoryStore keeps snapshots in process memory. Records are deep-copied on
// the way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]byte
	updated     map[string]time.Time
	transcripts map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[string][]byte),
		updated:     make(map[string]time.Time),
		transcripts: make(map[string][]byte),
	}
}

func (s *InMemoryStore) SaveSession(ctx context.Context, session models.Session) error {
	if session.ID == "" {
		return models.ErrEmptySessionID
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = data
	s.updated[session.ID] = session.UpdatedAt
	return nil
}

func (s *InMemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	data, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &session, nil
}

func (s *InMemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.updated, id)
	return nil
}

// ListSessions returns session IDs, most recently updated first.
func (s *InMemoryStore) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.updated[ids[i]].After(s.updated[ids[j]])
	})
	return ids, nil
}

func (s *InMemoryStore) SaveTranscript(ctx context.Context, transcript models.Transcript) error {
	if transcript.ID == "" {
		return models.ErrEmptySessionID
	}
	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript %s: %w", transcript.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[transcript.ID] = data
	return nil
}

func (s *InMemoryStore) GetTranscript(ctx context.Context, id string) (*models.Transcript, error) {
	s.mu.RLock()
	data, ok := s.transcripts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var transcript models.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript %s: %w", id, err)
	}
	return &transcript, nil
}

func (s *InMemoryStore) DeleteTranscript(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, id)
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
