// Package store provides storage backends for TerraPipe.
//
// This file implements a PostgreSQL-backed store for session snapshots and transcripts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/TerraPipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// SaveSession stores or updates a session snapshot.
func (s *PostgresStore) SaveSession(ctx context.Context, session models.Session) error {
	if session.ID == "" {
		return models.ErrEmptySessionID
	}
	data, err := json.Marshal(session)
	if err != nil {
		slog.Error("PostgresStore SaveSession JSON marshal failed", "error", err, "sessionID", session.ID)
		return err
	}
	query := `
		INSERT INTO sessions (id, current_step, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			current_step = EXCLUDED.current_step,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, query, session.ID, string(session.CurrentStep), data, session.CreatedAt, session.UpdatedAt); err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", session.ID, "step", session.CurrentStep)
	return nil
}

// GetSession retrieves a session snapshot.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = $1`, id).Scan(&data)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "sessionID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &session, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sessionID", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// SaveTranscript stores or updates a legal-assistant transcript.
func (s *PostgresStore) SaveTranscript(ctx context.Context, transcript models.Transcript) error {
	if transcript.ID == "" {
		return models.ErrEmptySessionID
	}
	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript %s: %w", transcript.ID, err)
	}
	query := `
		INSERT INTO transcripts (id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, query, transcript.ID, data, transcript.CreatedAt, transcript.UpdatedAt); err != nil {
		slog.Error("PostgresStore SaveTranscript failed", "error", err, "transcriptID", transcript.ID)
		return fmt.Errorf("failed to save transcript %s: %w", transcript.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetTranscript(ctx context.Context, id string) (*models.Transcript, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM transcripts WHERE id = $1`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetTranscript failed", "error", err, "transcriptID", id)
		return nil, fmt.Errorf("failed to get transcript %s: %w", id, err)
	}
	var transcript models.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript %s: %w", id, err)
	}
	return &transcript, nil
}

func (s *PostgresStore) DeleteTranscript(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteTranscript failed", "error", err, "transcriptID", id)
		return fmt.Errorf("failed to delete transcript %s: %w", id, err)
	}
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
