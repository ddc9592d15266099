package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/TerraPipe/internal/models"
	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "terrapipe:"

// farFuture is the index score of records without expiry (2100-01-01).
const farFuture = 4102444800

// RedisStore keeps snapshots as JSON strings with an optional TTL and tracks
// live sessions in a sorted set scored by expiry time.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to a Redis server.
func NewRedisStore(address, password string, db int, opts ...Option) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromURL connects using a redis:// URL.
func NewRedisStoreFromURL(rawURL string, opts ...Option) (*RedisStore, error) {
	parsed, err := backend.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedisStoreFromClient(backend.NewClient(parsed), opts...), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...Option) *RedisStore {
	cfg := Opts{Prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	slog.Debug("NewRedisStoreFromClient: configured", "prefix", cfg.Prefix, "ttl", cfg.TTL)
	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) sessionKey(id string) string    { return s.prefix + "session:" + id }
func (s *RedisStore) transcriptKey(id string) string { return s.prefix + "transcript:" + id }
func (s *RedisStore) indexKey() string               { return s.prefix + "sessions" }

func (s *RedisStore) expiryScore() float64 {
	if s.ttl == 0 {
		return farFuture
	}
	return float64(time.Now().Add(s.ttl).Unix())
}

func (s *RedisStore) SaveSession(ctx context.Context, session models.Session) error {
	if session.ID == "" {
		return models.ErrEmptySessionID
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.sessionKey(session.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.expiryScore(), Member: session.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("RedisStore SaveSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	val, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err == backend.Nil {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(val, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.sessionKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// ListSessions prunes expired index entries and returns the remaining IDs.
func (s *RedisStore) ListSessions(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) SaveTranscript(ctx context.Context, transcript models.Transcript) error {
	if transcript.ID == "" {
		return models.ErrEmptySessionID
	}
	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := s.client.Set(ctx, s.transcriptKey(transcript.ID), data, s.ttl).Err(); err != nil {
		slog.Error("RedisStore SaveTranscript failed", "error", err, "transcriptID", transcript.ID)
		return fmt.Errorf("failed to save transcript to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) GetTranscript(ctx context.Context, id string) (*models.Transcript, error) {
	val, err := s.client.Get(ctx, s.transcriptKey(id)).Bytes()
	if err == backend.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript from redis: %w", err)
	}
	var transcript models.Transcript
	if err := json.Unmarshal(val, &transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return &transcript, nil
}

func (s *RedisStore) DeleteTranscript(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.transcriptKey(id)).Err()
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
