// Package store provides session persistence backends for TransportMedAgent.
//
// This file implements the Redis-backed session store, the production
// backend: sessions are JSON documents under a key prefix with a rolling TTL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// sessionKeyPrefix namespaces session keys in Redis.
const sessionKeyPrefix = "transport:session:"

// turnLockKeyPrefix namespaces per-session turn locks.
const turnLockKeyPrefix = "transport:turnlock:"

// turnLockTTL bounds how long a crashed worker can hold a turn lock.
const turnLockTTL = 30 * time.Second

// RedisStore persists sessions in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis store from a redis:// DSN and pings the
// server to fail fast on bad configuration.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	cfg := applyOptions(opts)
	if cfg.DSN == "" {
		slog.Error("RedisStore DSN not set")
		return nil, fmt.Errorf("redis DSN not set")
	}

	redisOpts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		slog.Error("Failed to parse Redis DSN", "error", err)
		return nil, fmt.Errorf("failed to parse redis DSN: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	slog.Debug("RedisStore connected", "addr", redisOpts.Addr, "db", redisOpts.DB, "ttl", cfg.TTL)

	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// GetSession loads and decodes a session, or (nil, nil) when the key is
// missing or expired.
func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		slog.Debug("RedisStore.GetSession: miss", "session_id", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore.GetSession failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	var session models.ConversationSession
	if err := json.Unmarshal(data, &session); err != nil {
		slog.Error("RedisStore.GetSession: corrupt session document", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	slog.Debug("RedisStore.GetSession: hit", "session_id", sessionID, "phase", session.Phase)
	return &session, nil
}

// SaveSession encodes the session and writes it with a refreshed TTL.
func (s *RedisStore) SaveSession(ctx context.Context, session *models.ConversationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		slog.Error("RedisStore.SaveSession: marshal failed", "error", err, "session_id", session.SessionID)
		return fmt.Errorf("failed to encode session %s: %w", session.SessionID, err)
	}
	if err := s.client.Set(ctx, sessionKey(session.SessionID), data, s.ttl).Err(); err != nil {
		slog.Error("RedisStore.SaveSession failed", "error", err, "session_id", session.SessionID)
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	slog.Debug("RedisStore.SaveSession: saved", "session_id", session.SessionID, "phase", session.Phase, "bytes", len(data))
	return nil
}

// DeleteSession removes a session key.
func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		slog.Error("RedisStore.DeleteSession failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	slog.Debug("RedisStore.DeleteSession: deleted", "session_id", sessionID)
	return nil
}

// AcquireTurnLock takes the per-session turn lock with SETNX. Returns false
// when another turn is already in flight for the session.
func (s *RedisStore) AcquireTurnLock(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, turnLockKeyPrefix+sessionID, 1, turnLockTTL).Result()
	if err != nil {
		slog.Error("RedisStore.AcquireTurnLock failed", "error", err, "session_id", sessionID)
		return false, fmt.Errorf("failed to lock session %s: %w", sessionID, err)
	}
	slog.Debug("RedisStore.AcquireTurnLock", "session_id", sessionID, "acquired", ok)
	return ok, nil
}

// ReleaseTurnLock drops the per-session turn lock.
func (s *RedisStore) ReleaseTurnLock(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, turnLockKeyPrefix+sessionID).Err(); err != nil {
		slog.Error("RedisStore.ReleaseTurnLock failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to unlock session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	slog.Debug("Closing Redis connection")
	return s.client.Close()
}
