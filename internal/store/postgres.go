// Package store provides session persistence backends for TransportMedAgent.
//
// This file implements the PostgreSQL-backed session store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
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

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	cfg := applyOptions(opts)
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db, ttl: cfg.TTL}, nil
}

// GetSession loads a live session document, or (nil, nil) on miss or expiry.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	var document []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM sessions WHERE session_id = $1 AND expires_at > NOW()`,
		sessionID).Scan(&document)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetSession: miss", "session_id", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetSession failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}

	var session models.ConversationSession
	if err := json.Unmarshal(document, &session); err != nil {
		slog.Error("PostgresStore.GetSession: corrupt session document", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore.GetSession: hit", "session_id", sessionID, "phase", session.Phase)
	return &session, nil
}

// SaveSession upserts the session document and refreshes its expiry.
func (s *PostgresStore) SaveSession(ctx context.Context, session *models.ConversationSession) error {
	document, err := json.Marshal(session)
	if err != nil {
		slog.Error("PostgresStore.SaveSession: marshal failed", "error", err, "session_id", session.SessionID)
		return fmt.Errorf("failed to encode session %s: %w", session.SessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, direction, phase, document, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at`,
		session.SessionID, string(session.Direction), string(session.Phase), document,
		session.CreatedAt, session.UpdatedAt, time.Now().UTC().Add(s.ttl))
	if err != nil {
		slog.Error("PostgresStore.SaveSession failed", "error", err, "session_id", session.SessionID)
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	slog.Debug("PostgresStore.SaveSession succeeded", "session_id", session.SessionID, "phase", session.Phase)
	return nil
}

// DeleteSession removes a session row.
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore.DeleteSession failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore.DeleteSession succeeded", "session_id", sessionID)
	return nil
}

// PurgeExpired deletes expired session rows (maintenance).
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		slog.Error("PostgresStore.PurgeExpired failed", "error", err)
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.Debug("PostgresStore.PurgeExpired succeeded", "purged", n)
	return n, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
