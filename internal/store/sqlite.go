// Package store provides session persistence backends for TransportMedAgent.
//
// This file implements the SQLite-backed session store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions in a local SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	cfg := applyOptions(opts)
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db, ttl: cfg.TTL}, nil
}

// GetSession loads a live session document, or (nil, nil) on miss or expiry.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	var document string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM sessions WHERE session_id = ? AND expires_at > ?`,
		sessionID, time.Now().UTC()).Scan(&document)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetSession: miss", "session_id", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetSession failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}

	var session models.ConversationSession
	if err := json.Unmarshal([]byte(document), &session); err != nil {
		slog.Error("SQLiteStore.GetSession: corrupt session document", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore.GetSession: hit", "session_id", sessionID, "phase", session.Phase)
	return &session, nil
}

// SaveSession upserts the session document and refreshes its expiry.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *models.ConversationSession) error {
	document, err := json.Marshal(session)
	if err != nil {
		slog.Error("SQLiteStore.SaveSession: marshal failed", "error", err, "session_id", session.SessionID)
		return fmt.Errorf("failed to encode session %s: %w", session.SessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (session_id, direction, phase, document, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, string(session.Direction), string(session.Phase), string(document),
		session.CreatedAt, session.UpdatedAt, time.Now().UTC().Add(s.ttl))
	if err != nil {
		slog.Error("SQLiteStore.SaveSession failed", "error", err, "session_id", session.SessionID)
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	slog.Debug("SQLiteStore.SaveSession succeeded", "session_id", session.SessionID, "phase", session.Phase)
	return nil
}

// DeleteSession removes a session row.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore.DeleteSession failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore.DeleteSession succeeded", "session_id", sessionID)
	return nil
}

// PurgeExpired deletes expired session rows (maintenance).
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		slog.Error("SQLiteStore.PurgeExpired failed", "error", err)
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.Debug("SQLiteStore.PurgeExpired succeeded", "purged", n)
	return n, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
