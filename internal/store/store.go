// Package store provides session persistence backends for TransportMedAgent.
//
// Sessions are stored as single JSON documents keyed by session id, with a
// TTL so abandoned calls expire on their own. Backends: in-memory (tests and
// development), Redis, SQLite and PostgreSQL.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// DefaultSessionTTL is how long an idle session survives before expiring.
const DefaultSessionTTL = time.Hour

// Store is the session persistence contract. GetSession returns (nil, nil)
// when no live session exists for the id; callers decide whether a miss
// means "create one" (inbound) or "hard error" (outbound).
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error)
	SaveSession(ctx context.Context, session *models.ConversationSession) error
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}

// TurnLocker is implemented by backends that can serialize turn execution
// for a session across processes. AcquireTurnLock returns false when another
// turn already holds the lock; the lock expires on its own so a crashed
// worker cannot wedge a session.
type TurnLocker interface {
	AcquireTurnLock(ctx context.Context, sessionID string) (bool, error)
	ReleaseTurnLock(ctx context.Context, sessionID string) error
}

// Opts holds configuration for store backends.
type Opts struct {
	DSN string
	TTL time.Duration
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the backend connection string or file path.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisDSN sets a Redis URL (redis://host:port/db).
func WithRedisDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithTTL overrides the default session TTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// applyOptions resolves options onto defaults.
func applyOptions(opts []Option) Opts {
	cfg := Opts{TTL: DefaultSessionTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// DetectDSNType classifies a DSN string as "redis", "postgres" or "sqlite".
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "redis"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres"
	default:
		return "sqlite"
	}
}
