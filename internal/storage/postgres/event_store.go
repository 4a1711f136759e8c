// Package postgres provides the Postgres-backed event store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// EventStoreConfig controls the Postgres connection pool and table names.
type EventStoreConfig struct {
	DSN             string
	EventsTable     string
	SessionsTable   string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Ping(context.Context) error
	Close()
}

// EventStore writes events and sessions into Postgres.
type EventStore struct {
	pool     execCloser
	events   string
	sessions string
}

// NewEventStore creates a Postgres-backed EventStore using the provided config.
func NewEventStore(ctx context.Context, cfg EventStoreConfig) (*EventStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewEventStoreWithPool(pool, cfg.EventsTable, cfg.SessionsTable)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewEventStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewEventStoreWithPool(pool execCloser, eventsTable, sessionsTable string) (*EventStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if eventsTable == "" {
		eventsTable = "events"
	}
	if sessionsTable == "" {
		sessionsTable = "sessions"
	}
	for _, table := range []string{eventsTable, sessionsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &EventStore{pool: pool, events: eventsTable, sessions: sessionsTable}, nil
}

// Close releases the underlying pool resources.
func (s *EventStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity for readiness probes.
func (s *EventStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Migrate creates the events and sessions tables when they are missing.
func (s *EventStore) Migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'web',
	path TEXT,
	referrer TEXT,
	utm_source TEXT,
	utm_medium TEXT,
	utm_campaign TEXT,
	utm_content TEXT,
	utm_term TEXT,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	occurred_at TIMESTAMPTZ NOT NULL
)`, s.events),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_session_idx ON %s (session_id, occurred_at)`, s.events, s.events),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	session_id TEXT PRIMARY KEY,
	last_seen TIMESTAMPTZ NOT NULL,
	landing_path TEXT,
	utm_source TEXT,
	utm_medium TEXT,
	utm_campaign TEXT,
	utm_content TEXT,
	utm_term TEXT
)`, s.sessions),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// InsertEvent appends one event row.
func (s *EventStore) InsertEvent(ctx context.Context, ev analytics.Event) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("event store is not configured")
	}
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}
	metadata := ev.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	session_id,
	event_type,
	source,
	path,
	referrer,
	utm_source,
	utm_medium,
	utm_campaign,
	utm_content,
	utm_term,
	metadata,
	occurred_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, s.events)

	args := []any{
		ev.ID,
		ev.SessionID,
		ev.EventType,
		ev.Source,
		ev.Path,
		ev.Referrer,
		ev.UTM.Source,
		ev.UTM.Medium,
		ev.UTM.Campaign,
		ev.UTM.Content,
		ev.UTM.Term,
		metadataJSON,
		ev.OccurredAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// UpsertSession writes the session row, replacing every column on conflict.
func (s *EventStore) UpsertSession(ctx context.Context, sess analytics.Session) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("event store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	session_id,
	last_seen,
	landing_path,
	utm_source,
	utm_medium,
	utm_campaign,
	utm_content,
	utm_term
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (session_id) DO UPDATE SET
	last_seen = EXCLUDED.last_seen,
	landing_path = EXCLUDED.landing_path,
	utm_source = EXCLUDED.utm_source,
	utm_medium = EXCLUDED.utm_medium,
	utm_campaign = EXCLUDED.utm_campaign,
	utm_content = EXCLUDED.utm_content,
	utm_term = EXCLUDED.utm_term`, s.sessions)

	args := []any{
		sess.SessionID,
		sess.LastSeen,
		sess.LandingPath,
		sess.UTM.Source,
		sess.UTM.Medium,
		sess.UTM.Campaign,
		sess.UTM.Content,
		sess.UTM.Term,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}
