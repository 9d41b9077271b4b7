// Package postgres provides a PostgreSQL-backed implementation of the
// [memstore.Store] interface.
//
// It is the self-hosted alternative to the HTTP memory service: completed
// turns are written to a conversation_turns table keyed by user, and Flush is
// a no-op acknowledgement because inserts are durable immediately. Memory
// extraction over the stored turns is left to downstream jobs.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxtale/voxtale/pkg/memstore"
)

const ddlConversationTurns = `
CREATE TABLE IF NOT EXISTS memstore_users (
    id         TEXT        PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversation_turns (
    id         BIGSERIAL   PRIMARY KEY,
    user_id    TEXT        NOT NULL REFERENCES memstore_users (id),
    messages   JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_user
    ON conversation_turns (user_id, created_at);
`

// Store is a PostgreSQL [memstore.Store]. All operations are safe for
// concurrent use; the pgx pool handles connection management.
type Store struct {
	pool *pgxpool.Pool
}

var _ memstore.Store = (*Store)(nil)

// NewStore connects to the database at dsn, verifies the connection, and
// ensures the required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("memstore postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memstore postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlConversationTurns); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memstore postgres: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping implements [memstore.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("memstore postgres: ping: %w", err)
	}
	return nil
}

// GetOrCreateUser implements [memstore.Store].
func (s *Store) GetOrCreateUser(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memstore_users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("memstore postgres: ensure user %s: %w", id, err)
	}
	return nil
}

// Insert implements [memstore.Store].
func (s *Store) Insert(ctx context.Context, userID string, messages []memstore.Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("memstore postgres: insert with no messages")
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("memstore postgres: marshal messages: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (user_id, messages) VALUES ($1, $2)`,
		userID, payload)
	if err != nil {
		return fmt.Errorf("memstore postgres: insert turn: %w", err)
	}
	return nil
}

// Flush implements [memstore.Store]. Inserts are durable at commit time, so
// there is no buffer to process.
func (s *Store) Flush(ctx context.Context, userID string, blocking bool) error {
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
