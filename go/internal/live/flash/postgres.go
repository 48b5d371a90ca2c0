package flash

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sqlc-dev/pqtype"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS flash_messages (
	key        TEXT PRIMARY KEY,
	data       JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	upsertSQL = `INSERT INTO flash_messages (key, data) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, created_at = now()`
	popSQL = `DELETE FROM flash_messages WHERE key = $1 RETURNING data`
)

// PostgresStore keeps flash messages in Postgres so they survive a client
// restart. The caller registers the driver (lib/pq) and owns the *sql.DB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the table if needed
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create flash_messages table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal flash message: %w", err)
	}
	raw := pqtype.NullRawMessage{RawMessage: data, Valid: len(data) > 0}
	if _, err := s.db.ExecContext(ctx, upsertSQL, key, raw); err != nil {
		return fmt.Errorf("failed to store flash message: %w", err)
	}
	return nil
}

func (s *PostgresStore) Pop(ctx context.Context, key string) (*Message, error) {
	var raw pqtype.NullRawMessage
	err := s.db.QueryRowContext(ctx, popSQL, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop flash message: %w", err)
	}
	if !raw.Valid {
		return nil, nil
	}

	var msg Message
	if err := json.Unmarshal(raw.RawMessage, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flash message: %w", err)
	}
	return &msg, nil
}
