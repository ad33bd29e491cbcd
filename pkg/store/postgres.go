// Postgres-backed Store, for deployments where cached records must be shared with (or survive) the device that
// produced them. One table, key text primary key, value bytea; Set is an upsert.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const defaultRecordsTable = "sync_records"

var _ Store = (*Postgres)(nil)

// Postgres persists key-value pairs in a single records table.
type Postgres struct {
	db    *sql.DB
	table string // Already quoted; safe to splice into queries.
}

// OpenPostgres connects to the given DSN and ensures the records table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("expected a non-empty postgres DSN")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	pgStore := NewPostgres(db)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return pgStore, nil
}

// NewPostgres wraps an existing *sql.DB connection.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, table: pq.QuoteIdentifier(defaultRecordsTable)}
}

// EnsureSchema creates the records table if it doesn't exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value BYTEA NOT NULL)`, p.table)
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure records table: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, p.table)
	var value []byte
	err := p.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, p.table)
	if _, err := p.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, p.table)
	if _, err := p.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (p *Postgres) Keys(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT key FROM %s`, p.table)
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list record keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan record key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record keys: %w", err)
	}
	return keys, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
