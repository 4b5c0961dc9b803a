// Package storage - postgres.go
// PostgreSQL implementations of KV and LedgerRepository.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// InitPostgres opens a PostgreSQL pool and creates the schemas.
func InitPostgres(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			entry_type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			details TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user_id ON ledger(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entry_type ON ledger(entry_type)`,
	}
	for _, query := range schemas {
		if _, err := db.ExecContext(ctx, query); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schemas: %w", err)
		}
	}

	return db, nil
}

// PostgresKV implements KV using PostgreSQL.
type PostgresKV struct {
	db *sql.DB
}

func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{db: db}
}

func (s *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, nil
}

func (s *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// PostgresLedgerRepository implements LedgerRepository using PostgreSQL.
type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// Append inserts a new entry into the immutable ledger.
func (r *PostgresLedgerRepository) Append(ctx context.Context, rec LedgerRecord) error {
	query := `
		INSERT INTO ledger (id, timestamp, entry_type, user_id, amount, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp.UTC(),
		rec.EntryType,
		rec.UserID,
		rec.Amount,
		rec.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) GetByUser(ctx context.Context, userID string) ([]LedgerRecord, error) {
	query := `
		SELECT id, timestamp, entry_type, user_id, amount, details
		FROM ledger
		WHERE user_id = $1
		ORDER BY timestamp ASC
	`
	return r.queryRecords(ctx, query, userID)
}

func (r *PostgresLedgerRepository) GetByType(ctx context.Context, entryType string) ([]LedgerRecord, error) {
	query := `
		SELECT id, timestamp, entry_type, user_id, amount, details
		FROM ledger
		WHERE entry_type = $1
		ORDER BY timestamp ASC
	`
	return r.queryRecords(ctx, query, entryType)
}

// queryRecords is a helper to execute queries and scan results.
func (r *PostgresLedgerRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]LedgerRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var recs []LedgerRecord
	for rows.Next() {
		var rec LedgerRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.EntryType, &rec.UserID, &rec.Amount, &rec.Details); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

var (
	_ KV               = (*PostgresKV)(nil)
	_ LedgerRepository = (*PostgresLedgerRepository)(nil)
)
