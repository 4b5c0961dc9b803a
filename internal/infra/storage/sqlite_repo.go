package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteKV implements KV over the kv_store table.
type SQLiteKV struct {
	db *sql.DB
}

func NewSQLiteKV(db *sql.DB) *SQLiteKV {
	return &SQLiteKV{db: db}
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// ---------------------------------------------------------
// SQLiteLedgerRepository
// ---------------------------------------------------------

type SQLiteLedgerRepository struct {
	db *sql.DB
}

func NewSQLiteLedgerRepository(db *sql.DB) *SQLiteLedgerRepository {
	return &SQLiteLedgerRepository{db: db}
}

func (r *SQLiteLedgerRepository) Append(ctx context.Context, rec LedgerRecord) error {
	query := `
		INSERT INTO ledger (id, timestamp, entry_type, user_id, amount, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Timestamp.UTC(), rec.EntryType, rec.UserID, rec.Amount, rec.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (r *SQLiteLedgerRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]LedgerRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []LedgerRecord
	for rows.Next() {
		var rec LedgerRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.EntryType, &rec.UserID, &rec.Amount, &rec.Details); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *SQLiteLedgerRepository) GetByUser(ctx context.Context, userID string) ([]LedgerRecord, error) {
	query := `SELECT id, timestamp, entry_type, user_id, amount, details FROM ledger WHERE user_id = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, userID)
}

func (r *SQLiteLedgerRepository) GetByType(ctx context.Context, entryType string) ([]LedgerRecord, error) {
	query := `SELECT id, timestamp, entry_type, user_id, amount, details FROM ledger WHERE entry_type = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, entryType)
}

var (
	_ KV               = (*SQLiteKV)(nil)
	_ LedgerRepository = (*SQLiteLedgerRepository)(nil)
)
