// Package storage provides the persistence layer for the economy server.
// Saves are opaque values addressed by string keys; the engine never sees SQL.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by KV.Get for a key that was never written.
var ErrNotFound = errors.New("storage: key not found")

// KV is the durable key-value store saves live in.
// Implementations must be safe for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// LedgerRecord mirrors the economy ledger entry for persistence.
// The events package should NOT import this; main adapts between them.
type LedgerRecord struct {
	ID        string    `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	EntryType string    `json:"entry_type" db:"entry_type"`
	UserID    string    `json:"user_id" db:"user_id"`
	Amount    float64   `json:"amount" db:"amount"`
	Details   string    `json:"details" db:"details"`
}

// LedgerRepository persists the append-only economy ledger.
type LedgerRepository interface {
	// Append adds a new entry to the immutable ledger.
	Append(ctx context.Context, rec LedgerRecord) error

	// GetByUser retrieves a user's entries, oldest first.
	GetByUser(ctx context.Context, userID string) ([]LedgerRecord, error)

	// GetByType retrieves entries of one type, oldest first.
	GetByType(ctx context.Context, entryType string) ([]LedgerRecord, error)
}
