package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryType defines the category of a ledger entry.
type EntryType string

const (
	EntryPurchase          EntryType = "PURCHASE"
	EntryPrestige          EntryType = "PRESTIGE"
	EntryQuestReward       EntryType = "QUEST_REWARD"
	EntryOfflineGrant      EntryType = "OFFLINE_GRANT"
	EntryDailyReward       EntryType = "DAILY_REWARD"
	EntryConsistencyRepair EntryType = "CONSISTENCY_REPAIR"
)

// Entry is an immutable record of an economy-changing action.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EntryType `json:"type"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Details   string    `json:"details"`
}

// Persister defines how an entry is durably stored.
type Persister interface {
	Append(entry Entry) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(entry Entry) error

func (f PersisterFunc) Append(entry Entry) error { return f(entry) }

var (
	ErrLedgerBacklog = errors.New("ledger persist queue full")
	ErrLedgerClosed  = errors.New("ledger closed")
)

// Ledger is the in-memory append-only audit of the economy, bounded to the
// most recent entries. Durable history lives behind the persister, which a
// single worker feeds in append order.
type Ledger struct {
	mu        sync.RWMutex
	entries   []Entry
	limit     int
	persister Persister
	onError   func(Entry, error)

	qmu     sync.RWMutex
	queue   chan Entry
	closed  bool
	drained chan struct{}
}

const (
	// DefaultLedgerLimit bounds the in-memory tail.
	DefaultLedgerLimit = 10_000

	persistQueueSize = 1024
)

// NewLedger creates a ledger with an optional persister. onError, when set,
// receives persister failures.
func NewLedger(persister Persister, limit int, onError func(Entry, error)) *Ledger {
	if limit <= 0 {
		limit = DefaultLedgerLimit
	}
	l := &Ledger{
		entries:   make([]Entry, 0, 64),
		limit:     limit,
		persister: persister,
		onError:   onError,
		drained:   make(chan struct{}),
	}
	if persister == nil {
		close(l.drained)
		return l
	}
	l.queue = make(chan Entry, persistQueueSize)
	go l.persist()
	return l
}

func (l *Ledger) persist() {
	defer close(l.drained)
	for e := range l.queue {
		if err := l.persister.Append(e); err != nil {
			l.fail(e, err)
		}
	}
}

func (l *Ledger) fail(e Entry, err error) {
	if l.onError != nil {
		l.onError(e, err)
	}
}

// Record stamps and appends an entry. Entries are immutable once appended.
func (l *Ledger) Record(at time.Time, typ EntryType, userID string, amount float64, details string) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Timestamp: at,
		Type:      typ,
		UserID:    userID,
		Amount:    amount,
		Details:   details,
	}
	l.Append(e)
	return e
}

// Append adds an entry, dropping the oldest past the limit.
func (l *Ledger) Append(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	if over := len(l.entries) - l.limit; over > 0 {
		l.entries = append(l.entries[:0], l.entries[over:]...)
	}
	l.mu.Unlock()

	if l.persister == nil {
		return
	}
	// Callers hold session locks, so a full queue drops rather than blocks.
	l.qmu.RLock()
	defer l.qmu.RUnlock()
	if l.closed {
		l.fail(e, ErrLedgerClosed)
		return
	}
	select {
	case l.queue <- e:
	default:
		l.fail(e, ErrLedgerBacklog)
	}
}

// Close stops accepting entries for the persister and waits until every
// queued entry has been written or ctx ends.
func (l *Ledger) Close(ctx context.Context) error {
	l.qmu.Lock()
	if !l.closed && l.queue != nil {
		close(l.queue)
	}
	l.closed = true
	l.qmu.Unlock()

	select {
	case <-l.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetByUser returns the retained entries of one user.
func (l *Ledger) GetByUser(userID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Entry
	for _, e := range l.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns the retained entries of one type.
func (l *Ledger) GetByType(typ EntryType) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Entry
	for _, e := range l.entries {
		if e.Type == typ {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the retained history.
func (l *Ledger) Replay() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}
