package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationJSONShape(t *testing.T) {
	raw, err := json.Marshal(Quest(QuestCompleted{QuestID: 3, Reward: 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"QUEST_COMPLETED","payload":{"questId":3,"reward":1}}`, string(raw))

	raw, err = json.Marshal(Offline(OfflineEarnings{Amount: 72000, ElapsedSeconds: 7200}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"OFFLINE_EARNINGS","payload":{"amount":72000,"elapsedSeconds":7200}}`, string(raw))
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Notify("a", Balance(BalanceUpdate{Balance: 1}))
	r.Notify("a", Quest(QuestCompleted{QuestID: 1}))
	r.Notify("a", Balance(BalanceUpdate{Balance: 2}))
	r.Notify("b", Balance(BalanceUpdate{Balance: 9}))

	assert.Len(t, r.For("a"), 3)
	assert.Len(t, r.OfKind("a", KindBalanceUpdate), 2)

	last, ok := r.Last("a", KindBalanceUpdate)
	require.True(t, ok)
	assert.Equal(t, BalanceUpdate{Balance: 2}, last.Payload)

	_, ok = r.Last("a", KindPrestigeCompleted)
	assert.False(t, ok)

	r.Reset()
	assert.Empty(t, r.For("a"))
}

func TestLedgerRecordAndQueries(t *testing.T) {
	l := NewLedger(nil, 0, nil)
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	e := l.Record(at, EntryPurchase, "alice", 15, "1x Simple Miner")
	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
	l.Record(at, EntryQuestReward, "alice", 1, "quest 1")
	l.Record(at, EntryPurchase, "bob", 100, "1x Advanced Drill")

	assert.Len(t, l.GetByUser("alice"), 2)
	assert.Len(t, l.GetByType(EntryPurchase), 2)
	assert.Len(t, l.Replay(), 3)
}

func TestLedgerIsBounded(t *testing.T) {
	l := NewLedger(nil, 3, nil)
	for i := 0; i < 5; i++ {
		l.Record(time.Now(), EntryPurchase, "u", float64(i), "")
	}
	all := l.Replay()
	require.Len(t, all, 3)
	assert.Equal(t, 2.0, all[0].Amount)
	assert.Equal(t, 4.0, all[2].Amount)
}

func TestLedgerPersistsAsynchronously(t *testing.T) {
	var mu sync.Mutex
	var stored []Entry
	var failed []error
	boom := errors.New("db gone")

	persister := PersisterFunc(func(e Entry) error {
		if e.Type == EntryPrestige {
			return boom
		}
		mu.Lock()
		defer mu.Unlock()
		stored = append(stored, e)
		return nil
	})
	l := NewLedger(persister, 10, func(_ Entry, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, err)
	})

	l.Record(time.Now(), EntryDailyReward, "u", 1000, "day 1")
	l.Record(time.Now(), EntryPrestige, "u", 30, "#1")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(stored) == 1 && len(failed) == 1
	}, time.Second, time.Millisecond)
}

func TestLedgerCloseDrainsInOrder(t *testing.T) {
	var mu sync.Mutex
	var stored []string
	var failed []error

	persister := PersisterFunc(func(e Entry) error {
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		stored = append(stored, e.Details)
		return nil
	})
	l := NewLedger(persister, 0, func(_ Entry, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, err)
	})

	var want []string
	for i := 0; i < 20; i++ {
		e := l.Record(time.Now(), EntryPurchase, "u", float64(i), uuid.NewString())
		want = append(want, e.Details)
	}
	require.NoError(t, l.Close(context.Background()))

	mu.Lock()
	assert.Equal(t, want, stored, "every queued entry is written, in append order")
	mu.Unlock()

	l.Record(time.Now(), EntryPurchase, "u", 1, "late")
	require.NoError(t, l.Close(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, stored, 20)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0], ErrLedgerClosed)
	assert.Len(t, l.GetByUser("u"), 21, "the in-memory tail still records late entries")
}

func TestLedgerCloseHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	l := NewLedger(PersisterFunc(func(Entry) error {
		<-release
		return nil
	}), 0, nil)
	defer close(release)

	l.Record(time.Now(), EntryPurchase, "u", 1, "stuck")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Close(ctx), context.DeadlineExceeded)
}

func TestLedgerWithoutPersisterClosesImmediately(t *testing.T) {
	l := NewLedger(nil, 0, nil)
	l.Record(time.Now(), EntryPurchase, "u", 1, "")
	assert.NoError(t, l.Close(context.Background()))
	l.Record(time.Now(), EntryPurchase, "u", 2, "")
	assert.Len(t, l.Replay(), 2)
}
