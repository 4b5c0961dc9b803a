package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
)

type nopSaver struct{}

func (nopSaver) Enqueue(player.State)                      {}
func (nopSaver) Flush(context.Context, player.State) error { return nil }
func (nopSaver) Close()                                    {}

func newNop(context.Context) Saver { return nopSaver{} }

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestOpenRejectsDuplicateIdentity(t *testing.T) {
	s := NewStore()
	first, err := s.Open(context.Background(), &player.State{UserID: "alice"}, newNop, now)
	require.NoError(t, err)
	assert.Equal(t, Active, first.Phase())

	_, err = s.Open(context.Background(), &player.State{UserID: "alice", Balance: 999}, newNop, now)
	assert.ErrorIs(t, err, ErrSessionExists)

	got, ok := s.Get("alice")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Zero(t, got.Snapshot().Balance, "the live state was not overwritten")
}

func TestDrainingSessionStillBlocksJoin(t *testing.T) {
	s := NewStore()
	sess, err := s.Open(context.Background(), &player.State{UserID: "bob"}, newNop, now)
	require.NoError(t, err)

	drained, ok := s.BeginDrain("bob")
	require.True(t, ok)
	assert.Same(t, sess, drained)
	assert.Equal(t, Draining, sess.Phase())
	assert.ErrorIs(t, sess.Context().Err(), context.Canceled)

	_, ok = s.BeginDrain("bob")
	assert.False(t, ok, "already draining")

	_, err = s.Open(context.Background(), &player.State{UserID: "bob"}, newNop, now)
	assert.ErrorIs(t, err, ErrSessionExists)

	assert.True(t, s.Evict(sess))
	assert.False(t, s.Evict(sess))
	assert.Zero(t, s.Len())

	_, err = s.Open(context.Background(), &player.State{UserID: "bob"}, newNop, now)
	assert.NoError(t, err)
}

func TestEvictIgnoresStaleSessionPointer(t *testing.T) {
	s := NewStore()
	old, err := s.Open(context.Background(), &player.State{UserID: "carol"}, newNop, now)
	require.NoError(t, err)
	require.True(t, s.Evict(old))

	fresh, err := s.Open(context.Background(), &player.State{UserID: "carol"}, newNop, now)
	require.NoError(t, err)

	assert.False(t, s.Evict(old))
	got, ok := s.Get("carol")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestDoneClosesOnEvictOnly(t *testing.T) {
	s := NewStore()
	sess, err := s.Open(context.Background(), &player.State{UserID: "dave"}, newNop, now)
	require.NoError(t, err)

	_, ok := s.BeginDrain("dave")
	require.True(t, ok)
	select {
	case <-sess.Done():
		t.Fatal("done before eviction")
	default:
	}

	require.True(t, s.Evict(sess))
	select {
	case <-sess.Done():
	default:
		t.Fatal("done still open after eviction")
	}
	assert.False(t, s.Evict(sess), "a second evict must not close done again")
}

func TestActiveIsSortedAndSkipsDraining(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Active())

	for _, id := range []string{"zed", "amy", "kim"} {
		_, err := s.Open(context.Background(), &player.State{UserID: id}, newNop, now)
		require.NoError(t, err)
	}
	s.BeginDrain("kim")

	var ids []string
	for _, sess := range s.Active() {
		ids = append(ids, sess.UserID())
	}
	assert.Equal(t, []string{"amy", "zed"}, ids)
	assert.Len(t, s.All(), 3)
}

func TestDoSerializesMutation(t *testing.T) {
	s := NewStore()
	sess, err := s.Open(context.Background(), &player.State{UserID: "dan"}, newNop, now)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sess.Do(func(st *player.State) {
					st.Balance++
					st.TotalManualActions++
				})
			}
		}()
	}
	wg.Wait()

	snap := sess.Snapshot()
	assert.Equal(t, 5000.0, snap.Balance)
	assert.Equal(t, int64(5000), snap.TotalManualActions)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "ACTIVE", Active.String())
	assert.Equal(t, "DRAINING", Draining.String())
}
