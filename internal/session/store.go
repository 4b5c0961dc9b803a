// Package session owns the live state of every connected user.
//
// Each Session serializes all mutation of its State behind its own mutex, so
// different users never contend with each other; the Store lock only guards
// the membership map.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
)

var (
	// ErrSessionExists is returned when a user joins while a previous
	// session of the same identity is still live or draining.
	ErrSessionExists = errors.New("session: live session already exists for user")
	// ErrNoSession is returned for operations on users that are not connected.
	ErrNoSession = errors.New("session: no live session for user")
)

// Phase is the lifecycle position of a session.
type Phase int32

const (
	Active Phase = iota
	Draining
)

func (p Phase) String() string {
	switch p {
	case Active:
		return "ACTIVE"
	case Draining:
		return "DRAINING"
	default:
		return "UNKNOWN"
	}
}

// Saver is the per-session save sequencer.
type Saver interface {
	Enqueue(st player.State)
	Flush(ctx context.Context, final player.State) error
	Close()
}

// Session is the live simulation of one user.
type Session struct {
	userID   string
	joinedAt time.Time

	mu    sync.Mutex
	state *player.State

	phase  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	saver  Saver
	done   chan struct{}
}

func (s *Session) UserID() string      { return s.userID }
func (s *Session) JoinedAt() time.Time { return s.joinedAt }
func (s *Session) Phase() Phase        { return Phase(s.phase.Load()) }
func (s *Session) Saver() Saver        { return s.saver }

// Context is cancelled when the session starts draining. Use it for
// non-critical work tied to the session.
func (s *Session) Context() context.Context { return s.ctx }

// Done is closed once the session has been evicted from its store.
func (s *Session) Done() <-chan struct{} { return s.done }

// Do runs fn with exclusive access to the state. fn must not retain st.
func (s *Session) Do(fn func(st *player.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() player.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Store holds exactly one Session per connected user.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Open registers a new Active session. newSaver receives the session
// context so background saves stop once the session drains. A session that
// still exists for the same user, in any phase, is never replaced.
func (s *Store) Open(parent context.Context, st *player.State, newSaver func(ctx context.Context) Saver, now time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[st.UserID]; exists {
		return nil, ErrSessionExists
	}
	ctx, cancel := context.WithCancel(parent)
	sess := &Session{
		userID:   st.UserID,
		joinedAt: now,
		state:    st,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	sess.saver = newSaver(ctx)
	s.sessions[st.UserID] = sess
	return sess, nil
}

// Get returns the session of a user in any phase.
func (s *Store) Get(userID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Active returns the Active sessions ordered by user id. The slice is a
// snapshot; sessions may start draining after it was taken.
func (s *Store) Active() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Phase() == Active {
			out = append(out, sess)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].userID < out[j].userID })
	return out
}

// All returns every session regardless of phase.
func (s *Store) All() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// BeginDrain moves a session from Active to Draining and cancels its
// context. It returns false if the user has no session or it is already
// draining.
func (s *Store) BeginDrain(userID string) (*Session, bool) {
	sess, ok := s.Get(userID)
	if !ok {
		return nil, false
	}
	if !sess.phase.CompareAndSwap(int32(Active), int32(Draining)) {
		return sess, false
	}
	sess.cancel()
	return sess, true
}

// Evict removes sess if it is still the registered session of its user.
func (s *Store) Evict(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.userID]; ok && cur == sess {
		delete(s.sessions, sess.userID)
		sess.cancel()
		close(sess.done)
		return true
	}
	return false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
