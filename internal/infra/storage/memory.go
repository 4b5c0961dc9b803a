package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is an in-process KV for tests and the "memory" driver.
// Failures and latency can be injected to exercise retry paths.
type MemoryKV struct {
	mu       sync.Mutex
	data     map[string][]byte
	latency  time.Duration
	failSets int
	failGets int
	failErr  error
	sets     int
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGets > 0 {
		m.failGets--
		return nil, m.failErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSets > 0 {
		m.failSets--
		return m.failErr
	}
	m.data[key] = append([]byte(nil), value...)
	m.sets++
	return nil
}

// FailNextSets makes the next n Set calls return err.
func (m *MemoryKV) FailNextSets(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSets = n
	m.failErr = err
}

// FailNextGets makes the next n Get calls return err.
func (m *MemoryKV) FailNextGets(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGets = n
	m.failErr = err
}

// SetLatency delays every call by d, honoring context cancellation.
func (m *MemoryKV) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Sets counts successful writes.
func (m *MemoryKV) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// Put writes directly, bypassing injected failures.
func (m *MemoryKV) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

// Raw reads directly, bypassing injected failures.
func (m *MemoryKV) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryKV) wait(ctx context.Context) error {
	m.mu.Lock()
	d := m.latency
	m.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ KV = (*MemoryKV)(nil)
