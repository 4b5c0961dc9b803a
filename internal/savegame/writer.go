package savegame

import (
	"context"
	"sync"
	"time"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/logger"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/metrics"
)

// SaveFunc persists one state snapshot.
type SaveFunc func(ctx context.Context, st player.State) error

// WriterOptions bound the retry policy of a Writer.
type WriterOptions struct {
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Timeout bounds a single save attempt.
	Timeout time.Duration
}

// Writer sequences the saves of one session. Snapshots queued while a save
// is in flight are coalesced to the latest one, and a snapshot older than
// one already written is never written.
type Writer struct {
	userID string
	save   SaveFunc
	log    *logger.Logger
	opts   WriterOptions

	mu         sync.Mutex
	pending    *player.State
	pendingSeq uint64
	seq        uint64
	closed     bool

	// writeMu serializes attempts; written is the newest sequence stored.
	writeMu sync.Mutex
	written uint64

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWriter starts the background save loop for one session. Cancelling
// parent stops background saves and retries; Flush still writes.
func NewWriter(parent context.Context, userID string, save SaveFunc, log *logger.Logger, opts WriterOptions) *Writer {
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(parent)
	w := &Writer{
		userID: userID,
		save:   save,
		log:    log,
		opts:   opts,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// Enqueue schedules st to be saved without waiting for it.
func (w *Writer) Enqueue(st player.State) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.seq++
	if w.pending != nil {
		metrics.Get().RecordSaveCoalesced()
	}
	w.pending = &st
	w.pendingSeq = w.seq
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush stops background work and writes final, retrying under ctx.
// The writer accepts no more snapshots afterwards.
func (w *Writer) Flush(ctx context.Context, final player.State) error {
	w.mu.Lock()
	w.closed = true
	w.seq++
	seq := w.seq
	w.pending = nil
	w.mu.Unlock()

	w.cancel()
	<-w.done
	return w.write(ctx, final, seq)
}

// Close cancels pending saves and retries without a final write.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.pending = nil
	w.mu.Unlock()

	w.cancel()
	<-w.done
}

func (w *Writer) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.wake:
		}
		for {
			st, seq, ok := w.take()
			if !ok {
				break
			}
			_ = w.write(w.ctx, st, seq)
		}
	}
}

func (w *Writer) take() (player.State, uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return player.State{}, 0, false
	}
	st, seq := *w.pending, w.pendingSeq
	w.pending = nil
	return st, seq, true
}

func (w *Writer) supersededBy(seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending != nil && w.pendingSeq > seq
}

func (w *Writer) write(ctx context.Context, st player.State, seq uint64) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if seq <= w.written {
		return nil
	}

	backoff := w.opts.Backoff
	for attempt := 0; ; attempt++ {
		err := w.attempt(ctx, st)
		if err == nil {
			w.written = seq
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= w.opts.Retries {
			w.log.Error("Save for %s abandoned after %d attempts: %v", w.userID, attempt+1, err)
			return err
		}
		if w.supersededBy(seq) {
			// a newer snapshot is queued; retry with that instead
			w.log.Warn("Save for %s failed, newer snapshot queued: %v", w.userID, err)
			return err
		}
		w.log.Warn("Save for %s failed (attempt %d), retrying in %s: %v", w.userID, attempt+1, backoff, err)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
		if backoff > w.opts.MaxBackoff {
			backoff = w.opts.MaxBackoff
		}
	}
}

func (w *Writer) attempt(ctx context.Context, st player.State) error {
	if w.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	err := w.save(ctx, st)
	metrics.Get().RecordSave(time.Since(start), err)
	return err
}
