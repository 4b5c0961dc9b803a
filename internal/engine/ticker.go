package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/rules"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/logger"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/metrics"
	"github.com/MRamiBalles/ResourceRush/server/internal/session"
)

// Ticker drives the two periodic loops: production and autosave.
// It does NOT know about quests or prices - it only calls into the engine.
type Ticker struct {
	engine     *Engine
	logger     *logger.Logger
	production time.Duration
	autosave   time.Duration
	tickNumber atomic.Int64
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewTicker creates a ticker for e. Non-positive periods fall back to 1s
// production and 30s autosave.
func NewTicker(e *Engine, log *logger.Logger, production, autosave time.Duration) *Ticker {
	if production <= 0 {
		production = time.Second
	}
	if autosave <= 0 {
		autosave = 30 * time.Second
	}
	return &Ticker{
		engine:     e,
		logger:     log,
		production: production,
		autosave:   autosave,
		stopChan:   make(chan struct{}),
	}
}

// Start runs both loops. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Info("Engine ticker started (production every %s, autosave every %s)", t.production, t.autosave)

	production := time.NewTicker(t.production)
	defer production.Stop()
	autosave := time.NewTicker(t.autosave)
	defer autosave.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Engine ticker stopped by context.")
			return
		case <-t.stopChan:
			t.logger.Info("Engine ticker stopped manually.")
			return
		case <-production.C:
			start := time.Now()
			t.engine.ProductionTick(t.production)
			t.tickNumber.Add(1)
			metrics.Get().RecordTick(time.Since(start))
		case <-autosave.C:
			t.engine.AutosaveTick()
		}
	}
}

// Stop gracefully stops the ticker. Safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// Ticks is the number of production ticks run so far.
func (t *Ticker) Ticks() int64 {
	return t.tickNumber.Load()
}

// ProductionTick credits dt worth of production to every Active session.
// Sessions producing nothing are skipped without a notification.
func (e *Engine) ProductionTick(dt time.Duration) {
	now := e.clock.Now()
	for _, sess := range e.store.Active() {
		o := &op{now: now}
		sess.Do(func(st *player.State) {
			if sess.Phase() != session.Active {
				return
			}
			rate := rules.TotalProductionRate(e.reg, st, e.params)
			if rate == 0 {
				return
			}
			st.Balance += rate * dt.Seconds()
			if rate > st.Prestige.PeakProduction {
				st.Prestige.PeakProduction = rate
			}

			completed := e.evaluateQuests(st, o)
			o.notify(events.Balance(events.BalanceUpdate{Balance: st.Balance, TotalProduction: rate}))
			if completed > 0 {
				o.notify(events.Snapshot(e.buildSnapshot(st)))
			}
		})
		e.emit(sess.UserID(), o.notes)
	}
}

// AutosaveTick queues a save of every Active session. Saves run in each
// session's writer, so a slow store never delays another session.
func (e *Engine) AutosaveTick() {
	now := e.clock.Now()
	for _, sess := range e.store.Active() {
		sess.Do(func(st *player.State) {
			if sess.Phase() != session.Active {
				return
			}
			e.enqueueSave(sess, st, now)
		})
	}
}
