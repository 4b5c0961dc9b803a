package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/ResourceRush/server/internal/config"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/registry"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/rules"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/clock"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/logger"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/metrics"
	"github.com/MRamiBalles/ResourceRush/server/internal/savegame"
	"github.com/MRamiBalles/ResourceRush/server/internal/session"
)

var (
	// ErrRegistryNotLoaded is returned by New without a definition catalog.
	ErrRegistryNotLoaded = errors.New("engine: definition registry not loaded")
	// ErrRejected wraps every action refused for stale or invalid input.
	// Rejected actions leave the state untouched and notify nobody.
	ErrRejected = errors.New("engine: action rejected")
)

// SaveRepository is the durable side of a session.
type SaveRepository interface {
	Load(ctx context.Context, userID string) (savegame.Document, savegame.Metadata, bool, error)
	Save(ctx context.Context, st player.State) error
	Version() int
}

// Options wires the engine to its collaborators. Registry and Saves are
// required; everything else has a usable default.
type Options struct {
	Registry *registry.Registry
	Economy  config.EconomyConfig
	Store    *session.Store
	Saves    SaveRepository
	Notifier events.Notifier
	Ledger   *events.Ledger
	Clock    clock.Clock
	Logger   *logger.Logger
}

// Engine is the central orchestrator: it owns the session lifecycle and is
// the only component that mutates player state.
type Engine struct {
	reg      *registry.Registry
	cfg      config.EconomyConfig
	params   rules.Params
	policy   rules.PrestigePolicy
	window   rules.OfflineWindow
	store    *session.Store
	saves    SaveRepository
	notifier events.Notifier
	ledger   *events.Ledger
	clock    clock.Clock
	logger   *logger.Logger
	ticker   *Ticker
}

// New validates the options and builds an engine. Call Start to run the
// tick loops.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, ErrRegistryNotLoaded
	}
	if opts.Saves == nil {
		return nil, errors.New("engine: save repository is required")
	}
	policy, err := PolicyFor(opts.Economy)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		reg: opts.Registry,
		cfg: opts.Economy,
		params: rules.Params{
			BonusPerCurrency:    opts.Economy.PrestigeBonusPerCurrency,
			ClickAfterIncrement: opts.Economy.ClickBoundary == config.ClickBoundaryAfter,
		},
		policy:   policy,
		window:   rules.OfflineWindow{Min: opts.Economy.MinOffline, Max: opts.Economy.MaxOffline},
		store:    opts.Store,
		saves:    opts.Saves,
		notifier: opts.Notifier,
		ledger:   opts.Ledger,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if e.store == nil {
		e.store = session.NewStore()
	}
	if e.notifier == nil {
		e.notifier = events.Discard{}
	}
	if e.clock == nil {
		e.clock = clock.RealClock{}
	}
	if e.logger == nil {
		e.logger = logger.Discard()
	}
	e.ticker = NewTicker(e, e.logger, opts.Economy.ProductionTick, opts.Economy.AutosaveInterval)
	return e, nil
}

// PolicyFor builds the prestige policy named by the economy settings.
func PolicyFor(cfg config.EconomyConfig) (rules.PrestigePolicy, error) {
	switch cfg.PrestigePolicy {
	case config.PolicyCurrencyGated, "":
		return rules.CurrencyGated{
			BaseCost:    cfg.PrestigeBaseCost,
			Growth:      cfg.PrestigeCostGrowth,
			RewardScale: cfg.PrestigeRewardScale,
		}, nil
	case config.PolicyBalanceGated:
		return rules.BalanceGated{
			Threshold:   cfg.PrestigeBalanceThreshold,
			RewardScale: cfg.PrestigeRewardScale,
		}, nil
	default:
		return nil, fmt.Errorf("engine: unknown prestige policy %q", cfg.PrestigePolicy)
	}
}

// Start runs the production and autosave loops until ctx ends or Stop.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting economy engine (policy=%s, tick=%s, autosave=%s)",
		e.policy.Name(), e.cfg.ProductionTick, e.cfg.AutosaveInterval)
	go e.ticker.Start(ctx)
}

// Stop halts the tick loops. Sessions stay open; use Shutdown to drain them.
func (e *Engine) Stop() {
	e.ticker.Stop()
}

func (e *Engine) Registry() *registry.Registry { return e.reg }
func (e *Engine) Sessions() *session.Store     { return e.store }
func (e *Engine) Policy() rules.PrestigePolicy { return e.policy }

// Join loads or creates the state of userID, credits offline production and
// opens an Active session. A user whose previous session still exists is
// refused with session.ErrSessionExists. A failed store read defers the
// join; a save that cannot be decoded is replaced with defaults.
func (e *Engine) Join(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrRejected)
	}
	if _, exists := e.store.Get(userID); exists {
		e.logger.Warn("Join refused for %s: previous session still live", userID)
		return session.ErrSessionExists
	}

	st, err := e.loadState(ctx, userID)
	if err != nil {
		e.logger.Error("Join deferred for %s: %v", userID, err)
		return err
	}

	now := e.clock.Now()
	o := &op{now: now}
	e.reconcileOffline(st, o)
	e.evaluateQuests(st, o)

	sess, err := e.store.Open(context.WithoutCancel(ctx), st, func(sctx context.Context) session.Saver {
		return savegame.NewWriter(sctx, userID, e.saves.Save, e.logger, e.writerOptions())
	}, now)
	if err != nil {
		e.logger.Warn("Join refused for %s: %v", userID, err)
		return err
	}
	metrics.Get().RecordSession(1)

	var snap events.StateSnapshot
	var daily events.DailyRewardState
	var completed, quests int
	sess.Do(func(st *player.State) {
		e.enqueueSave(sess, st, now)
		snap = e.buildSnapshot(st)
		daily = e.dailyState(st, now)
		completed, quests = st.CompletedQuests(), len(st.Quests)
	})

	e.logger.Event("SESSION_JOIN", userID, fmt.Sprintf("balance=%.0f generators=%d quests=%d/%d",
		snap.Balance, len(snap.Generators), completed, quests))

	e.emit(userID, []events.Notification{events.Daily(daily)})
	e.emit(userID, o.notes)
	e.emit(userID, []events.Notification{events.Snapshot(snap)})
	return nil
}

func (e *Engine) loadState(ctx context.Context, userID string) (*player.State, error) {
	if e.cfg.ForceReset {
		e.logger.Warn("Force reset enabled: ignoring stored save for %s", userID)
		return player.NewState(userID, e.reg), nil
	}

	doc, meta, found, err := e.saves.Load(ctx, userID)
	switch {
	case errors.Is(err, savegame.ErrCorruptSave):
		e.consistencyRepair(userID, "unreadable save replaced with defaults")
		return player.NewState(userID, e.reg), nil
	case err != nil:
		return nil, fmt.Errorf("load save for %s: %w", userID, err)
	case !found:
		return player.NewState(userID, e.reg), nil
	}

	st, rep := savegame.Merge(e.reg, e.saves.Version(), userID, doc, meta)
	if rep.Repaired() {
		e.consistencyRepair(userID, describeRepair(rep, e.saves.Version()))
	}
	return st, nil
}

func (e *Engine) consistencyRepair(userID, details string) {
	e.logger.Warn("Save of %s repaired: %s", userID, details)
	metrics.Get().RecordConsistencyRepair()
	e.record(e.clock.Now(), events.EntryConsistencyRepair, userID, 0, details)
}

func describeRepair(rep savegame.Report, version int) string {
	var parts []string
	if rep.VersionMismatch {
		parts = append(parts, fmt.Sprintf("version %d != %d", rep.StoredVersion, version))
	}
	if rep.GeneratorsReset {
		parts = append(parts, "generators realigned")
	}
	if rep.QuestsReset {
		parts = append(parts, "quests realigned")
	}
	if len(rep.Dropped) > 0 {
		parts = append(parts, "dropped "+strings.Join(rep.Dropped, ","))
	}
	return strings.Join(parts, "; ")
}

// Leave drains the session of userID: later actions and ticks are refused,
// background saves are cancelled, and the final save is awaited under ctx
// before the session is evicted. The session is evicted even when the final
// save fails; the error is returned so the caller can report it.
func (e *Engine) Leave(ctx context.Context, userID string) error {
	sess, ok := e.store.BeginDrain(userID)
	if !ok {
		return session.ErrNoSession
	}

	var final player.State
	sess.Do(func(st *player.State) {
		st.LastPersistedAt = e.clock.Now()
		final = st.Clone()
	})

	start := time.Now()
	err := sess.Saver().Flush(ctx, final)
	e.store.Evict(sess)
	metrics.Get().RecordSession(-1)

	if err != nil {
		e.logger.Error("Final save for %s failed, session evicted anyway: %v", userID, err)
		return fmt.Errorf("final save for %s: %w", userID, err)
	}
	e.logger.Event("SESSION_LEAVE", userID, fmt.Sprintf("final save in %s", time.Since(start).Round(time.Millisecond)))
	return nil
}

// Shutdown drains every session concurrently and waits for their final
// saves, including sessions another caller is already draining.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Stop()
	var g errgroup.Group
	for _, sess := range e.store.All() {
		g.Go(func() error {
			err := e.Leave(ctx, sess.UserID())
			if !errors.Is(err, session.ErrNoSession) {
				return err
			}
			// someone else owns the drain; wait for its eviction
			select {
			case <-sess.Done():
				return nil
			case <-ctx.Done():
				return fmt.Errorf("waiting for %s to drain: %w", sess.UserID(), ctx.Err())
			}
		})
	}
	return g.Wait()
}

func (e *Engine) writerOptions() savegame.WriterOptions {
	return savegame.WriterOptions{
		Retries: e.cfg.SaveRetries,
		Backoff: e.cfg.SaveBackoff,
		Timeout: e.cfg.SaveTimeout,
	}
}

// op collects the side effects of one locked mutation so they can be
// delivered after the session lock is released.
type op struct {
	now     time.Time
	notes   []events.Notification
	persist bool
}

func (o *op) notify(n events.Notification) { o.notes = append(o.notes, n) }

// mutate runs fn against the Active session of userID. Notifications are
// emitted only if fn succeeds, after the lock is released.
func (e *Engine) mutate(userID string, fn func(st *player.State, o *op) error) error {
	sess, ok := e.store.Get(userID)
	if !ok {
		metrics.Get().RecordAction(false)
		return session.ErrNoSession
	}

	o := &op{now: e.clock.Now()}
	var err error
	sess.Do(func(st *player.State) {
		if sess.Phase() != session.Active {
			err = session.ErrNoSession
			return
		}
		if err = fn(st, o); err != nil {
			return
		}
		if o.persist {
			e.enqueueSave(sess, st, o.now)
		}
	})
	metrics.Get().RecordAction(err == nil)
	if err != nil {
		return err
	}
	e.emit(userID, o.notes)
	return nil
}

// enqueueSave hands a copy of st to the session writer. Callers hold the
// session lock.
func (e *Engine) enqueueSave(sess *session.Session, st *player.State, now time.Time) {
	st.LastPersistedAt = now
	sess.Saver().Enqueue(st.Clone())
}

func (e *Engine) emit(userID string, notes []events.Notification) {
	for _, n := range notes {
		e.notifier.Notify(userID, n)
	}
}

func (e *Engine) record(at time.Time, typ events.EntryType, userID string, amount float64, details string) {
	if e.ledger == nil {
		return
	}
	e.ledger.Record(at, typ, userID, amount, details)
}

func rejected(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}
