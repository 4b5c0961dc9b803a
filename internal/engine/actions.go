package engine

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/rules"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
	"github.com/MRamiBalles/ResourceRush/server/internal/session"
)

// Amount is the size of a purchase: a positive unit count, or Max for as
// many units as the balance affords.
type Amount struct {
	Count int
	Max   bool
}

// Units buys exactly n units.
func Units(n int) Amount { return Amount{Count: n} }

// MaxAffordable buys as many units as the balance covers.
var MaxAffordable = Amount{Max: true}

func (a Amount) String() string {
	if a.Max {
		return "max"
	}
	return fmt.Sprintf("%d", a.Count)
}

// ManualAction credits one click: the current click yield, one manual
// action and the depth increment. It is not persisted on its own; the
// autosave loop picks it up.
func (e *Engine) ManualAction(userID string) error {
	return e.mutate(userID, func(st *player.State, o *op) error {
		st.Balance += rules.ClickYield(e.reg, st, e.params)
		st.TotalManualActions++
		st.Depth += rules.DepthIncrement(st.Prestige, e.params)

		e.evaluateQuests(st, o)
		o.notify(events.Snapshot(e.buildSnapshot(st)))
		return nil
	})
}

// Purchase buys generators. Unknown generators, non-positive counts and
// unaffordable amounts are rejected without touching the state.
func (e *Engine) Purchase(userID string, generatorID int, amount Amount) error {
	return e.mutate(userID, func(st *player.State, o *op) error {
		def, ok := e.reg.Generator(generatorID)
		if !ok {
			return rejected("unknown generator %d", generatorID)
		}
		own := st.Ownership(generatorID)
		if own == nil {
			return rejected("generator %d not tracked for %s", generatorID, userID)
		}
		if !amount.Max && amount.Count <= 0 {
			return rejected("invalid amount %d", amount.Count)
		}

		count, cost := rules.MaxAffordable(def, own.Owned, st.Balance)
		if !amount.Max {
			if amount.Count > count {
				return rejected("cannot afford %d x %s", amount.Count, def.Name)
			}
			count, cost = amount.Count, rules.PurchaseCost(def, own.Owned, amount.Count)
		}
		if count == 0 {
			return rejected("cannot afford %s", def.Name)
		}

		before := own.Owned
		st.Balance -= cost
		own.Owned += count
		own.CurrentCost = rules.UnitCost(def, own.Owned)

		if m, ok := e.reg.CrossedMilestone(before, own.Owned); ok {
			o.notify(events.Milestone(events.MilestoneReached{
				GeneratorID: generatorID,
				Owned:       own.Owned,
				Multiplier:  m.Multiplier,
			}))
		}

		details := fmt.Sprintf("%dx %s", count, def.Name)
		e.record(o.now, events.EntryPurchase, userID, cost, details)
		e.logger.Event("PURCHASE", userID, fmt.Sprintf("%s for %s (owned %d)", details, humanize.Commaf(cost), own.Owned))

		e.evaluateQuests(st, o)
		o.persist = true
		o.notify(events.Snapshot(e.buildSnapshot(st)))
		return nil
	})
}

// Prestige trades the current run for bonus currency under the configured
// policy. Quest progress resets with the run and is not re-evaluated here.
func (e *Engine) Prestige(userID string) error {
	return e.mutate(userID, func(st *player.State, o *op) error {
		out, ok := e.policy.Evaluate(st)
		if !ok {
			return rejected("%s prestige not available for %s", e.policy.Name(), userID)
		}

		st.Prestige.BonusCurrency += out.Reward - out.Cost
		st.Prestige.Count++
		st.Reset(e.reg)

		e.record(o.now, events.EntryPrestige, userID, out.Reward,
			fmt.Sprintf("prestige #%d cost %s", st.Prestige.Count, humanize.Ftoa(out.Cost)))
		e.logger.Event("PRESTIGE", userID, fmt.Sprintf("#%d reward=%s cost=%s bonus=%s",
			st.Prestige.Count, humanize.Ftoa(out.Reward), humanize.Ftoa(out.Cost), humanize.Ftoa(st.Prestige.BonusCurrency)))

		o.persist = true
		o.notify(events.Prestige(events.PrestigeCompleted{
			Count:         st.Prestige.Count,
			Cost:          out.Cost,
			Reward:        out.Reward,
			BonusCurrency: st.Prestige.BonusCurrency,
		}))
		o.notify(events.Snapshot(e.buildSnapshot(st)))
		return nil
	})
}

// Snapshot returns the UI state of a live session in any phase.
func (e *Engine) Snapshot(userID string) (events.StateSnapshot, error) {
	sess, ok := e.store.Get(userID)
	if !ok {
		return events.StateSnapshot{}, session.ErrNoSession
	}
	var snap events.StateSnapshot
	sess.Do(func(st *player.State) {
		snap = e.buildSnapshot(st)
	})
	return snap, nil
}

// Resync sends the full state and the daily reward state again, for a
// display that lost track.
func (e *Engine) Resync(userID string) error {
	return e.mutate(userID, func(st *player.State, o *op) error {
		o.notify(events.Daily(e.dailyState(st, o.now)))
		o.notify(events.Snapshot(e.buildSnapshot(st)))
		return nil
	})
}
