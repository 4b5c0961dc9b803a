// Package rules contains the pure calculation logic for the economy.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"math"
	"time"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/registry"
)

// CostGrowth is the per-unit price growth of every generator.
const CostGrowth = 1.15

// Params are the tunable constants the economy functions share.
type Params struct {
	// BonusPerCurrency is k in the prestige multiplier 1 + bonusCurrency*k.
	BonusPerCurrency float64
	// ClickAfterIncrement looks click yield up with the post-increment count.
	ClickAfterIncrement bool
}

// PrestigeMultiplier is the permanent cross-run multiplier.
func PrestigeMultiplier(p player.PrestigeState, params Params) float64 {
	return 1 + p.BonusCurrency*params.BonusPerCurrency
}

// ProductionRate is owned * baseRate * milestone(owned) * prestigeMultiplier.
// Unknown generators produce nothing.
func ProductionRate(reg *registry.Registry, own player.GeneratorOwnership, prestigeMultiplier float64) float64 {
	def, ok := reg.Generator(own.GeneratorID)
	if !ok || own.Owned <= 0 {
		return 0
	}
	return float64(own.Owned) * def.BaseRate * reg.MilestoneMultiplier(own.Owned) * prestigeMultiplier
}

// TotalProductionRate sums ProductionRate over every ownership of the state.
func TotalProductionRate(reg *registry.Registry, st *player.State, params Params) float64 {
	mult := PrestigeMultiplier(st.Prestige, params)
	total := 0.0
	for _, own := range st.Generators {
		total += ProductionRate(reg, own, mult)
	}
	return total
}

// ClickCount is the manual-action count used to look up the yield of the
// next manual action.
func ClickCount(st *player.State, params Params) int64 {
	if params.ClickAfterIncrement {
		return st.TotalManualActions + 1
	}
	return st.TotalManualActions
}

// ClickYield is the amount the next manual action will add to the balance.
func ClickYield(reg *registry.Registry, st *player.State, params Params) float64 {
	return reg.ClickYieldFor(ClickCount(st, params)) * PrestigeMultiplier(st.Prestige, params)
}

// UnitCost is floor(baseCost * 1.15^owned).
func UnitCost(def registry.GeneratorDefinition, owned int) float64 {
	return math.Floor(def.BaseCost * math.Pow(CostGrowth, float64(owned)))
}

// PurchaseCost sums UnitCost over [ownedBefore, ownedBefore+count).
func PurchaseCost(def registry.GeneratorDefinition, ownedBefore, count int) float64 {
	total := 0.0
	for i := 0; i < count; i++ {
		total += UnitCost(def, ownedBefore+i)
	}
	return total
}

// MaxAffordable is the largest count whose cumulative cost fits in balance,
// and that cost. Units are priced one at a time because each is floored.
func MaxAffordable(def registry.GeneratorDefinition, ownedBefore int, balance float64) (count int, cost float64) {
	if balance <= 0 || math.IsNaN(balance) {
		return 0, 0
	}
	for {
		next := cost + UnitCost(def, ownedBefore+count)
		if math.IsInf(next, 0) || next > balance {
			return count, cost
		}
		cost = next
		count++
	}
}

// DepthIncrement is how far one manual action digs: max(1, floor(multiplier)).
func DepthIncrement(p player.PrestigeState, params Params) int64 {
	inc := int64(math.Floor(PrestigeMultiplier(p, params)))
	if inc < 1 {
		return 1
	}
	return inc
}

// PrestigeReward is floor(scale * log10(max(peak, 1))).
func PrestigeReward(peakProduction, scale float64) float64 {
	return math.Floor(scale * math.Log10(math.Max(peakProduction, 1)))
}

// OfflineWindow bounds offline catch-up.
type OfflineWindow struct {
	Min time.Duration
	Max time.Duration
}

// OfflineEarnings credits rate per whole elapsed second, with elapsed clamped
// to [0, Max]. Anything shorter than Min earns nothing.
func OfflineEarnings(rate float64, elapsed time.Duration, w OfflineWindow) (earned float64, seconds int64) {
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > w.Max {
		elapsed = w.Max
	}
	if elapsed < w.Min {
		return 0, 0
	}
	seconds = int64(elapsed / time.Second)
	if rate <= 0 {
		return 0, seconds
	}
	return math.Floor(rate * float64(seconds)), seconds
}
