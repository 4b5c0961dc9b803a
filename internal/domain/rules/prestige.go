package rules

import (
	"math"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
)

// PrestigeOutcome is what a granted prestige spends and awards.
type PrestigeOutcome struct {
	Cost   float64
	Reward float64
}

// PrestigePolicy decides prestige eligibility and its price/reward.
// Every policy shares the same reset routine (player.State.Reset).
type PrestigePolicy interface {
	Name() string
	// Evaluate returns the outcome of the next prestige and whether st may
	// perform it now.
	Evaluate(st *player.State) (PrestigeOutcome, bool)
}

// CurrencyGated spends bonus currency: cost(n) = floor(BaseCost * Growth^n)
// where n is the number of prestiges already performed.
type CurrencyGated struct {
	BaseCost    float64
	Growth      float64
	RewardScale float64
}

func (CurrencyGated) Name() string { return "currency" }

// Cost is the price of the next prestige after count prestiges.
func (p CurrencyGated) Cost(count int) float64 {
	return math.Floor(p.BaseCost * math.Pow(p.Growth, float64(count)))
}

func (p CurrencyGated) Evaluate(st *player.State) (PrestigeOutcome, bool) {
	out := PrestigeOutcome{
		Cost:   p.Cost(st.Prestige.Count),
		Reward: PrestigeReward(st.Prestige.PeakProduction, p.RewardScale),
	}
	return out, st.Prestige.BonusCurrency >= out.Cost
}

// BalanceGated needs the run balance to reach Threshold and spends nothing.
type BalanceGated struct {
	Threshold   float64
	RewardScale float64
}

func (BalanceGated) Name() string { return "balance" }

func (p BalanceGated) Evaluate(st *player.State) (PrestigeOutcome, bool) {
	out := PrestigeOutcome{Reward: PrestigeReward(st.Prestige.PeakProduction, p.RewardScale)}
	return out, st.Balance >= p.Threshold
}
