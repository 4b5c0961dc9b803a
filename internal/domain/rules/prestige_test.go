package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
)

func TestCurrencyGatedCostGrowsGeometrically(t *testing.T) {
	p := CurrencyGated{BaseCost: 10, Growth: 1.7, RewardScale: 10}

	assert.Equal(t, 10.0, p.Cost(0))
	assert.Equal(t, 17.0, p.Cost(1))
	assert.Equal(t, 28.0, p.Cost(2))
	assert.Equal(t, 49.0, p.Cost(3))
}

func TestCurrencyGatedEvaluate(t *testing.T) {
	p := CurrencyGated{BaseCost: 10, Growth: 1.7, RewardScale: 10}
	st := &player.State{Prestige: player.PrestigeState{BonusCurrency: 9, PeakProduction: 1000}}

	out, ok := p.Evaluate(st)
	assert.False(t, ok)
	assert.Equal(t, PrestigeOutcome{Cost: 10, Reward: 30}, out, "the outcome is reported even when not affordable")

	st.Prestige.BonusCurrency = 10
	out, ok = p.Evaluate(st)
	assert.True(t, ok)
	assert.Equal(t, PrestigeOutcome{Cost: 10, Reward: 30}, out)

	st.Prestige.Count = 1
	_, ok = p.Evaluate(st)
	assert.False(t, ok, "the second prestige costs 17")
}

func TestBalanceGatedEvaluate(t *testing.T) {
	p := BalanceGated{Threshold: 1e6, RewardScale: 10}
	st := &player.State{Balance: 999_999, Prestige: player.PrestigeState{PeakProduction: 1000}}

	_, ok := p.Evaluate(st)
	assert.False(t, ok)

	st.Balance = 1e6
	out, ok := p.Evaluate(st)
	assert.True(t, ok)
	assert.Equal(t, PrestigeOutcome{Cost: 0, Reward: 30}, out)
}

func TestPolicyNames(t *testing.T) {
	var policies = []PrestigePolicy{CurrencyGated{}, BalanceGated{}}
	assert.Equal(t, "currency", policies[0].Name())
	assert.Equal(t, "balance", policies[1].Name())
}
