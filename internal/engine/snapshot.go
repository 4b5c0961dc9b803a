package engine

import (
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/rules"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
)

// buildSnapshot recomputes the full UI state. Callers hold the session lock.
func (e *Engine) buildSnapshot(st *player.State) events.StateSnapshot {
	mult := rules.PrestigeMultiplier(st.Prestige, e.params)

	gens := make([]events.GeneratorView, 0, len(st.Generators))
	total := 0.0
	for _, own := range st.Generators {
		def, _ := e.reg.Generator(own.GeneratorID)
		rate := rules.ProductionRate(e.reg, own, mult)
		total += rate

		view := events.GeneratorView{
			GeneratorID: own.GeneratorID,
			Name:        def.Name,
			Owned:       own.Owned,
			CurrentCost: own.CurrentCost,
			Rate:        rate,
		}
		if m, ok := e.reg.NextMilestone(own.Owned); ok {
			owned, next := m.Owned, m.Multiplier
			view.NextMilestone = &owned
			view.NextMultiplier = &next
		}
		gens = append(gens, view)
	}

	snap := events.StateSnapshot{
		Balance:            st.Balance,
		Generators:         gens,
		ClickYield:         rules.ClickYield(e.reg, st, e.params),
		TotalProduction:    total,
		Depth:              st.Depth,
		TotalManualActions: st.TotalManualActions,
	}

	if id, ok := st.FirstIncompleteQuest(); ok {
		if def, ok := e.reg.Quest(id); ok {
			snap.CurrentQuest = &events.QuestView{QuestID: def.ID, Description: def.Description, Reward: def.Reward}
		}
	}
	if m, ok := e.reg.NextClickMilestone(rules.ClickCount(st, e.params)); ok {
		snap.NextClickMilestone = &events.ClickMilestoneView{Clicks: m.Clicks, Yield: m.Yield * mult}
	}

	out, can := e.policy.Evaluate(st)
	snap.Prestige = events.PrestigeView{
		BonusCurrency:  st.Prestige.BonusCurrency,
		PeakProduction: st.Prestige.PeakProduction,
		Count:          st.Prestige.Count,
		Multiplier:     mult,
		CanPrestige:    can,
		NextReward:     out.Reward,
		NextCost:       out.Cost,
	}
	return snap
}
