package engine

import (
	"fmt"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
)

// evaluateQuests completes every open quest whose condition holds, in
// ascending id order. Each quest is checked on its own; completing one does
// not gate another. Rewards go to bonus currency exactly once, on the
// transition to complete. It returns the number of quests completed.
func (e *Engine) evaluateQuests(st *player.State, o *op) int {
	completed := 0
	for i := range st.Quests {
		q := &st.Quests[i]
		if q.Completed {
			continue
		}
		def, ok := e.reg.Quest(q.QuestID)
		if !ok || !def.Condition.Satisfied(st.Balance, st.Generators) {
			continue
		}

		q.Completed = true
		completed++
		if def.Reward > 0 {
			st.Prestige.BonusCurrency += def.Reward
			e.record(o.now, events.EntryQuestReward, st.UserID, def.Reward, fmt.Sprintf("quest %d", def.ID))
		}
		e.logger.Event("QUEST_COMPLETED", st.UserID, fmt.Sprintf("#%d %s", def.ID, def.Description))
		o.notify(events.Quest(events.QuestCompleted{QuestID: def.ID, Reward: def.Reward}))
	}
	return completed
}
