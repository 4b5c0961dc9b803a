package savegame

import (
	"math"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/player"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/registry"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/rules"
)

// Report describes what Merge had to repair.
type Report struct {
	// Fresh means there was no save at all.
	Fresh           bool     `json:"fresh"`
	VersionMismatch bool     `json:"versionMismatch"`
	StoredVersion   int      `json:"storedVersion"`
	GeneratorsReset bool     `json:"generatorsReset"`
	QuestsReset     bool     `json:"questsReset"`
	Dropped         []string `json:"dropped,omitempty"`
}

// Repaired reports whether the merged state differs from what was stored.
func (r Report) Repaired() bool {
	return r.VersionMismatch || r.GeneratorsReset || r.QuestsReset || len(r.Dropped) > 0
}

// Merge builds the live state for userID from a stored document. It starts
// from registry defaults and overlays every stored field that validates, so
// a partially drifted save keeps whatever progress is still meaningful.
//
// Ownership counts and quest flags are matched to the registry by id;
// purchase costs are always recomputed from the count.
func Merge(reg *registry.Registry, version int, userID string, doc Document, meta Metadata) (*player.State, Report) {
	st := player.NewState(userID, reg)
	rep := Report{StoredVersion: meta.Version}
	if meta.Version != version {
		rep.VersionMismatch = true
	}

	drop := func(field string) { rep.Dropped = append(rep.Dropped, field) }

	if doc.Balance != nil {
		if validAmount(*doc.Balance) {
			st.Balance = *doc.Balance
		} else {
			drop("balance")
		}
	}
	if doc.TotalManualActions != nil {
		if *doc.TotalManualActions >= 0 {
			st.TotalManualActions = *doc.TotalManualActions
		} else {
			drop("totalManualActions")
		}
	}
	if doc.Depth != nil {
		if *doc.Depth >= 0 {
			st.Depth = *doc.Depth
		} else {
			drop("depth")
		}
	}
	if doc.LastPersistedAt != nil {
		st.LastPersistedAt = *doc.LastPersistedAt
	}
	if doc.Prestige != nil {
		p := *doc.Prestige
		if validAmount(p.BonusCurrency) && validAmount(p.PeakProduction) && p.Count >= 0 {
			st.Prestige = p
		} else {
			drop("prestige")
		}
	}
	if doc.Daily != nil {
		d := *doc.Daily
		if d.ConsecutiveDays >= 0 && d.ConsecutiveDays <= dailyStreakCycle {
			st.Daily = d
		} else {
			drop("daily")
		}
	}

	rep.GeneratorsReset = mergeGenerators(reg, st, doc.Generators)
	rep.QuestsReset = mergeQuests(st, doc.Quests)
	return st, rep
}

// dailyStreakCycle is the longest daily-login streak before it restarts.
const dailyStreakCycle = 7

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// mergeGenerators reports true when the stored collection did not line up
// with the registry and some or all entries fell back to defaults.
func mergeGenerators(reg *registry.Registry, st *player.State, stored []player.GeneratorOwnership) bool {
	if stored == nil {
		return false
	}
	reset := len(stored) != len(st.Generators)
	byID := make(map[int]player.GeneratorOwnership, len(stored))
	for i, g := range stored {
		if i < len(st.Generators) && st.Generators[i].GeneratorID != g.GeneratorID {
			reset = true
		}
		byID[g.GeneratorID] = g
	}

	for i := range st.Generators {
		own := &st.Generators[i]
		g, ok := byID[own.GeneratorID]
		if !ok || g.Owned < 0 {
			reset = true
			continue
		}
		def, _ := reg.Generator(own.GeneratorID)
		own.Owned = g.Owned
		own.CurrentCost = rules.UnitCost(def, g.Owned)
	}
	return reset
}

func mergeQuests(st *player.State, stored []player.QuestProgress) bool {
	if stored == nil {
		return false
	}
	reset := len(stored) != len(st.Quests)
	done := make(map[int]bool, len(stored))
	for i, q := range stored {
		if i < len(st.Quests) && st.Quests[i].QuestID != q.QuestID {
			reset = true
		}
		done[q.QuestID] = q.Completed
	}

	for i := range st.Quests {
		completed, ok := done[st.Quests[i].QuestID]
		if !ok {
			reset = true
			continue
		}
		st.Quests[i].Completed = completed
	}
	return reset
}
