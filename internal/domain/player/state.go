// Package player defines the per-user simulation state.
// A State is owned by exactly one session; every other component works on a
// transient pointer for the duration of one operation, or on a Clone.
package player

import (
	"math"
	"time"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/registry"
)

// GeneratorOwnership tracks one registry generator for a user.
// CurrentCost is always floor(baseCost * 1.15^Owned).
type GeneratorOwnership struct {
	GeneratorID int     `json:"generatorId"`
	Owned       int     `json:"owned"`
	CurrentCost float64 `json:"currentCost"`
}

// QuestProgress never goes back to incomplete outside of a prestige reset.
type QuestProgress struct {
	QuestID   int  `json:"questId"`
	Completed bool `json:"completed"`
}

// PrestigeState survives prestige resets, except PeakProduction.
type PrestigeState struct {
	BonusCurrency  float64 `json:"bonusCurrency"`
	PeakProduction float64 `json:"peakProduction"`
	Count          int     `json:"count"`
}

// DailyLogin is the daily reward streak.
type DailyLogin struct {
	LastClaimAt     time.Time `json:"lastClaimAt"`
	ConsecutiveDays int       `json:"consecutiveDays"`
}

// Ownerships is ordered to match the registry generator order.
type Ownerships []GeneratorOwnership

// Owned implements registry.Ownership.
func (o Ownerships) Owned(generatorID int) int {
	for _, g := range o {
		if g.GeneratorID == generatorID {
			return g.Owned
		}
	}
	return 0
}

// State is the live simulation state of one user.
type State struct {
	UserID             string          `json:"userId"`
	Balance            float64         `json:"balance"`
	TotalManualActions int64           `json:"totalManualActions"`
	Depth              int64           `json:"depth"`
	LastPersistedAt    time.Time       `json:"lastPersistedAt"`
	Generators         Ownerships      `json:"generators"`
	Quests             []QuestProgress `json:"quests"`
	Prestige           PrestigeState   `json:"prestige"`
	Daily              DailyLogin      `json:"daily"`
}

// NewState seeds a fresh state from the registry: nothing owned, every quest open.
func NewState(userID string, reg *registry.Registry) *State {
	st := &State{UserID: userID}
	st.Generators = DefaultOwnerships(reg)
	st.Quests = DefaultQuests(reg)
	return st
}

// DefaultOwnerships returns one zero-owned entry per registry generator.
func DefaultOwnerships(reg *registry.Registry) Ownerships {
	defs := reg.Generators()
	out := make(Ownerships, len(defs))
	for i, def := range defs {
		out[i] = GeneratorOwnership{
			GeneratorID: def.ID,
			CurrentCost: math.Floor(def.BaseCost),
		}
	}
	return out
}

// DefaultQuests returns one incomplete entry per registry quest.
func DefaultQuests(reg *registry.Registry) []QuestProgress {
	defs := reg.Quests()
	out := make([]QuestProgress, len(defs))
	for i, def := range defs {
		out[i] = QuestProgress{QuestID: def.ID}
	}
	return out
}

// Reset clears run-local progress for a prestige. Prestige and daily-login
// data are kept; the peak production restarts from zero.
func (s *State) Reset(reg *registry.Registry) {
	s.Balance = 0
	s.TotalManualActions = 0
	s.Depth = 0
	s.Generators = DefaultOwnerships(reg)
	s.Quests = DefaultQuests(reg)
	s.Prestige.PeakProduction = 0
}

// Clone deep-copies the state.
func (s *State) Clone() State {
	c := *s
	c.Generators = append(Ownerships(nil), s.Generators...)
	c.Quests = append([]QuestProgress(nil), s.Quests...)
	return c
}

// Ownership returns a pointer into Generators for in-place mutation.
func (s *State) Ownership(generatorID int) *GeneratorOwnership {
	for i := range s.Generators {
		if s.Generators[i].GeneratorID == generatorID {
			return &s.Generators[i]
		}
	}
	return nil
}

// FirstIncompleteQuest is the lowest-id open quest.
func (s *State) FirstIncompleteQuest() (int, bool) {
	for _, q := range s.Quests {
		if !q.Completed {
			return q.QuestID, true
		}
	}
	return 0, false
}

// CompletedQuests counts finished quests.
func (s *State) CompletedQuests() int {
	n := 0
	for _, q := range s.Quests {
		if q.Completed {
			n++
		}
	}
	return n
}
