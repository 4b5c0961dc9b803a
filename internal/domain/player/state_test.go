package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/ResourceRush/server/internal/domain/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return reg
}

func TestNewStateSeedsFromRegistry(t *testing.T) {
	reg := testRegistry(t)
	st := NewState("alice", reg)

	require.Len(t, st.Generators, reg.GeneratorCount())
	require.Len(t, st.Quests, reg.QuestCount())

	for i, def := range reg.Generators() {
		assert.Equal(t, def.ID, st.Generators[i].GeneratorID)
		assert.Zero(t, st.Generators[i].Owned)
		assert.Equal(t, def.BaseCost, st.Generators[i].CurrentCost)
	}
	for _, q := range st.Quests {
		assert.False(t, q.Completed)
	}
	assert.Zero(t, st.Balance)
	assert.Equal(t, PrestigeState{}, st.Prestige)
}

func TestResetKeepsPrestigeAndDaily(t *testing.T) {
	reg := testRegistry(t)
	st := NewState("bob", reg)
	claimed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	st.Balance = 5000
	st.TotalManualActions = 321
	st.Depth = 77
	st.Generators[0].Owned = 12
	st.Generators[0].CurrentCost = 80
	st.Quests[0].Completed = true
	st.Prestige = PrestigeState{BonusCurrency: 40, PeakProduction: 900, Count: 2}
	st.Daily = DailyLogin{LastClaimAt: claimed, ConsecutiveDays: 3}

	st.Reset(reg)

	assert.Zero(t, st.Balance)
	assert.Zero(t, st.TotalManualActions)
	assert.Zero(t, st.Depth)
	assert.Zero(t, st.Generators[0].Owned)
	assert.Equal(t, 15.0, st.Generators[0].CurrentCost)
	assert.False(t, st.Quests[0].Completed)
	assert.Equal(t, PrestigeState{BonusCurrency: 40, PeakProduction: 0, Count: 2}, st.Prestige)
	assert.Equal(t, DailyLogin{LastClaimAt: claimed, ConsecutiveDays: 3}, st.Daily)
}

func TestCloneIsDeep(t *testing.T) {
	reg := testRegistry(t)
	st := NewState("carol", reg)

	c := st.Clone()
	c.Generators[0].Owned = 99
	c.Quests[0].Completed = true

	assert.Zero(t, st.Generators[0].Owned)
	assert.False(t, st.Quests[0].Completed)
}

func TestOwnershipLookups(t *testing.T) {
	reg := testRegistry(t)
	st := NewState("dave", reg)

	own := st.Ownership(2)
	require.NotNil(t, own)
	own.Owned = 4
	assert.Equal(t, 4, st.Generators.Owned(2))
	assert.Zero(t, st.Generators.Owned(42))
	assert.Nil(t, st.Ownership(42))
}

func TestFirstIncompleteQuest(t *testing.T) {
	reg := testRegistry(t)
	st := NewState("erin", reg)

	id, ok := st.FirstIncompleteQuest()
	require.True(t, ok)
	assert.Equal(t, 1, id)

	st.Quests[0].Completed = true
	st.Quests[1].Completed = true
	id, _ = st.FirstIncompleteQuest()
	assert.Equal(t, 3, id)
	assert.Equal(t, 2, st.CompletedQuests())

	for i := range st.Quests {
		st.Quests[i].Completed = true
	}
	_, ok = st.FirstIncompleteQuest()
	assert.False(t, ok)
}
