package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ownedMap map[int]int

func (m ownedMap) Owned(id int) int { return m[id] }

func TestDefaultCatalogLoads(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 8, reg.GeneratorCount())
	assert.Equal(t, 25, reg.QuestCount())
	assert.Len(t, reg.Milestones(), 7)
	assert.Len(t, reg.ClickMilestones(), 20)
	assert.Equal(t, 1.0, reg.BaseClickYield())

	miner, ok := reg.Generator(1)
	require.True(t, ok)
	assert.Equal(t, "Simple Miner", miner.Name)
	assert.Equal(t, 15.0, miner.BaseCost)
	assert.Equal(t, 1.0, miner.BaseRate)

	last := reg.ClickMilestones()[19]
	assert.Equal(t, int64(10_000_000_000), last.Clicks)
}

func TestQuestsAreOrderedByID(t *testing.T) {
	reg, err := New(Catalog{
		Generators: []GeneratorDefinition{{ID: 1, Name: "g", BaseCost: 1, BaseRate: 1}},
		Quests: []QuestDefinition{
			{ID: 3, Condition: BalanceAtLeast{Amount: 3}},
			{ID: 1, Condition: BalanceAtLeast{Amount: 1}},
			{ID: 2, Condition: BalanceAtLeast{Amount: 2}},
		},
	})
	require.NoError(t, err)

	var ids []int
	for _, q := range reg.Quests() {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestPredicatesFromCatalog(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	first, _ := reg.Quest(1)
	assert.False(t, first.Condition.Satisfied(0, ownedMap{}))
	assert.True(t, first.Condition.Satisfied(1, ownedMap{}))

	tenMiners, _ := reg.Quest(5)
	assert.False(t, tenMiners.Condition.Satisfied(1e12, ownedMap{1: 9}))
	assert.True(t, tenMiners.Condition.Satisfied(0, ownedMap{1: 10}))
	assert.Equal(t, 2.0, tenMiners.Reward)
}

func TestAllOfCondition(t *testing.T) {
	src := `
generators:
  - { id: 1, name: a, base_cost: 10, base_rate: 1 }
quests:
  - id: 1
    description: rich and busy
    condition:
      all_of:
        - { balance_at_least: 50 }
        - { generator: 1, owned_at_least: 2 }
`
	reg, err := Load(strings.NewReader(src))
	require.NoError(t, err)

	q, ok := reg.Quest(1)
	require.True(t, ok)
	assert.False(t, q.Condition.Satisfied(50, ownedMap{1: 1}))
	assert.False(t, q.Condition.Satisfied(49, ownedMap{1: 2}))
	assert.True(t, q.Condition.Satisfied(50, ownedMap{1: 2}))
}

func TestPredicateFunc(t *testing.T) {
	p := PredicateFunc(func(balance float64, owned Ownership) bool {
		return balance > 10 && owned.Owned(2) == 0
	})
	assert.True(t, p.Satisfied(11, ownedMap{}))
	assert.False(t, p.Satisfied(11, ownedMap{2: 1}))
}

func TestMilestoneLookups(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 1.0, reg.MilestoneMultiplier(0))
	assert.Equal(t, 1.0, reg.MilestoneMultiplier(9))
	assert.Equal(t, 2.0, reg.MilestoneMultiplier(10))
	assert.Equal(t, 3.0, reg.MilestoneMultiplier(49))
	assert.Equal(t, 100.0, reg.MilestoneMultiplier(5000))

	next, ok := reg.NextMilestone(10)
	require.True(t, ok)
	assert.Equal(t, 25, next.Owned)
	_, ok = reg.NextMilestone(1000)
	assert.False(t, ok)

	crossed, ok := reg.CrossedMilestone(9, 10)
	require.True(t, ok)
	assert.Equal(t, 10, crossed.Owned)

	crossed, ok = reg.CrossedMilestone(5, 30)
	require.True(t, ok)
	assert.Equal(t, 25, crossed.Owned, "highest crossed milestone wins")

	_, ok = reg.CrossedMilestone(10, 11)
	assert.False(t, ok)
}

func TestClickMilestoneLookups(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 1.0, reg.ClickYieldFor(0))
	assert.Equal(t, 1.0, reg.ClickYieldFor(99))
	assert.Equal(t, 2.0, reg.ClickYieldFor(100))
	assert.Equal(t, 25000.0, reg.ClickYieldFor(20_000_000_000))

	next, ok := reg.NextClickMilestone(99)
	require.True(t, ok)
	assert.Equal(t, int64(100), next.Clicks)
	_, ok = reg.NextClickMilestone(10_000_000_000)
	assert.False(t, ok)
}

func TestNewRejectsInvalidCatalogs(t *testing.T) {
	gen := GeneratorDefinition{ID: 1, Name: "g", BaseCost: 5, BaseRate: 1}

	cases := map[string]Catalog{
		"no generators": {},
		"duplicate generator": {Generators: []GeneratorDefinition{gen, gen}},
		"zero cost": {Generators: []GeneratorDefinition{{ID: 1, BaseCost: 0, BaseRate: 1}}},
		"duplicate quest": {
			Generators: []GeneratorDefinition{gen},
			Quests: []QuestDefinition{
				{ID: 1, Condition: BalanceAtLeast{1}},
				{ID: 1, Condition: BalanceAtLeast{2}},
			},
		},
		"unknown generator in quest": {
			Generators: []GeneratorDefinition{gen},
			Quests:     []QuestDefinition{{ID: 1, Condition: GeneratorOwnedAtLeast{GeneratorID: 9, Count: 1}}},
		},
		"quest without condition": {
			Generators: []GeneratorDefinition{gen},
			Quests:     []QuestDefinition{{ID: 1}},
		},
		"milestones out of order": {
			Generators: []GeneratorDefinition{gen},
			Milestones: []MilestoneRule{{Owned: 25, Multiplier: 3}, {Owned: 10, Multiplier: 2}},
		},
		"click milestones out of order": {
			Generators:      []GeneratorDefinition{gen},
			ClickMilestones: []ClickMilestoneRule{{Clicks: 100, Yield: 2}, {Clicks: 100, Yield: 3}},
		},
	}

	for name, cat := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(cat)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCatalog))
		})
	}
}

func TestLoadRejectsUnknownKeysAndEmptyConditions(t *testing.T) {
	_, err := Load(strings.NewReader("generators: []\nbogus: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	src := `
generators:
  - { id: 1, name: a, base_cost: 10, base_rate: 1 }
quests:
  - { id: 1, description: nothing, condition: {} }
`
	_, err = Load(strings.NewReader(src))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestAccessorsReturnCopies(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	gens := reg.Generators()
	gens[0].BaseCost = 1
	again, _ := reg.Generator(gens[0].ID)
	assert.Equal(t, 15.0, again.BaseCost)
}
