// Package registry is the static catalog of generators, quests and milestones.
// A Registry is built once at process start and is read-only afterwards, so
// it can be shared by every session without locking.
package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrInvalidCatalog wraps every validation failure from New/Load.
var ErrInvalidCatalog = errors.New("invalid definition catalog")

// GeneratorDefinition describes one purchasable producer.
type GeneratorDefinition struct {
	ID       int     `yaml:"id" json:"id"`
	Name     string  `yaml:"name" json:"name"`
	BaseCost float64 `yaml:"base_cost" json:"baseCost"`
	BaseRate float64 `yaml:"base_rate" json:"baseRate"`
}

// MilestoneRule multiplies a generator's output once Owned units are held.
type MilestoneRule struct {
	Owned      int     `yaml:"owned" json:"owned"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// ClickMilestoneRule sets the per-action yield once Clicks manual actions were taken.
type ClickMilestoneRule struct {
	Clicks int64   `yaml:"clicks" json:"clicks"`
	Yield  float64 `yaml:"yield" json:"yield"`
}

// QuestDefinition is one achievement with an optional prestige-currency reward.
type QuestDefinition struct {
	ID          int
	Description string
	Condition   Predicate
	Reward      float64
}

// Registry is the immutable definition catalog.
type Registry struct {
	baseClickYield  float64
	generators      []GeneratorDefinition
	generatorIndex  map[int]int
	quests          []QuestDefinition
	questIndex      map[int]int
	milestones      []MilestoneRule
	clickMilestones []ClickMilestoneRule
}

// Catalog is the raw input to New.
type Catalog struct {
	BaseClickYield  float64
	Generators      []GeneratorDefinition
	Quests          []QuestDefinition
	Milestones      []MilestoneRule
	ClickMilestones []ClickMilestoneRule
}

type catalogFile struct {
	BaseClickYield  float64               `yaml:"base_click_yield"`
	Generators      []GeneratorDefinition `yaml:"generators"`
	Milestones      []MilestoneRule       `yaml:"milestones"`
	ClickMilestones []ClickMilestoneRule  `yaml:"click_milestones"`
	Quests          []struct {
		ID          int           `yaml:"id"`
		Description string        `yaml:"description"`
		Reward      float64       `yaml:"reward"`
		Condition   conditionSpec `yaml:"condition"`
	} `yaml:"quests"`
}

// Default returns the registry built from the embedded catalog.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a YAML catalog.
func Load(r io.Reader) (*Registry, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}

	cat := Catalog{
		BaseClickYield:  file.BaseClickYield,
		Generators:      file.Generators,
		Milestones:      file.Milestones,
		ClickMilestones: file.ClickMilestones,
	}
	for _, q := range file.Quests {
		pred, err := q.Condition.predicate()
		if err != nil {
			return nil, fmt.Errorf("%w: quest %d: %v", ErrInvalidCatalog, q.ID, err)
		}
		cat.Quests = append(cat.Quests, QuestDefinition{
			ID:          q.ID,
			Description: q.Description,
			Condition:   pred,
			Reward:      q.Reward,
		})
	}
	return New(cat)
}

// New validates a catalog and freezes it into a Registry.
func New(cat Catalog) (*Registry, error) {
	if cat.BaseClickYield == 0 {
		cat.BaseClickYield = 1
	}
	if cat.BaseClickYield < 0 {
		return nil, fmt.Errorf("%w: base click yield must be positive", ErrInvalidCatalog)
	}
	if len(cat.Generators) == 0 {
		return nil, fmt.Errorf("%w: no generators", ErrInvalidCatalog)
	}

	r := &Registry{
		baseClickYield:  cat.BaseClickYield,
		generators:      append([]GeneratorDefinition(nil), cat.Generators...),
		generatorIndex:  make(map[int]int, len(cat.Generators)),
		quests:          append([]QuestDefinition(nil), cat.Quests...),
		questIndex:      make(map[int]int, len(cat.Quests)),
		milestones:      append([]MilestoneRule(nil), cat.Milestones...),
		clickMilestones: append([]ClickMilestoneRule(nil), cat.ClickMilestones...),
	}

	for i, g := range r.generators {
		if _, dup := r.generatorIndex[g.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate generator id %d", ErrInvalidCatalog, g.ID)
		}
		if g.BaseCost <= 0 || g.BaseRate < 0 {
			return nil, fmt.Errorf("%w: generator %d needs positive cost and non-negative rate", ErrInvalidCatalog, g.ID)
		}
		r.generatorIndex[g.ID] = i
	}

	sort.SliceStable(r.quests, func(i, j int) bool { return r.quests[i].ID < r.quests[j].ID })
	for i, q := range r.quests {
		if _, dup := r.questIndex[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate quest id %d", ErrInvalidCatalog, q.ID)
		}
		if q.Condition == nil {
			return nil, fmt.Errorf("%w: quest %d has no condition", ErrInvalidCatalog, q.ID)
		}
		if q.Reward < 0 {
			return nil, fmt.Errorf("%w: quest %d has a negative reward", ErrInvalidCatalog, q.ID)
		}
		for _, gid := range referencedGenerators(q.Condition) {
			if _, ok := r.generatorIndex[gid]; !ok {
				return nil, fmt.Errorf("%w: quest %d references unknown generator %d", ErrInvalidCatalog, q.ID, gid)
			}
		}
		r.questIndex[q.ID] = i
	}

	for i := 1; i < len(r.milestones); i++ {
		if r.milestones[i].Owned <= r.milestones[i-1].Owned {
			return nil, fmt.Errorf("%w: milestones must ascend by owned count", ErrInvalidCatalog)
		}
	}
	for i := 1; i < len(r.clickMilestones); i++ {
		if r.clickMilestones[i].Clicks <= r.clickMilestones[i-1].Clicks {
			return nil, fmt.Errorf("%w: click milestones must ascend by clicks", ErrInvalidCatalog)
		}
	}

	return r, nil
}

func (r *Registry) BaseClickYield() float64 { return r.baseClickYield }

// Generators returns the generator definitions in catalog order.
func (r *Registry) Generators() []GeneratorDefinition {
	return append([]GeneratorDefinition(nil), r.generators...)
}

// Quests returns quest definitions ascending by id.
func (r *Registry) Quests() []QuestDefinition {
	return append([]QuestDefinition(nil), r.quests...)
}

func (r *Registry) Milestones() []MilestoneRule {
	return append([]MilestoneRule(nil), r.milestones...)
}

func (r *Registry) ClickMilestones() []ClickMilestoneRule {
	return append([]ClickMilestoneRule(nil), r.clickMilestones...)
}

func (r *Registry) GeneratorCount() int { return len(r.generators) }
func (r *Registry) QuestCount() int     { return len(r.quests) }

// Generator looks a definition up by id.
func (r *Registry) Generator(id int) (GeneratorDefinition, bool) {
	i, ok := r.generatorIndex[id]
	if !ok {
		return GeneratorDefinition{}, false
	}
	return r.generators[i], true
}

// GeneratorIndex is the position of a generator in catalog order.
func (r *Registry) GeneratorIndex(id int) (int, bool) {
	i, ok := r.generatorIndex[id]
	return i, ok
}

func (r *Registry) Quest(id int) (QuestDefinition, bool) {
	i, ok := r.questIndex[id]
	if !ok {
		return QuestDefinition{}, false
	}
	return r.quests[i], true
}

// MilestoneMultiplier is the multiplier of the highest milestone not above owned, or 1.
func (r *Registry) MilestoneMultiplier(owned int) float64 {
	for i := len(r.milestones) - 1; i >= 0; i-- {
		if owned >= r.milestones[i].Owned {
			return r.milestones[i].Multiplier
		}
	}
	return 1
}

// NextMilestone is the first milestone strictly above owned.
func (r *Registry) NextMilestone(owned int) (MilestoneRule, bool) {
	for _, m := range r.milestones {
		if owned < m.Owned {
			return m, true
		}
	}
	return MilestoneRule{}, false
}

// CrossedMilestone reports the highest milestone reached by going from before to after owned units.
func (r *Registry) CrossedMilestone(before, after int) (MilestoneRule, bool) {
	for i := len(r.milestones) - 1; i >= 0; i-- {
		m := r.milestones[i]
		if before < m.Owned && m.Owned <= after {
			return m, true
		}
	}
	return MilestoneRule{}, false
}

// ClickYieldFor is the base per-action yield after clicks manual actions.
func (r *Registry) ClickYieldFor(clicks int64) float64 {
	for i := len(r.clickMilestones) - 1; i >= 0; i-- {
		if clicks >= r.clickMilestones[i].Clicks {
			return r.clickMilestones[i].Yield
		}
	}
	return r.baseClickYield
}

// NextClickMilestone is the first click milestone strictly above clicks.
func (r *Registry) NextClickMilestone(clicks int64) (ClickMilestoneRule, bool) {
	for _, m := range r.clickMilestones {
		if clicks < m.Clicks {
			return m, true
		}
	}
	return ClickMilestoneRule{}, false
}
