package registry

import (
	"errors"
	"fmt"
)

// Ownership answers how many units of a generator a session owns.
type Ownership interface {
	Owned(generatorID int) int
}

// Predicate is a quest completion condition over (balance, ownership).
type Predicate interface {
	Satisfied(balance float64, owned Ownership) bool
}

// PredicateFunc adapts a plain function to Predicate.
type PredicateFunc func(balance float64, owned Ownership) bool

func (f PredicateFunc) Satisfied(balance float64, owned Ownership) bool {
	return f(balance, owned)
}

// BalanceAtLeast holds once the current balance reaches Amount.
type BalanceAtLeast struct {
	Amount float64
}

func (p BalanceAtLeast) Satisfied(balance float64, _ Ownership) bool {
	return balance >= p.Amount
}

// GeneratorOwnedAtLeast holds once Count units of GeneratorID are owned.
type GeneratorOwnedAtLeast struct {
	GeneratorID int
	Count       int
}

func (p GeneratorOwnedAtLeast) Satisfied(_ float64, owned Ownership) bool {
	return owned.Owned(p.GeneratorID) >= p.Count
}

// AllOf holds when every nested predicate holds.
type AllOf []Predicate

func (p AllOf) Satisfied(balance float64, owned Ownership) bool {
	for _, inner := range p {
		if !inner.Satisfied(balance, owned) {
			return false
		}
	}
	return true
}

// conditionSpec is the catalog form of a predicate.
type conditionSpec struct {
	BalanceAtLeast *float64        `yaml:"balance_at_least"`
	Generator      int             `yaml:"generator"`
	OwnedAtLeast   *int            `yaml:"owned_at_least"`
	AllOf          []conditionSpec `yaml:"all_of"`
}

var errEmptyCondition = errors.New("condition has no clauses")

func (c conditionSpec) predicate() (Predicate, error) {
	var parts AllOf
	if c.BalanceAtLeast != nil {
		parts = append(parts, BalanceAtLeast{Amount: *c.BalanceAtLeast})
	}
	if c.OwnedAtLeast != nil {
		if c.Generator == 0 {
			return nil, fmt.Errorf("owned_at_least requires generator")
		}
		parts = append(parts, GeneratorOwnedAtLeast{GeneratorID: c.Generator, Count: *c.OwnedAtLeast})
	}
	for i, nested := range c.AllOf {
		p, err := nested.predicate()
		if err != nil {
			return nil, fmt.Errorf("all_of[%d]: %w", i, err)
		}
		parts = append(parts, p)
	}

	switch len(parts) {
	case 0:
		return nil, errEmptyCondition
	case 1:
		return parts[0], nil
	default:
		return parts, nil
	}
}

// referencedGenerators lists generator ids a predicate depends on.
func referencedGenerators(p Predicate) []int {
	switch v := p.(type) {
	case GeneratorOwnedAtLeast:
		return []int{v.GeneratorID}
	case AllOf:
		var ids []int
		for _, inner := range v {
			ids = append(ids, referencedGenerators(inner)...)
		}
		return ids
	default:
		return nil
	}
}
