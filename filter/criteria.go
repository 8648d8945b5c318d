// Package filter implements user-defined filter criteria over items: an
// immutable boolean expression tree of leaf predicates combined by And, Or,
// and Not. Criteria are evaluated purely against an Item snapshot and are
// reusable across arbitrary items without reconstruction.
//
// Adding a predicate kind means adding a node type here and a case to the
// evaluator's type switch, a closed compile-time-checked extension.
package filter

import (
	"github.com/teranos/curio/item"
)

// Criteria is one node of the expression tree. The concrete node types in
// this package are the only implementations.
type Criteria interface {
	isCriteria()
}

// And matches when every child matches. An empty And matches everything.
type And struct {
	Children []Criteria
}

// Or matches when at least one child matches. An empty Or matches nothing.
type Or struct {
	Children []Criteria
}

// Not inverts its single child.
type Not struct {
	Child Criteria
}

// PriceRange matches items whose price falls inside [Min, Max], in minor
// units. Nil bounds are open ends. If Currency is set, the item's currency
// must match exactly. Items without a price never match.
type PriceRange struct {
	Min      *int64
	Max      *int64
	Currency string
}

// Keyword matches when the term appears in the item's title or description,
// case-insensitively. Blank terms never match.
type Keyword struct {
	Term string
}

// LocationIs matches the item's location, case-insensitively. Items without
// a location never match.
type LocationIs struct {
	Location string
}

// CategoryIs matches the item's category, case-insensitively. Items without
// a category never match.
type CategoryIs struct {
	Category string
}

// StateIn matches items whose lifecycle state is one of the given states.
type StateIn struct {
	States []item.State
}

func (And) isCriteria()        {}
func (Or) isCriteria()         {}
func (Not) isCriteria()        {}
func (PriceRange) isCriteria() {}
func (Keyword) isCriteria()    {}
func (LocationIs) isCriteria() {}
func (CategoryIs) isCriteria() {}
func (StateIn) isCriteria()    {}
