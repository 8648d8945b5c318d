package filter

import (
	"strings"

	"github.com/teranos/curio/item"
)

// Evaluate reports whether the item matches the criteria. It is total:
// it never fails, and absent optional item fields make the enclosing leaf
// predicate false rather than erroring. And/Or short-circuit left to right;
// predicates are pure, so this affects cost only.
//
// A nil criteria matches everything, mirroring "no filter configured".
func Evaluate(c Criteria, it *item.Item) bool {
	if c == nil || it == nil {
		return c == nil && it != nil
	}

	switch node := c.(type) {
	case And:
		for _, child := range node.Children {
			if !Evaluate(child, it) {
				return false
			}
		}
		return true

	case Or:
		for _, child := range node.Children {
			if Evaluate(child, it) {
				return true
			}
		}
		return false

	case Not:
		return !Evaluate(node.Child, it)

	case PriceRange:
		if it.Price == nil {
			return false
		}
		if node.Currency != "" && !strings.EqualFold(node.Currency, it.Price.Currency) {
			return false
		}
		if node.Min != nil && it.Price.Amount < *node.Min {
			return false
		}
		if node.Max != nil && it.Price.Amount > *node.Max {
			return false
		}
		return true

	case Keyword:
		if node.Term == "" {
			return false
		}
		term := strings.ToLower(node.Term)
		return strings.Contains(strings.ToLower(it.Title), term) ||
			strings.Contains(strings.ToLower(it.Description), term)

	case LocationIs:
		return it.Location != "" && strings.EqualFold(node.Location, it.Location)

	case CategoryIs:
		return it.Category != "" && strings.EqualFold(node.Category, it.Category)

	case StateIn:
		for _, s := range node.States {
			if it.State == s {
				return true
			}
		}
		return false

	default:
		// Unknown node kinds are non-matching, keeping Evaluate total even
		// if a caller smuggles in a foreign Criteria implementation.
		return false
	}
}
