package index

import (
	"strings"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/filter"
)

// queryBuilder translates a filter criteria tree into a SQL WHERE clause
// with positional parameters. The translation mirrors filter.Evaluate:
// documents without a price never match a price range, and text matching
// is case-insensitive.
type queryBuilder struct {
	args []interface{}
}

// build returns the WHERE expression for a criteria tree. A nil tree
// matches every document.
func (qb *queryBuilder) build(c filter.Criteria) (string, error) {
	if c == nil {
		return "1=1", nil
	}

	switch node := c.(type) {
	case filter.And:
		return qb.buildJunction(node.Children, " AND ", "1=1")
	case filter.Or:
		return qb.buildJunction(node.Children, " OR ", "0=1")
	case filter.Not:
		inner, err := qb.build(node.Child)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case filter.PriceRange:
		return qb.buildPriceRange(node), nil
	case filter.Keyword:
		if node.Term == "" {
			return "0=1", nil
		}
		pattern := "%" + escapeLikePattern(node.Term) + "%"
		qb.args = append(qb.args, pattern, pattern)
		return `(title LIKE ? COLLATE NOCASE ESCAPE '\' OR description LIKE ? COLLATE NOCASE ESCAPE '\')`, nil
	case filter.LocationIs:
		qb.args = append(qb.args, node.Location)
		return "(location != '' AND location = ? COLLATE NOCASE)", nil
	case filter.CategoryIs:
		qb.args = append(qb.args, node.Category)
		return "(category != '' AND category = ? COLLATE NOCASE)", nil
	case filter.StateIn:
		if len(node.States) == 0 {
			return "0=1", nil
		}
		placeholders := make([]string, len(node.States))
		for i, state := range node.States {
			placeholders[i] = "?"
			qb.args = append(qb.args, string(state))
		}
		return "state IN (" + strings.Join(placeholders, ", ") + ")", nil
	default:
		return "", errors.Newf("unsupported criteria node %T", c)
	}
}

func (qb *queryBuilder) buildJunction(children []filter.Criteria, op, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	clauses := make([]string, len(children))
	for i, child := range children {
		clause, err := qb.build(child)
		if err != nil {
			return "", err
		}
		clauses[i] = clause
	}
	return "(" + strings.Join(clauses, op) + ")", nil
}

func (qb *queryBuilder) buildPriceRange(node filter.PriceRange) string {
	clauses := []string{"price_amount IS NOT NULL"}
	if node.Currency != "" {
		clauses = append(clauses, "price_currency = ?")
		qb.args = append(qb.args, node.Currency)
	}
	if node.Min != nil {
		clauses = append(clauses, "price_amount >= ?")
		qb.args = append(qb.args, *node.Min)
	}
	if node.Max != nil {
		clauses = append(clauses, "price_amount <= ?")
		qb.args = append(qb.args, *node.Max)
	}
	return "(" + strings.Join(clauses, " AND ") + ")"
}

// escapeLikePattern escapes special characters in LIKE patterns for the
// SQL ESCAPE clause.
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
