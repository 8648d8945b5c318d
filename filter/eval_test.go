package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/curio/item"
)

func i64(v int64) *int64 { return &v }

func sampleItem() *item.Item {
	return &item.Item{
		ID:          item.ComputeID("acme", "123"),
		Title:       "Vintage Racing Bike",
		Description: "Steel frame, 10-speed",
		Price:       &item.Price{Amount: 15000, Currency: "EUR"},
		Location:    "Berlin",
		Category:    "cycling",
		State:       item.StateActive,
	}
}

func TestEvaluateLeafPredicates(t *testing.T) {
	it := sampleItem()

	tests := []struct {
		name string
		c    Criteria
		want bool
	}{
		{"keyword in title", Keyword{Term: "bike"}, true},
		{"keyword in description", Keyword{Term: "steel"}, true},
		{"keyword case-insensitive", Keyword{Term: "VINTAGE"}, true},
		{"keyword absent", Keyword{Term: "motorcycle"}, false},
		{"keyword blank never matches", Keyword{}, false},
		{"price in range", PriceRange{Min: i64(10000), Max: i64(20000)}, true},
		{"price below min", PriceRange{Min: i64(16000)}, false},
		{"price above max", PriceRange{Max: i64(14000)}, false},
		{"price currency mismatch", PriceRange{Min: i64(1), Currency: "USD"}, false},
		{"price open ends", PriceRange{}, true},
		{"location match", LocationIs{Location: "berlin"}, true},
		{"location mismatch", LocationIs{Location: "Hamburg"}, false},
		{"category match", CategoryIs{Category: "Cycling"}, true},
		{"state match", StateIn{States: []item.State{item.StateActive}}, true},
		{"state mismatch", StateIn{States: []item.State{item.StateRemoved}}, false},
		{"state empty never matches", StateIn{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.c, it))
		})
	}
}

func TestEvaluateTotalOnMissingFields(t *testing.T) {
	// A bare item with no optional fields must evaluate false, never panic.
	bare := &item.Item{Title: "Bike"}

	assert.False(t, Evaluate(PriceRange{Min: i64(1)}, bare))
	assert.False(t, Evaluate(LocationIs{Location: "Berlin"}, bare))
	assert.False(t, Evaluate(CategoryIs{Category: "cycling"}, bare))
	assert.True(t, Evaluate(Not{Child: PriceRange{Min: i64(1)}}, bare))
}

func TestEvaluateCombinators(t *testing.T) {
	it := sampleItem()

	c := And{Children: []Criteria{
		Keyword{Term: "bike"},
		PriceRange{Max: i64(20000)},
		Or{Children: []Criteria{
			LocationIs{Location: "Hamburg"},
			CategoryIs{Category: "cycling"},
		}},
		Not{Child: StateIn{States: []item.State{item.StateRemoved}}},
	}}
	assert.True(t, Evaluate(c, it))

	// Flip one branch and the And fails.
	it.State = item.StateRemoved
	assert.False(t, Evaluate(c, it))
}

func TestEvaluateEmptyCombinators(t *testing.T) {
	it := sampleItem()
	assert.True(t, Evaluate(And{}, it), "empty conjunction is vacuously true")
	assert.False(t, Evaluate(Or{}, it), "empty disjunction matches nothing")
}

func TestEvaluateNilCriteriaMatchesAll(t *testing.T) {
	assert.True(t, Evaluate(nil, sampleItem()))
}

func TestParseYAML(t *testing.T) {
	src := `
all:
  - keyword: bike
  - price: {min: 1000, max: 20000, currency: EUR}
  - any:
      - category: cycling
      - location: Berlin
  - not:
      state: [removed]
`
	c, err := ParseYAML([]byte(src))
	require.NoError(t, err)

	assert.True(t, Evaluate(c, sampleItem()))

	removed := sampleItem()
	removed.State = item.StateRemoved
	assert.False(t, Evaluate(c, removed))
}

func TestParseYAMLRejectsUnknownKey(t *testing.T) {
	_, err := ParseYAML([]byte("color: red"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filter key")
}

func TestParseYAMLRejectsUnknownState(t *testing.T) {
	_, err := ParseYAML([]byte("state: [vanished]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown item state")
}
