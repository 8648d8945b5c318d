package filter

import (
	"gopkg.in/yaml.v3"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/item"
)

// ParseYAML decodes a filter criteria tree from YAML. Each node is a
// mapping with exactly one key:
//
//	all:                     # And
//	  - keyword: bike
//	  - price: {min: 1000, max: 20000, currency: EUR}
//	  - any:                 # Or
//	      - category: cycling
//	      - location: Berlin
//	  - not:
//	      state: [removed]
func ParseYAML(data []byte) (Criteria, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "parse filter yaml")
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("empty filter document")
	}
	return decodeNode(root.Content[0])
}

type priceRangeYAML struct {
	Min      *int64 `yaml:"min"`
	Max      *int64 `yaml:"max"`
	Currency string `yaml:"currency"`
}

func decodeNode(n *yaml.Node) (Criteria, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, errors.Newf("filter node at line %d must be a mapping with exactly one key", n.Line)
	}
	key := n.Content[0].Value
	val := n.Content[1]

	switch key {
	case "all":
		children, err := decodeChildren(val)
		if err != nil {
			return nil, err
		}
		return And{Children: children}, nil

	case "any":
		children, err := decodeChildren(val)
		if err != nil {
			return nil, err
		}
		return Or{Children: children}, nil

	case "not":
		child, err := decodeNode(val)
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil

	case "price":
		var pr priceRangeYAML
		if err := val.Decode(&pr); err != nil {
			return nil, errors.Wrapf(err, "price range at line %d", val.Line)
		}
		return PriceRange{Min: pr.Min, Max: pr.Max, Currency: pr.Currency}, nil

	case "keyword":
		var term string
		if err := val.Decode(&term); err != nil {
			return nil, errors.Wrapf(err, "keyword at line %d", val.Line)
		}
		return Keyword{Term: term}, nil

	case "location":
		var loc string
		if err := val.Decode(&loc); err != nil {
			return nil, errors.Wrapf(err, "location at line %d", val.Line)
		}
		return LocationIs{Location: loc}, nil

	case "category":
		var cat string
		if err := val.Decode(&cat); err != nil {
			return nil, errors.Wrapf(err, "category at line %d", val.Line)
		}
		return CategoryIs{Category: cat}, nil

	case "state":
		var raw []string
		if err := val.Decode(&raw); err != nil {
			return nil, errors.Wrapf(err, "state list at line %d", val.Line)
		}
		states := make([]item.State, 0, len(raw))
		for _, s := range raw {
			if !item.IsValidState(s) {
				return nil, errors.Newf("unknown item state %q at line %d", s, val.Line)
			}
			states = append(states, item.State(s))
		}
		return StateIn{States: states}, nil

	default:
		return nil, errors.Newf("unknown filter key %q at line %d", key, n.Line)
	}
}

func decodeChildren(n *yaml.Node) ([]Criteria, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, errors.Newf("expected a sequence of filter nodes at line %d", n.Line)
	}
	children := make([]Criteria, 0, len(n.Content))
	for _, c := range n.Content {
		child, err := decodeNode(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}
