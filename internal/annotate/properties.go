package annotate

import (
	"fmt"

	"winsync/internal/types"
)

// ValueProvider computes one property of an item.
type ValueProvider func(item types.Item) (any, error)

type property struct {
	name string
	fn   ValueProvider
}

// Properties writes a fixed, ordered set of named properties.
type Properties struct {
	props []property
}

func NewProperties() *Properties {
	return &Properties{}
}

// With appends a property. A later property with the same name overwrites the earlier one's
// value in the representation.
func (p *Properties) With(name string, fn ValueProvider) *Properties {
	p.props = append(p.props, property{name: name, fn: fn})
	return p
}

func (p *Properties) Names() []string {
	out := make([]string, len(p.props))
	for i, pr := range p.props {
		out[i] = pr.name
	}
	return out
}

func (p *Properties) Annotate(item types.Item, rep types.Representation) error {
	for _, pr := range p.props {
		v, err := pr.fn(item)
		if err != nil {
			return fmt.Errorf("property %s: %w", pr.name, err)
		}
		rep[pr.name] = v
	}
	return nil
}

// Label is the default value provider: the item's default string form.
func Label(item types.Item) (any, error) {
	return fmt.Sprint(item), nil
}
