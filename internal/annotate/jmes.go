package annotate

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmespath/go-jmespath"

	"winsync/internal/types"
)

// EvalAny returns the raw value selected by the JMESPath expression.
// It is safe to pass any decoded JSON (map[string]any, []any, etc.)
// It will return nil and no error if the expression does not match anything.
func EvalAny(expression string, payload any) (any, error) {
	v, err := jmespath.Search(expression, payload)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return v, nil
}

// Normalize turns an arbitrary item into plain decoded JSON so expressions can address its
// exported fields by their JSON names.
func Normalize(item types.Item) (any, error) {
	switch item.(type) {
	case map[string]any, []any, string, float64, bool, nil:
		return item, nil
	}
	b, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Expression compiles a JMESPath expression into a ValueProvider.
func Expression(expression string) (ValueProvider, error) {
	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("jmespath %q: %w", expression, err)
	}
	return func(item types.Item) (any, error) {
		data, err := Normalize(item)
		if err != nil {
			return nil, err
		}
		v, err := compiled.Search(data)
		if err != nil {
			return nil, fmt.Errorf("jmespath: %w", err)
		}
		return v, nil
	}, nil
}

// JMESPathProperty is an annotator writing a single expression-derived property.
func JMESPathProperty(name, expression string) (Annotator, error) {
	fn, err := Expression(expression)
	if err != nil {
		return nil, err
	}
	return NewProperties().With(name, fn), nil
}

// Match evaluates a boolean expression against an item. Non-boolean results do not match.
func Match(expression string, item types.Item) (bool, error) {
	data, err := Normalize(item)
	if err != nil {
		return false, err
	}
	v, err := EvalAny(expression, data)
	if err != nil {
		return false, err
	}
	matched, ok := v.(bool)
	return ok && matched, nil
}
