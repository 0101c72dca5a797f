// Package items holds the JSON item handling shared by the storage backends.
package items

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"winsync/internal/annotate"
	"winsync/internal/types"
)

// Decode parses one stored JSON document.
func Decode(b []byte) (types.Item, error) {
	var item map[string]any
	if err := json.Unmarshal(b, &item); err != nil {
		return nil, err
	}
	return item, nil
}

func Encode(item types.Item) ([]byte, error) {
	return json.Marshal(item)
}

// ID returns the value of field as a string. Items that are not objects are identified by
// their default string form.
func ID(item types.Item, field string) string {
	data, err := annotate.Normalize(item)
	if err != nil {
		return fmt.Sprint(item)
	}
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Sprint(data)
	}
	return stringify(m[field])
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// CheckQuery reports whether Apply can run q.
func CheckQuery(q types.QueryConfig) error {
	if q.Filter != "" {
		if _, err := annotate.Expression(q.Filter); err != nil {
			return types.Err(types.ErrInvalidBackend, err, "filter")
		}
	}
	for _, field := range q.Sort {
		if strings.TrimPrefix(field, "-") == "" {
			return types.Err(types.ErrInvalidBackend, nil, "empty sort field")
		}
	}
	return nil
}

// Apply returns the items matching the JMESPath filter, ordered by sort. Sort entries are
// field names, "-" prefixed for descending order. Ties keep their original order.
func Apply(all []types.Item, filter string, sort []string) ([]types.Item, error) {
	type row struct {
		item types.Item
		doc  map[string]any
	}
	rows := make([]row, 0, len(all))
	for _, item := range all {
		if filter != "" {
			ok, err := annotate.Match(filter, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		r := row{item: item}
		if len(sort) > 0 {
			data, err := annotate.Normalize(item)
			if err != nil {
				return nil, err
			}
			r.doc, _ = data.(map[string]any)
		}
		rows = append(rows, r)
	}
	if len(sort) > 0 {
		slices.SortStableFunc(rows, func(a, b row) int {
			for _, field := range sort {
				desc := strings.HasPrefix(field, "-")
				field = strings.TrimPrefix(field, "-")
				c := Compare(a.doc[field], b.doc[field])
				if desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	out := make([]types.Item, len(rows))
	for i, r := range rows {
		out[i] = r.item
	}
	return out, nil
}

// Compare orders decoded JSON values: missing values first, then numbers, then strings.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case nil:
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}

// Window returns the part of all starting at offset, at most limit long.
func Window(all []types.Item, offset, limit int) []types.Item {
	if offset >= len(all) || limit <= 0 {
		return nil
	}
	end := min(offset+limit, len(all))
	return append([]types.Item(nil), all[offset:end]...)
}
