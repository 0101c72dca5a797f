package types

import (
	"fmt"

	"github.com/goccy/go-json"
)

type OpCode string

const (
	OpUpdateSize OpCode = "updateSize"
	OpSet        OpCode = "set"
	OpClear      OpCode = "clear"
)

// Operation is one remote call. On the wire it is the array [opcode, args...]:
//
//	["updateSize", n]
//	["set", start, [rep, ...]]
//	["clear", start, length]
type Operation struct {
	Op     OpCode
	Start  int
	Length int
	Size   int
	Items  []Representation
}

func UpdateSize(n int) Operation { return Operation{Op: OpUpdateSize, Size: n} }

func Set(start int, items []Representation) Operation {
	return Operation{Op: OpSet, Start: start, Length: len(items), Items: items}
}

func Clear(start, length int) Operation {
	return Operation{Op: OpClear, Start: start, Length: length}
}

// Args returns the positional arguments that follow the opcode.
func (o Operation) Args() []any {
	switch o.Op {
	case OpUpdateSize:
		return []any{o.Size}
	case OpSet:
		items := o.Items
		if items == nil {
			items = []Representation{}
		}
		return []any{o.Start, items}
	case OpClear:
		return []any{o.Start, o.Length}
	}
	return nil
}

func (o Operation) MarshalJSON() ([]byte, error) {
	switch o.Op {
	case OpUpdateSize, OpSet, OpClear:
	default:
		return nil, fmt.Errorf("unknown opcode %q", o.Op)
	}
	return json.Marshal(append([]any{o.Op}, o.Args()...))
}

func (o *Operation) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty operation")
	}
	var op OpCode
	if err := json.Unmarshal(raw[0], &op); err != nil {
		return err
	}
	want := map[OpCode]int{OpUpdateSize: 2, OpSet: 3, OpClear: 3}[op]
	if want == 0 {
		return fmt.Errorf("unknown opcode %q", op)
	}
	if len(raw) != want {
		return fmt.Errorf("%s: expected %d elements, got %d", op, want, len(raw))
	}
	*o = Operation{Op: op}
	switch op {
	case OpUpdateSize:
		return json.Unmarshal(raw[1], &o.Size)
	case OpSet:
		if err := json.Unmarshal(raw[1], &o.Start); err != nil {
			return err
		}
		if err := json.Unmarshal(raw[2], &o.Items); err != nil {
			return err
		}
		o.Length = len(o.Items)
	case OpClear:
		if err := json.Unmarshal(raw[1], &o.Start); err != nil {
			return err
		}
		return json.Unmarshal(raw[2], &o.Length)
	}
	return nil
}

// Batch is the atomic unit handed to a transport: every operation of one cycle, in order.
type Batch struct {
	ListID   string      `json:"listId"`
	UpdateID int64       `json:"updateId"`
	Ops      []Operation `json:"ops"`
}
