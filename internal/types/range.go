package types

import "fmt"

// Range is a contiguous window [Start, Start+Length) into the logical dataset.
type Range struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

func NewRange(start, length int) (Range, error) {
	r := Range{Start: start, Length: length}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Between returns the range [start, end). An inverted pair yields an empty range at start.
func Between(start, end int) Range {
	if end < start {
		return Range{Start: start}
	}
	return Range{Start: start, Length: end - start}
}

func (r Range) Validate() error {
	if r.Start < 0 || r.Length < 0 {
		return Err(ErrInvalidRange, nil, "start=%d length=%d", r.Start, r.Length)
	}
	return nil
}

func (r Range) End() int { return r.Start + r.Length }

func (r Range) IsEmpty() bool { return r.Length == 0 }

func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End() }

// Intersects reports whether both ranges share at least one index.
func (r Range) Intersects(o Range) bool {
	return r.Start < o.End() && o.Start < r.End()
}

// RestrictTo clamps r into bounds. A range entirely outside bounds collapses to an
// empty range positioned at the nearest bound.
func (r Range) RestrictTo(bounds Range) Range {
	start := max(r.Start, bounds.Start)
	end := min(r.End(), bounds.End())
	if start > bounds.End() {
		start = bounds.End()
	}
	return Between(start, end)
}

// PartitionWith splits r into the parts before, inside and after o.
func (r Range) PartitionWith(o Range) (before, inside, after Range) {
	before = Between(r.Start, min(r.End(), o.Start))
	inside = Between(max(r.Start, o.Start), min(r.End(), o.End()))
	after = Between(max(r.Start, o.End()), r.End())
	return
}

func (r Range) String() string {
	return fmt.Sprintf("[%d..%d)", r.Start, r.End())
}
