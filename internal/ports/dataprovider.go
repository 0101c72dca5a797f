package ports

import (
	"context"
	"winsync/internal/types"
)

// DataProvider is the pluggable item source behind a list. It is read-only from the
// engine's perspective and may be shared between lists only if it is safe for
// concurrent reads.
type DataProvider interface {
	// Size returns the number of items matching q.Filter. Offset and Limit are ignored.
	// The value MAY change between calls.
	Size(ctx context.Context, q types.Query) (int, error)

	// Fetch returns at most q.Limit items starting at q.Offset, in the provider's stable order.
	// Implementations MUST NOT load the whole dataset to answer a bounded query when the
	// backend can page.
	Fetch(ctx context.Context, q types.Query) ([]types.Item, error)

	// ItemID returns the provider identity of an item. Two items with the same ID are the
	// same logical item, whatever their position.
	ItemID(item types.Item) string
}

// StableProvider is implemented by providers whose results do not change while a list is
// open. Only those may have their size cached across cycles.
type StableProvider interface {
	Stable() bool
}

type ChangeKind int

const (
	RefreshAll ChangeKind = iota
	RefreshItem
)

type ChangeEvent struct {
	Kind ChangeKind
	Item types.Item // set for RefreshItem
}

// ChangeNotifier is implemented by live providers.
type ChangeNotifier interface {
	// OnChange registers fn and returns a function that unregisters it.
	OnChange(fn func(ChangeEvent)) (remove func())
}
