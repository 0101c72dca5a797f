package keys

import (
	"strconv"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"winsync/internal/types"
)

// Generator mints fresh keys. A generator MUST never return the same key twice.
type Generator interface {
	Next() string
}

// CounterGenerator yields "1", "2", ... .
type CounterGenerator struct {
	n atomic.Uint64
}

func (g *CounterGenerator) Next() string {
	return strconv.FormatUint(g.n.Add(1), 10)
}

// ULIDGenerator yields time-ordered ULIDs.
type ULIDGenerator struct{}

func (ULIDGenerator) Next() string {
	return ulid.Make().String()
}

// GeneratorFor returns the generator matching a config key strategy.
func GeneratorFor(strategy string) Generator {
	if strategy == types.KeyStrategyULID {
		return ULIDGenerator{}
	}
	return &CounterGenerator{}
}
