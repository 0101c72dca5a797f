package datasource

import (
	"context"
	"strings"
	"sync"
	"time"

	"winsync/internal/ports"
	"winsync/internal/types"
)

// Source is the engine's only view of item storage. It carries the list's filter and sort
// and hands them to the provider with every call.
type Source struct {
	mu       sync.RWMutex
	provider ports.DataProvider
	filter   string
	sort     []string

	sizeTTL time.Duration
	sizes   *TTL[string, int]
}

func New(provider ports.DataProvider, q types.QueryConfig, sizeTTL time.Duration) *Source {
	return &Source{
		provider: provider,
		filter:   q.Filter,
		sort:     append([]string(nil), q.Sort...),
		sizeTTL:  sizeTTL,
		sizes:    NewTTL[string, int](),
	}
}

func (s *Source) Provider() ports.DataProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

// SetProvider swaps the provider and drops anything cached for the old one.
func (s *Source) SetProvider(p ports.DataProvider) {
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
	s.Invalidate()
}

func (s *Source) SetFilter(filter string) {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
	s.Invalidate()
}

func (s *Source) SetSort(sort []string) {
	s.mu.Lock()
	s.sort = append([]string(nil), sort...)
	s.mu.Unlock()
	s.Invalidate()
}

func (s *Source) Invalidate() {
	s.sizes.Purge()
}

func (s *Source) query(offset, limit int) (ports.DataProvider, types.Query) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider, types.Query{
		Offset: offset,
		Limit:  limit,
		Filter: s.filter,
		Sort:   append([]string(nil), s.sort...),
	}
}

func (s *Source) cacheable(p ports.DataProvider) bool {
	if s.sizeTTL <= 0 {
		return false
	}
	st, ok := p.(ports.StableProvider)
	return ok && st.Stable()
}

// Size asks the provider for the current item count. Only stable providers are cached.
func (s *Source) Size(ctx context.Context) (int, error) {
	p, q := s.query(0, 0)
	cacheKey := q.Filter + "\x00" + strings.Join(q.Sort, ",")
	useCache := s.cacheable(p)
	if useCache {
		if n, ok := s.sizes.Get(cacheKey); ok {
			return n, nil
		}
	}
	n, err := p.Size(ctx, q)
	if err != nil {
		return 0, types.Err(types.ErrProviderFailure, err, "size")
	}
	if n < 0 {
		return 0, types.Err(types.ErrProviderFailure, nil, "size: provider returned %d", n)
	}
	if useCache {
		s.sizes.Set(cacheKey, n, s.sizeTTL)
	}
	return n, nil
}

// Fetch returns the items of r in order. It never returns more than r.Length items.
func (s *Source) Fetch(ctx context.Context, r types.Range) ([]types.Item, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.IsEmpty() {
		return nil, nil
	}
	p, q := s.query(r.Start, r.Length)
	items, err := p.Fetch(ctx, q)
	if err != nil {
		return nil, types.Err(types.ErrProviderFailure, err, "fetch %s", r)
	}
	if len(items) > r.Length {
		items = items[:r.Length]
	}
	return items, nil
}

func (s *Source) ItemID(item types.Item) string {
	return s.Provider().ItemID(item)
}
