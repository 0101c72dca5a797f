package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"winsync/internal/types"
)

type countingProvider struct {
	n         int
	stable    bool
	sizeCalls int
	lastQuery types.Query
	err       error
	extra     int
}

func (p *countingProvider) Size(_ context.Context, q types.Query) (int, error) {
	p.sizeCalls++
	p.lastQuery = q
	return p.n, p.err
}

func (p *countingProvider) Fetch(_ context.Context, q types.Query) ([]types.Item, error) {
	p.lastQuery = q
	if p.err != nil {
		return nil, p.err
	}
	var out []types.Item
	for i := q.Offset; i < q.Offset+q.Limit+p.extra && i < p.n; i++ {
		out = append(out, i)
	}
	return out, nil
}

func (p *countingProvider) ItemID(item types.Item) string { return fmt.Sprint(item) }

func (p *countingProvider) Stable() bool { return p.stable }

func (s *UnitTestSuite) TestSizeIsNotCachedForLiveProviders() {
	p := &countingProvider{n: 10}
	src := New(p, types.QueryConfig{}, time.Minute)
	_, _ = src.Size(context.Background())
	_, _ = src.Size(context.Background())
	s.Equal(2, p.sizeCalls)
}

func (s *UnitTestSuite) TestSizeCachedForStableProviders() {
	p := &countingProvider{n: 10, stable: true}
	src := New(p, types.QueryConfig{}, time.Minute)
	n, err := src.Size(context.Background())
	s.NoError(err)
	s.Equal(10, n)
	_, _ = src.Size(context.Background())
	s.Equal(1, p.sizeCalls)

	src.SetFilter("x")
	_, _ = src.Size(context.Background())
	s.Equal(2, p.sizeCalls)
	s.Equal("x", p.lastQuery.Filter)
}

func (s *UnitTestSuite) TestFetch() {
	p := &countingProvider{n: 100, extra: 5}
	src := New(p, types.QueryConfig{Sort: []string{"-name"}}, 0)
	items, err := src.Fetch(context.Background(), types.Range{Start: 10, Length: 5})
	s.NoError(err)
	s.Equal([]types.Item{10, 11, 12, 13, 14}, items, "over-long results are truncated")
	s.Equal([]string{"-name"}, p.lastQuery.Sort)

	items, err = src.Fetch(context.Background(), types.Range{Start: 10})
	s.NoError(err)
	s.Empty(items)

	_, err = src.Fetch(context.Background(), types.Range{Start: -1, Length: 1})
	s.True(errors.Is(err, types.ErrInvalidRange))
}

func (s *UnitTestSuite) TestProviderFailure() {
	boom := errors.New("boom")
	p := &countingProvider{n: 10, err: boom}
	src := New(p, types.QueryConfig{}, 0)
	_, err := src.Size(context.Background())
	s.True(errors.Is(err, types.ErrProviderFailure))
	_, err = src.Fetch(context.Background(), types.Range{Length: 3})
	s.True(errors.Is(err, types.ErrProviderFailure))
	s.True(errors.Is(err, boom))
}
