package redis

import (
	"context"
	"errors"

	"winsync/internal/types"
)

func (s *UnitTestSuite) TestProviderPaging() {
	ctx := context.Background()
	p := NewProvider(s.cli, "redis-test", "")
	s.Require().NoError(p.Clear(ctx))
	defer func() { _ = p.Clear(ctx) }()

	var rows []types.Item
	for i := 0; i < 25; i++ {
		rows = append(rows, map[string]any{"id": i, "name": "row"})
	}
	s.NoError(p.Append(ctx, rows...))

	n, err := p.Size(ctx, types.Query{})
	s.NoError(err)
	s.Equal(25, n)

	got, err := p.Fetch(ctx, types.Query{Offset: 20, Limit: 10})
	s.NoError(err)
	s.Require().Len(got, 5)
	s.Equal("20", p.ItemID(got[0]))

	s.NoError(p.Set(ctx, 20, map[string]any{"id": 20, "name": "changed"}))
	got, err = p.Fetch(ctx, types.Query{Offset: 20, Limit: 1})
	s.NoError(err)
	s.Equal("changed", got[0].(map[string]any)["name"])

	_, err = p.Fetch(ctx, types.Query{Filter: "x", Limit: 1})
	s.True(errors.Is(err, types.ErrInvalidBackend))
}
