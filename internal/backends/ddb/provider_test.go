package ddb

import (
	"context"
	"errors"

	"winsync/internal/types"
)

func (s *UnitTestSuite) TestProvider() {
	ctx := context.Background()
	p, err := NewProvider(ctx, "winsync_test", s.cli, "ddb-test", "")
	s.Require().NoError(err)

	var rows []types.Item
	for i := 0; i < 60; i++ {
		rows = append(rows, map[string]any{"id": i})
	}
	s.Require().NoError(p.PutItems(ctx, 0, rows))

	n, err := p.Size(ctx, types.Query{})
	s.NoError(err)
	s.Equal(60, n)

	got, err := p.Fetch(ctx, types.Query{Offset: 50, Limit: 20})
	s.NoError(err)
	s.Require().Len(got, 10)
	s.Equal("50", p.ItemID(got[0]))
}

func (s *UnitTestSuite) TestFilterRejected() {
	p := &Provider{table: "t", cli: s.cli, listID: "x", idField: "id"}
	_, err := p.Size(context.Background(), types.Query{Sort: []string{"name"}})
	s.True(errors.Is(err, types.ErrInvalidBackend))
}
