package redis

import (
	"context"

	"winsync/internal/types"
)

func (s *UnitTestSuite) TestConfigStore() {
	ctx := context.Background()
	store := NewConfigStore(s.cli)
	cfg := types.ListConfig{ID: "cfg-test", IDField: "sku", Query: types.QueryConfig{Sort: []string{"-price"}}}
	s.Require().NoError(store.PutListConfig(ctx, cfg))
	defer func() { _ = store.DeleteListConfig(ctx, cfg.ID) }()

	got, err := store.GetListConfig(ctx, cfg.ID)
	s.Require().NoError(err)
	s.Equal(cfg, got)

	ids, err := store.ListConfigIDs(ctx)
	s.NoError(err)
	s.Contains(ids, "cfg-test")

	s.NoError(store.DeleteListConfig(ctx, cfg.ID))
	_, err = store.GetListConfig(ctx, cfg.ID)
	s.ErrorIs(err, types.ErrNotFound)

	s.ErrorIs(store.PutListConfig(ctx, types.ListConfig{}), types.ErrInvalidConfig)
}
