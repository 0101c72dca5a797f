package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"winsync/internal/ports"
	"winsync/internal/types"
)

const (
	configKeyNameTemplate = "_winsync_cfg_%s"
)

type ConfigStore struct {
	cli *redis.Client
}

func NewConfigStore(cli *redis.Client) *ConfigStore {
	return &ConfigStore{cli: cli}
}

func (s *ConfigStore) GetListConfig(ctx context.Context, id string) (types.ListConfig, error) {
	out := s.cli.Get(ctx, getConfigKey(id))
	if errors.Is(out.Err(), redis.Nil) {
		return types.ListConfig{}, types.Err(types.ErrNotFound, nil, "list config %q", id)
	}
	if out.Err() != nil {
		return types.ListConfig{}, out.Err()
	}
	var cfg types.ListConfig
	if err := json.Unmarshal([]byte(out.Val()), &cfg); err != nil {
		return types.ListConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) ListConfigIDs(ctx context.Context) ([]string, error) {
	prefixLen := len(getConfigKey(""))
	var ids []string
	iter := s.cli.Scan(ctx, 0, getConfigKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		if k := iter.Val(); len(k) > prefixLen {
			ids = append(ids, k[prefixLen:])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *ConfigStore) PutListConfig(ctx context.Context, cfg types.ListConfig) error {
	if err := cfg.Validate(); err != nil {
		return types.Err(types.ErrInvalidConfig, err, "list %s", cfg.ID)
	}
	out, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.cli.Set(ctx, getConfigKey(cfg.ID), string(out), 0).Err()
}

func (s *ConfigStore) DeleteListConfig(ctx context.Context, id string) error {
	return s.cli.Del(ctx, getConfigKey(id)).Err()
}

func getConfigKey(id string) string {
	return fmt.Sprintf(configKeyNameTemplate, id)
}

var _ ports.ConfigStore = (*ConfigStore)(nil)
