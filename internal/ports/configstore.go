package ports

import (
	"context"

	"winsync/internal/types"
)

// ConfigStore keeps list configurations outside the config file so lists can be added or
// changed without redeploying. Get returns types.ErrNotFound for unknown ids.
type ConfigStore interface {
	GetListConfig(ctx context.Context, id string) (types.ListConfig, error)
	ListConfigIDs(ctx context.Context) ([]string, error)
	PutListConfig(ctx context.Context, cfg types.ListConfig) error
	DeleteListConfig(ctx context.Context, id string) error
}
