package cmds

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"winsync/internal/backends"
	"winsync/internal/ports"
	"winsync/internal/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage list configs kept in the config store (CONFIG_BACKEND)",
}

var configPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Copy every list of the config file into the config store",
	RunE: withStore(func(ctx context.Context, store ports.ConfigStore, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, l := range cfg.Lists {
			if err := store.PutListConfig(ctx, l); err != nil {
				return err
			}
			log.WithField("list", l.ID).Info("list config stored")
		}
		return nil
	}),
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the ids of stored list configs",
	RunE: withStore(func(ctx context.Context, store ports.ConfigStore, args []string) error {
		ids, err := store.ListConfigIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}),
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <list-id>",
	Short: "Remove a stored list config",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, store ports.ConfigStore, args []string) error {
		return store.DeleteListConfig(ctx, args[0])
	}),
}

func init() {
	configCmd.AddCommand(configPushCmd, configListCmd, configDeleteCmd)
}

func withStore(fn func(ctx context.Context, store ports.ConfigStore, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		factory := backends.NewFactory()
		defer func() {
			_ = factory.Close()
		}()
		store, err := factory.ConfigStoreFromEnv(cmd.Context())
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("%s selects no config store", backends.ConfigBackendEnvKey)
		}
		return fn(cmd.Context(), store, args)
	}
}

// loadLists combines the config file with the config store. Stored configs win, and a
// missing config file is fine when a store is configured.
func loadLists(ctx context.Context, factory *backends.Factory) (types.Config, error) {
	store, err := factory.ConfigStoreFromEnv(ctx)
	if err != nil {
		return types.Config{}, err
	}
	cfg, err := loadConfig()
	if err != nil && (store == nil || !errors.Is(err, fs.ErrNotExist)) {
		return types.Config{}, err
	}
	if store == nil {
		return cfg, nil
	}
	ids, err := store.ListConfigIDs(ctx)
	if err != nil {
		return types.Config{}, err
	}
	stored := make([]types.ListConfig, 0, len(ids))
	for _, id := range ids {
		l, err := store.GetListConfig(ctx, id)
		if err != nil {
			return types.Config{}, err
		}
		stored = append(stored, l)
	}
	merged := cfg.Merge(stored...)
	if err := merged.Validate(); err != nil {
		return types.Config{}, err
	}
	return merged, nil
}
