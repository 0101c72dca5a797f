package cmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"winsync/internal/api"
	"winsync/internal/backends"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve configured lists over HTTP and websockets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		factory := backends.NewFactory()
		defer func() {
			if err := factory.Close(); err != nil {
				log.WithError(err).Warn("closing backends")
			}
		}()
		cfg, err := loadLists(ctx, factory)
		if err != nil {
			return err
		}
		publisher, err := factory.PublisherFromEnv(ctx)
		if err != nil {
			return err
		}
		open := api.ConfigOpener(cfg, factory)

		lists, err := api.SharedLists(ctx, cfg, open, publisher)
		if err != nil {
			return err
		}
		defer lists.Close()
		factory.WatchFiles(ctx)

		stop, done := api.RunServerInterruptible(port, lists, open)
		log.WithFields(log.Fields{
			"backend": factory.Backend(),
			"lists":   len(cfg.Lists),
			"shared":  len(lists.IDs()),
		}).Info("winsync started")
		select {
		case <-ctx.Done():
			close(stop)
			return <-done
		case err := <-done:
			return err
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
}
