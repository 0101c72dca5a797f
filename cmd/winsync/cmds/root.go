package cmds

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"winsync/internal/types"
)

var (
	envFile    string
	configFile string
	logLevel   string
)

// RootCmd is the winsync command line entry point.
var RootCmd = &cobra.Command{
	Use:   "winsync",
	Short: "Windowed list synchronization server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil {
			log.Info("The .env file not found.")
		}
		if f := cmd.Flag("config"); f != nil && !f.Changed {
			configFile = getenv("CONFIG_FILE", configFile)
		}
		lvl, err := log.ParseLevel(getenv("LOG_LEVEL", logLevel))
		if err != nil {
			return err
		}
		log.SetLevel(lvl)
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", getenv("ENV_FILE", ".env"),
		"dotenv file loaded before anything else")
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "winsync.yaml",
		"list configuration file (yaml or json)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "level", "info", "logging level")

	RootCmd.AddCommand(serveCmd, seedCmd, configCmd)
}

func loadConfig() (types.Config, error) {
	return types.LoadConfig(configFile)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
