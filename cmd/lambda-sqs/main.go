//go:build lambda

package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"winsync/internal/api"
	"winsync/internal/backends"
	"winsync/internal/types"
)

func main() {
	// Load environment variables
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	err := godotenv.Load(envFile)
	if err != nil {
		log.Info("The .env file not found.")
	}
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	ctx := context.Background()

	cfgFile := os.Getenv("CONFIG_FILE")
	if cfgFile == "" {
		cfgFile = "winsync.yaml"
	}
	cfg, err := types.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Failed to load list config: %v", err)
	}

	factory := backends.NewFactory()
	publisher, err := factory.PublisherFromEnv(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize publisher: %v", err)
	}

	lists, err := api.SharedLists(ctx, cfg, api.ConfigOpener(cfg, factory), publisher)
	if err != nil {
		log.Fatalf("Failed to build lists: %v", err)
	}
	if len(lists.IDs()) == 0 {
		log.Warn("No list names a publish target; every event will fail")
	}

	handler := &api.SQSHandler{Lists: lists}

	// Start Lambda runtime
	lambda.Start(handler.HandleSQSEvent)
}
