package main

import (
	"context"
	"os"

	"depotbook/src/config"
	"depotbook/src/database"
	"depotbook/src/utils"

	"github.com/sirupsen/logrus"
)

func main() {
	// Load the appropriate config based on the environment
	cfg, err := config.LoadConfig("./settings", os.Getenv("ENV"))
	if err != nil {
		logrus.Fatalf("Error loading config for environment: %v", err)
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.ToFile, cfg.Logging.FilePath)
	ctx := utils.WithLogger(context.Background(), logger)

	db, err := database.SetupDB(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(ctx, db, logger); err != nil {
		logger.Fatalf("Failed to apply migrations: %v", err)
	}

	logger.Info("Database migration completed successfully")
}
