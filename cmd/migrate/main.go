package main

import (
	"github.com/quecocinohoy/backend/config"
	"github.com/quecocinohoy/backend/internal/database"
	"github.com/quecocinohoy/backend/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.L.Fatalw("failed to load configuration", "error", err)
	}

	db, err := database.New(cfg, logger.L)
	if err != nil {
		logger.L.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.DB); err != nil {
		logger.L.Fatalw("migration failed", "error", err)
	}
	logger.L.Infow("migrations applied", "driver", cfg.DB.Driver, "tables", len(database.AllModels()))
}
