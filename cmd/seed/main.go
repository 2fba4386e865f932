package main

import (
	"os"

	"github.com/oggyb/fahrme/internal/config"
	"github.com/oggyb/fahrme/internal/db"
	"github.com/oggyb/fahrme/internal/logger"
)

func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	if _, err := db.SeedDemoUsers(database, log); err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("seeding completed", "password", db.DemoPassword)
}
