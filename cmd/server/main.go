package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/oggyb/fahrme/internal/app"
	"github.com/oggyb/fahrme/internal/cache"
	"github.com/oggyb/fahrme/internal/config"
	"github.com/oggyb/fahrme/internal/db"
	"github.com/oggyb/fahrme/internal/logger"
	"github.com/oggyb/fahrme/internal/server"
	"github.com/oggyb/fahrme/internal/service/identity"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L().With("component", "identity")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	// Inject logger into app context
	appCtx := app.New(cfg, database, redisCache, log)

	registrars := []server.Registrar{
		identity.NewRegistrar(appCtx),
	}

	if cfg.App.ENV == "development" {
		if _, err := db.SeedDemoUsers(database, log); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.GRPC.Host + ":" + cfg.GRPC.Port
	log.Info("starting gRPC server", "addr", addr, "require_confirmation", cfg.Auth.RequireConfirmation)

	if err := server.StartGRPCServer(ctx, cfg, log, registrars...); err != nil {
		log.Error("failed to start gRPC server", "err", err)
		os.Exit(1)
	}
}
