package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lending-fund-api/config"
	"lending-fund-api/internal/api"
	"lending-fund-api/internal/auth"
	"lending-fund-api/internal/balance"
	"lending-fund-api/internal/cache"
	"lending-fund-api/internal/clock"
	"lending-fund-api/internal/currency"
	"lending-fund-api/internal/database"
	"lending-fund-api/internal/instrument"
	"lending-fund-api/internal/logging"
	"lending-fund-api/internal/sweepsched"
	"lending-fund-api/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Msg("starting lending fund api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Secrets from Vault override the config file when enabled.
	vaultClient, err := vault.NewClient(cfg.Vault)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create vault client")
	}
	if vaultClient.IsEnabled() {
		secrets, err := vaultClient.FetchSecrets(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to fetch secrets from vault")
		}
		if secrets.DBPassword != "" {
			cfg.Database.Password = secrets.DBPassword
		}
		if secrets.JWTSecret != "" {
			cfg.Auth.JWTSecret = secrets.JWTSecret
		}
		logger.Info().Msg("secrets loaded from vault")
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	repo := database.NewRepository(db, cfg.Database.QueryTimeout)

	var cacheSvc *cache.Service
	if cfg.Redis.Enabled {
		cacheSvc, err = cache.NewService(cfg.Redis, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("cache unavailable, continuing without it")
			cacheSvc = nil
		} else {
			defer cacheSvc.Close()
		}
	}

	clk := clock.System{}
	registry := currency.NewRegistry(repo, cacheSvc, logger)
	instruments := instrument.NewService(repo, registry, clk, logger)
	sweeper := instrument.NewSweeper(repo, clk, logger)
	consolidator := balance.NewConsolidator(repo, cacheSvc, clk, logger)

	scheduler := sweepsched.NewScheduler(sweeper, consolidator, cfg.Scheduler, logger)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer scheduler.Stop()
	}

	var authService *auth.Service
	if cfg.Auth.Enabled {
		if cfg.Auth.JWTSecret == "" {
			logger.Fatal().Msg("auth enabled but no JWT secret configured")
		}
		authService = auth.NewService(repo, cfg.Auth, logger)
	}

	server := api.NewServer(cfg.Server, instruments, consolidator, registry, scheduler, cacheSvc, authService, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("http server error")
		os.Exit(1)
	}

	logger.Info().Msg("shutdown complete")
}
