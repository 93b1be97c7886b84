// Command sweep runs one maturity sweep and balance consolidation pass and
// exits. Intended for cron or operator use when the in-process scheduler is
// disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"lending-fund-api/config"
	"lending-fund-api/internal/balance"
	"lending-fund-api/internal/clock"
	"lending-fund-api/internal/database"
	"lending-fund-api/internal/instrument"
	"lending-fund-api/internal/logging"
	"lending-fund-api/internal/sweepsched"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

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

	repo := database.NewRepository(db, cfg.Database.QueryTimeout)

	clk := clock.System{}
	sweeper := instrument.NewSweeper(repo, clk, logger)
	consolidator := balance.NewConsolidator(repo, nil, clk, logger)
	scheduler := sweepsched.NewScheduler(sweeper, consolidator, cfg.Scheduler, logger)

	report, err := scheduler.RunNow(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweep failed")
	}

	fmt.Printf("overdue instruments: %d\n", report.Sweep.OverdueInstruments)
	fmt.Printf("overdue obligations: %d\n", report.Sweep.OverdueObligations)
	fmt.Printf("consolidated currencies: %d\n", report.Consolidated)
	fmt.Printf("duration: %s\n", report.Duration)
}
