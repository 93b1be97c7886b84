// Package sweepsched runs the maturity sweep and daily balance consolidation
// on a fixed interval.
package sweepsched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lending-fund-api/config"
	"lending-fund-api/internal/balance"
	"lending-fund-api/internal/instrument"
)

// RunReport is the outcome of one scheduler pass.
type RunReport struct {
	Sweep        *instrument.SweepResult `json:"sweep"`
	Consolidated int                     `json:"consolidated_currencies"`
	Duration     time.Duration           `json:"duration"`
}

// Scheduler periodically sweeps matured instruments and then consolidates
// daily balances, so a snapshot never predates the state transitions of its
// own day.
type Scheduler struct {
	sweeper      *instrument.Sweeper
	consolidator *balance.Consolidator
	cfg          config.SchedulerConfig
	logger       zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(sweeper *instrument.Sweeper, consolidator *balance.Consolidator, cfg config.SchedulerConfig, logger zerolog.Logger) *Scheduler {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	return &Scheduler{
		sweeper:      sweeper,
		consolidator: consolidator,
		cfg:          cfg,
		logger:       logger.With().Str("component", "scheduler").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start launches the background loop. The first pass runs immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopChan = make(chan struct{}) // reinitialize for restart
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.cfg.CheckInterval).Msg("scheduler starting")

	s.wg.Add(1)
	go s.loop()

	return nil
}

// Stop signals the loop and waits for the in-flight pass to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not running")
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()

	s.logger.Info().Msg("scheduler stopped")
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	s.runPass()

	for {
		select {
		case <-ticker.C:
			s.runPass()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	if _, err := s.RunNow(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled pass failed")
	}
}

// RunNow executes one sweep-then-consolidate pass synchronously. Exposed for
// the admin endpoint and the one-shot CLI.
func (s *Scheduler) RunNow(ctx context.Context) (*RunReport, error) {
	start := time.Now()

	sweep, err := s.sweeper.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("maturity sweep failed: %w", err)
	}

	written, err := s.consolidator.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance consolidation failed: %w", err)
	}

	report := &RunReport{
		Sweep:        sweep,
		Consolidated: len(written),
		Duration:     time.Since(start),
	}

	s.logger.Info().
		Int64("overdue_instruments", sweep.OverdueInstruments).
		Int64("overdue_obligations", sweep.OverdueObligations).
		Int("consolidated", report.Consolidated).
		Dur("duration", report.Duration).
		Msg("pass completed")

	return report, nil
}
