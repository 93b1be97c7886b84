package instrument

import (
	"context"

	"github.com/rs/zerolog"

	"lending-fund-api/internal/clock"
)

// SweepResult reports how many rows a maturity sweep transitioned.
type SweepResult struct {
	OverdueInstruments int64 `json:"overdue_instruments"`
	OverdueObligations int64 `json:"overdue_obligations"`
}

// Sweeper moves matured instruments and lapsed obligations to their overdue
// states. Each run is idempotent: already-overdue rows are not touched.
type Sweeper struct {
	store  Store
	clk    clock.Clock
	logger zerolog.Logger
}

func NewSweeper(store Store, clk clock.Clock, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		clk:    clk,
		logger: logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run executes one sweep: ACTIVE instruments whose maturity has passed
// become OVERDUE, and PENDING obligations whose due date has passed become
// OVERDUE. Obligations are swept second so an instrument and its schedule
// never disagree for long.
func (s *Sweeper) Run(ctx context.Context) (*SweepResult, error) {
	now := s.clk.Now()

	instruments, err := s.store.MarkOverdueInstruments(ctx, now)
	if err != nil {
		return nil, err
	}

	obligations, err := s.store.MarkOverdueObligations(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{
		OverdueInstruments: instruments,
		OverdueObligations: obligations,
	}

	if instruments > 0 || obligations > 0 {
		s.logger.Info().
			Int64("instruments", instruments).
			Int64("obligations", obligations).
			Msg("maturity sweep transitioned rows")
	} else {
		s.logger.Debug().Msg("maturity sweep found nothing to transition")
	}

	return result, nil
}
