package sweepsched

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"lending-fund-api/config"
	"lending-fund-api/internal/balance"
	"lending-fund-api/internal/clock"
	"lending-fund-api/internal/database"
	"lending-fund-api/internal/instrument"
)

// emptyStore satisfies both the sweeper's and the consolidator's store
// interfaces with no data, so scheduler passes complete trivially.
type emptyStore struct{}

func (emptyStore) CreateInstrument(ctx context.Context, inst *database.Instrument, obligations []database.PaymentObligation) error {
	return nil
}
func (emptyStore) GetInstrumentByID(ctx context.Context, id int64) (*database.InstrumentView, error) {
	return nil, nil
}
func (emptyStore) ListInstruments(ctx context.Context, role string, ownerID int64) ([]*database.InstrumentView, error) {
	return nil, nil
}
func (emptyStore) ListActiveInstruments(ctx context.Context, role string, ownerID int64) ([]*database.InstrumentView, error) {
	return nil, nil
}
func (emptyStore) ListObligations(ctx context.Context, instrumentID int64) ([]*database.PaymentObligation, error) {
	return nil, nil
}
func (emptyStore) CancelInstrument(ctx context.Context, id int64) (bool, error) { return false, nil }
func (emptyStore) GetInstrumentState(ctx context.Context, id int64) (string, error) {
	return "", nil
}
func (emptyStore) MarkOverdueInstruments(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
func (emptyStore) MarkOverdueObligations(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
func (emptyStore) ListActiveCurrencies(ctx context.Context) ([]*database.Currency, error) {
	return nil, nil
}
func (emptyStore) SumActivePrincipal(ctx context.Context, currencyID int64, role string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (emptyStore) UpsertDailyBalance(ctx context.Context, b *database.DailyFundBalance) error {
	return nil
}
func (emptyStore) GetLatestBalance(ctx context.Context, currencyID int64) (*database.BalanceView, error) {
	return nil, nil
}
func (emptyStore) GetConsolidatedBalances(ctx context.Context) ([]*database.BalanceView, error) {
	return nil, nil
}
func (emptyStore) GetBalanceHistory(ctx context.Context, currencyID int64, days int, today time.Time) ([]*database.BalanceView, error) {
	return nil, nil
}
func (emptyStore) GetOwnerBalances(ctx context.Context, ownerID int64) ([]*database.OwnerBalance, error) {
	return nil, nil
}

func newTestScheduler() *Scheduler {
	clk := clock.Fixed{T: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	sweeper := instrument.NewSweeper(emptyStore{}, clk, zerolog.Nop())
	consolidator := balance.NewConsolidator(emptyStore{}, nil, clk, zerolog.Nop())
	cfg := config.SchedulerConfig{CheckInterval: time.Hour, RunTimeout: time.Second}
	return NewScheduler(sweeper, consolidator, cfg, zerolog.Nop())
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler()

	if s.IsRunning() {
		t.Fatal("scheduler should not be running before Start")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running after Start")
	}
	if err := s.Start(); err == nil {
		t.Error("second Start should fail")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
	if err := s.Stop(); err == nil {
		t.Error("second Stop should fail")
	}
}

func TestRestart(t *testing.T) {
	s := newTestScheduler()

	for i := 0; i < 2; i++ {
		if err := s.Start(); err != nil {
			t.Fatalf("Start %d failed: %v", i, err)
		}
		if err := s.Stop(); err != nil {
			t.Fatalf("Stop %d failed: %v", i, err)
		}
	}
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler()

	report, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if report.Sweep == nil {
		t.Fatal("expected sweep result")
	}
	if report.Sweep.OverdueInstruments != 0 || report.Consolidated != 0 {
		t.Errorf("expected empty pass, got %+v", report)
	}
}
