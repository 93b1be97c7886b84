// Package balance maintains the fund's daily per-currency capital snapshots
// and serves the consolidated views built from them.
package balance

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"lending-fund-api/internal/cache"
	"lending-fund-api/internal/clock"
	"lending-fund-api/internal/database"
)

// ErrNoBalance means no snapshot exists yet for the currency.
var ErrNoBalance = errors.New("no balance recorded")

// Store is the repository surface the consolidator depends on.
type Store interface {
	ListActiveCurrencies(ctx context.Context) ([]*database.Currency, error)
	SumActivePrincipal(ctx context.Context, currencyID int64, role string) (decimal.Decimal, error)
	UpsertDailyBalance(ctx context.Context, b *database.DailyFundBalance) error
	GetLatestBalance(ctx context.Context, currencyID int64) (*database.BalanceView, error)
	GetConsolidatedBalances(ctx context.Context) ([]*database.BalanceView, error)
	GetBalanceHistory(ctx context.Context, currencyID int64, days int, today time.Time) ([]*database.BalanceView, error)
	GetOwnerBalances(ctx context.Context, ownerID int64) ([]*database.OwnerBalance, error)
}

// Consolidator recomputes and serves daily fund balances. Committed capital
// is the sum of ACTIVE deposit principals, deployed is the sum of ACTIVE
// loan principals, available is their difference. One row per currency per
// calendar day; re-running a day overwrites the row.
type Consolidator struct {
	store  Store
	cache  *cache.Service
	clk    clock.Clock
	logger zerolog.Logger
}

func NewConsolidator(store Store, cacheSvc *cache.Service, clk clock.Clock, logger zerolog.Logger) *Consolidator {
	return &Consolidator{
		store:  store,
		cache:  cacheSvc,
		clk:    clk,
		logger: logger.With().Str("component", "balance").Logger(),
	}
}

// Run consolidates today's snapshot for every active currency and returns
// the rows written. Inactive currencies keep their historical rows but are
// not recomputed.
func (c *Consolidator) Run(ctx context.Context) ([]*database.DailyFundBalance, error) {
	currencies, err := c.store.ListActiveCurrencies(ctx)
	if err != nil {
		return nil, err
	}

	now := c.clk.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	written := make([]*database.DailyFundBalance, 0, len(currencies))
	for _, cur := range currencies {
		b, err := c.consolidateCurrency(ctx, cur, today)
		if err != nil {
			return written, err
		}
		written = append(written, b)
	}

	c.invalidateViews(ctx)

	c.logger.Info().
		Int("currencies", len(written)).
		Str("date", today.Format("2006-01-02")).
		Msg("daily balances consolidated")

	return written, nil
}

func (c *Consolidator) consolidateCurrency(ctx context.Context, cur *database.Currency, today time.Time) (*database.DailyFundBalance, error) {
	committed, err := c.store.SumActivePrincipal(ctx, cur.ID, database.RoleDeposit)
	if err != nil {
		return nil, err
	}
	deployed, err := c.store.SumActivePrincipal(ctx, cur.ID, database.RoleLoan)
	if err != nil {
		return nil, err
	}

	b := &database.DailyFundBalance{
		CurrencyID:  cur.ID,
		BalanceDate: today,
		Committed:   committed,
		Deployed:    deployed,
		Available:   committed.Sub(deployed),
		Total:       committed,
	}
	if err := c.store.UpsertDailyBalance(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Consolidator) invalidateViews(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, cache.KeyConsolidated); err != nil {
		c.logger.Debug().Err(err).Msg("failed to invalidate consolidated view")
	}
	// Per-currency latest views go by pattern so snapshots for currencies
	// deactivated since the last run are dropped too.
	if err := c.cache.DeletePattern(ctx, cache.PatternLatestBalances); err != nil {
		c.logger.Debug().Err(err).Msg("failed to invalidate latest balance views")
	}
}

// Latest returns the most recent snapshot for one currency.
func (c *Consolidator) Latest(ctx context.Context, currencyID int64) (*database.BalanceView, error) {
	if c.cache != nil {
		var cached database.BalanceView
		if err := c.cache.GetJSON(ctx, cache.LatestBalanceKey(int(currencyID)), &cached); err == nil {
			return &cached, nil
		}
	}

	view, err := c.store.GetLatestBalance(ctx, currencyID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNoBalance
		}
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cache.LatestBalanceKey(int(currencyID)), view, cache.BalanceTTL); err != nil {
			c.logger.Debug().Err(err).Msg("failed to cache latest balance")
		}
	}
	return view, nil
}

// Consolidated returns the latest snapshot of every currency that has one,
// ordered by currency code.
func (c *Consolidator) Consolidated(ctx context.Context) ([]*database.BalanceView, error) {
	if c.cache != nil {
		var cached []*database.BalanceView
		if err := c.cache.GetJSON(ctx, cache.KeyConsolidated, &cached); err == nil {
			return cached, nil
		}
	}

	views, err := c.store.GetConsolidatedBalances(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cache.KeyConsolidated, views, cache.BalanceTTL); err != nil {
			c.logger.Debug().Err(err).Msg("failed to cache consolidated balances")
		}
	}
	return views, nil
}

// History returns up to days of snapshots for one currency, newest first.
func (c *Consolidator) History(ctx context.Context, currencyID int64, days int) ([]*database.BalanceView, error) {
	if days < 1 {
		days = 30
	}
	now := c.clk.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return c.store.GetBalanceHistory(ctx, currencyID, days, today)
}

// OwnerBalances returns the live per-currency position of one owner:
// invested deposit principal, borrowed loan principal, and their difference.
func (c *Consolidator) OwnerBalances(ctx context.Context, ownerID int64) ([]*database.OwnerBalance, error) {
	return c.store.GetOwnerBalances(ctx, ownerID)
}
