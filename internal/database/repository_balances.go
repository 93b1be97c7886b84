package database

import (
	"context"
	"fmt"
	"time"
)

// ============================================================================
// DAILY FUND BALANCES
// ============================================================================

const balanceViewColumns = `
	b.id, b.currency_id, b.balance_date, b.committed, b.deployed,
	b.available, b.total, b.created_at,
	c.code, c.name, c.symbol`

// UpsertDailyBalance writes the snapshot for (currency, date). A snapshot
// already present for that day is overwritten, never duplicated.
func (r *Repository) UpsertDailyBalance(ctx context.Context, b *DailyFundBalance) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO daily_fund_balances (currency_id, balance_date, committed, deployed, available, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (currency_id, balance_date)
		DO UPDATE SET
			committed = EXCLUDED.committed,
			deployed = EXCLUDED.deployed,
			available = EXCLUDED.available,
			total = EXCLUDED.total
		RETURNING id, created_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		b.CurrencyID, b.BalanceDate, b.Committed, b.Deployed, b.Available, b.Total,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert daily balance: %w", err)
	}
	return nil
}

// GetLatestBalance retrieves the most recent snapshot for one currency
func (r *Repository) GetLatestBalance(ctx context.Context, currencyID int64) (*BalanceView, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + balanceViewColumns + `
		FROM daily_fund_balances b
		JOIN currencies c ON b.currency_id = c.id
		WHERE b.currency_id = $1
		ORDER BY b.balance_date DESC
		LIMIT 1
	`
	return r.scanBalanceRow(r.db.Pool.QueryRow(ctx, query, currencyID))
}

// GetConsolidatedBalances retrieves the latest snapshot of every currency,
// ordered by currency code.
func (r *Repository) GetConsolidatedBalances(ctx context.Context) ([]*BalanceView, error) {
	query := `
		SELECT ` + balanceViewColumns + `
		FROM (
			SELECT DISTINCT ON (currency_id) *
			FROM daily_fund_balances
			ORDER BY currency_id, balance_date DESC
		) b
		JOIN currencies c ON b.currency_id = c.id
		ORDER BY c.code
	`
	return r.queryBalances(ctx, query)
}

// GetBalanceHistory retrieves the trailing snapshots for one currency,
// newest first, bounded to the given number of days.
func (r *Repository) GetBalanceHistory(ctx context.Context, currencyID int64, days int, today time.Time) ([]*BalanceView, error) {
	query := `
		SELECT ` + balanceViewColumns + `
		FROM daily_fund_balances b
		JOIN currencies c ON b.currency_id = c.id
		WHERE b.currency_id = $1 AND b.balance_date >= $2::date - $3
		ORDER BY b.balance_date DESC
	`
	return r.queryBalances(ctx, query, currencyID, today, days)
}

func (r *Repository) queryBalances(ctx context.Context, query string, args ...interface{}) ([]*BalanceView, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*BalanceView
	for rows.Next() {
		v := &BalanceView{}
		err := rows.Scan(
			&v.ID, &v.CurrencyID, &v.BalanceDate, &v.Committed, &v.Deployed,
			&v.Available, &v.Total, &v.CreatedAt,
			&v.CurrencyCode, &v.CurrencyName, &v.CurrencySymbol,
		)
		if err != nil {
			return nil, err
		}
		balances = append(balances, v)
	}
	return balances, rows.Err()
}

func (r *Repository) scanBalanceRow(row rowScanner) (*BalanceView, error) {
	v := &BalanceView{}
	err := row.Scan(
		&v.ID, &v.CurrencyID, &v.BalanceDate, &v.Committed, &v.Deployed,
		&v.Available, &v.Total, &v.CreatedAt,
		&v.CurrencyCode, &v.CurrencyName, &v.CurrencySymbol,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}
