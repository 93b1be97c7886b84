package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db           *DB
	queryTimeout time.Duration
}

// NewRepository creates a new repository. queryTimeout bounds every storage
// call; zero falls back to five seconds.
func NewRepository(db *DB, queryTimeout time.Duration) *Repository {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &Repository{db: db, queryTimeout: queryTimeout}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.db.Pool.Ping(ctx)
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.queryTimeout)
}

// ============================================================================
// CURRENCIES
// ============================================================================

// GetCurrencyByCode retrieves a currency by its ISO-like code
func (r *Repository) GetCurrencyByCode(ctx context.Context, code string) (*Currency, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, code, name, symbol, state, created_at
		FROM currencies
		WHERE code = $1
	`
	c := &Currency{}
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Name, &c.Symbol, &c.State, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListActiveCurrencies retrieves all ACTIVE currencies ordered by code
func (r *Repository) ListActiveCurrencies(ctx context.Context) ([]*Currency, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, code, name, symbol, state, created_at
		FROM currencies
		WHERE state = 'ACTIVE'
		ORDER BY code
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var currencies []*Currency
	for rows.Next() {
		c := &Currency{}
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Symbol, &c.State, &c.CreatedAt); err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}

// IsNotFound reports whether err is the storage-level empty-result marker.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
