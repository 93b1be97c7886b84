// Package currency resolves fund currencies and their metadata. ISO minor
// units come from the go-money registry; the active set lives in the
// database with a Redis cache in front.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/rs/zerolog"

	"lending-fund-api/internal/cache"
	"lending-fund-api/internal/database"
)

var (
	// ErrUnknownCurrency means the code is not registered in the fund.
	ErrUnknownCurrency = errors.New("unknown currency")
	// ErrInactiveCurrency means the code exists but new instruments cannot
	// use it.
	ErrInactiveCurrency = errors.New("currency is not active")
)

// IsUnknown reports whether err means the currency code is not registered.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrUnknownCurrency)
}

// IsInactive reports whether err means the currency is closed to new
// instruments.
func IsInactive(err error) bool {
	return errors.Is(err, ErrInactiveCurrency)
}

// Store is the subset of the database repository the registry needs.
type Store interface {
	GetCurrencyByCode(ctx context.Context, code string) (*database.Currency, error)
	ListActiveCurrencies(ctx context.Context) ([]*database.Currency, error)
}

// Registry looks up fund currencies. The cache is optional; a nil cache
// means every lookup hits the database.
type Registry struct {
	store  Store
	cache  *cache.Service
	logger zerolog.Logger
}

func NewRegistry(store Store, cacheSvc *cache.Service, logger zerolog.Logger) *Registry {
	return &Registry{
		store:  store,
		cache:  cacheSvc,
		logger: logger.With().Str("component", "currency").Logger(),
	}
}

// MinorUnits returns the number of decimal places for a currency code, e.g.
// 2 for USD or 0 for JPY. Unrecognized codes default to 2.
func MinorUnits(code string) int32 {
	if c := money.GetCurrency(strings.ToUpper(code)); c != nil {
		return int32(c.Fraction)
	}
	return 2
}

// Resolve returns the currency for a code regardless of its state.
func (r *Registry) Resolve(ctx context.Context, code string) (*database.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrUnknownCurrency
	}

	if r.cache != nil {
		var cached database.Currency
		if err := r.cache.GetJSON(ctx, cache.CurrencyKey(code), &cached); err == nil {
			return &cached, nil
		}
	}

	c, err := r.store.GetCurrencyByCode(ctx, code)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
		}
		return nil, err
	}

	r.cacheCurrency(ctx, c)
	return c, nil
}

// ResolveActive returns the currency for a code, rejecting inactive ones.
// New instruments must use an active currency.
func (r *Registry) ResolveActive(ctx context.Context, code string) (*database.Currency, error) {
	c, err := r.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if c.State != database.CurrencyActive {
		return nil, fmt.Errorf("%w: %s", ErrInactiveCurrency, c.Code)
	}
	return c, nil
}

// ListActive returns the currencies open for new instruments.
func (r *Registry) ListActive(ctx context.Context) ([]*database.Currency, error) {
	if r.cache != nil {
		var cached []*database.Currency
		if err := r.cache.GetJSON(ctx, cache.KeyActiveCurrencies, &cached); err == nil {
			return cached, nil
		}
	}

	currencies, err := r.store.ListActiveCurrencies(ctx)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, cache.KeyActiveCurrencies, currencies, cache.CurrencyTTL); err != nil {
			r.logger.Debug().Err(err).Msg("failed to cache active currencies")
		}
	}
	return currencies, nil
}

func (r *Registry) cacheCurrency(ctx context.Context, c *database.Currency) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetJSON(ctx, cache.CurrencyKey(c.Code), c, cache.CurrencyTTL); err != nil {
		r.logger.Debug().Err(err).Str("code", c.Code).Msg("failed to cache currency")
	}
}
