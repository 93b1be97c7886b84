// Package instrument manages the lifecycle of fund deposits and loans:
// creation with a derived payment schedule, queries, cancellation, and the
// maturity sweep.
package instrument

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"lending-fund-api/internal/clock"
	"lending-fund-api/internal/currency"
	"lending-fund-api/internal/database"
	"lending-fund-api/internal/schedule"
)

var (
	ErrNotFound    = errors.New("instrument not found")
	ErrNotActive   = errors.New("instrument is not active")
	ErrInvalidTerm = errors.New("invalid instrument terms")
)

// maxTermDays caps instrument terms at ten years.
const maxTermDays = 3650

// Store is the repository surface the service depends on. Defined here so
// tests can swap in a fake.
type Store interface {
	CreateInstrument(ctx context.Context, inst *database.Instrument, obligations []database.PaymentObligation) error
	GetInstrumentByID(ctx context.Context, id int64) (*database.InstrumentView, error)
	ListInstruments(ctx context.Context, role string, ownerID int64) ([]*database.InstrumentView, error)
	ListActiveInstruments(ctx context.Context, role string, ownerID int64) ([]*database.InstrumentView, error)
	ListObligations(ctx context.Context, instrumentID int64) ([]*database.PaymentObligation, error)
	CancelInstrument(ctx context.Context, id int64) (bool, error)
	GetInstrumentState(ctx context.Context, id int64) (string, error)
	MarkOverdueInstruments(ctx context.Context, now time.Time) (int64, error)
	MarkOverdueObligations(ctx context.Context, now time.Time) (int64, error)
}

// CreateRequest carries the caller-supplied terms for a new instrument.
type CreateRequest struct {
	OwnerID      int64           `json:"-"`
	Role         string          `json:"-"`
	CurrencyCode string          `json:"currency_code" binding:"required"`
	Counterparty string          `json:"counterparty"`
	Principal    decimal.Decimal `json:"principal" binding:"required"`
	AnnualRate   decimal.Decimal `json:"annual_rate" binding:"required"`
	TermDays     int             `json:"term_days" binding:"required"`
	Modality     string          `json:"modality" binding:"required"`
	StartDate    string          `json:"start_date"` // YYYY-MM-DD, defaults to today
	Notes        string          `json:"notes"`
}

// Service implements the instrument lifecycle operations.
type Service struct {
	store      Store
	currencies *currency.Registry
	clk        clock.Clock
	logger     zerolog.Logger
}

func NewService(store Store, currencies *currency.Registry, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		currencies: currencies,
		clk:        clk,
		logger:     logger.With().Str("component", "instrument").Logger(),
	}
}

// Create validates the terms, derives the payment schedule, and persists the
// instrument together with its obligations in one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*database.InstrumentView, error) {
	if err := validateTerms(req); err != nil {
		return nil, err
	}

	cur, err := s.currencies.ResolveActive(ctx, req.CurrencyCode)
	if err != nil {
		return nil, err
	}

	start, err := s.resolveStartDate(req.StartDate)
	if err != nil {
		return nil, err
	}

	terms := schedule.Terms{
		Principal:  req.Principal,
		AnnualRate: req.AnnualRate,
		TermDays:   req.TermDays,
		Modality:   strings.ToUpper(req.Modality),
		MinorUnits: currency.MinorUnits(cur.Code),
	}
	plan, err := schedule.Build(terms, req.Role, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTerm, err)
	}

	inst := &database.Instrument{
		OwnerID:       req.OwnerID,
		CurrencyID:    cur.ID,
		Role:          req.Role,
		Counterparty:  strings.TrimSpace(req.Counterparty),
		Principal:     req.Principal,
		AnnualRate:    req.AnnualRate,
		TermDays:      req.TermDays,
		Modality:      terms.Modality,
		StartDate:     start,
		MaturityDate:  plan.MaturityDate,
		TotalInterest: plan.TotalInterest,
		TotalDue:      plan.TotalDue,
		State:         database.InstrumentActive,
		Notes:         strings.TrimSpace(req.Notes),
	}

	if err := s.store.CreateInstrument(ctx, inst, plan.Obligations); err != nil {
		return nil, fmt.Errorf("failed to create instrument: %w", err)
	}

	s.logger.Info().
		Int64("id", inst.ID).
		Str("role", inst.Role).
		Str("currency", cur.Code).
		Str("principal", inst.Principal.String()).
		Int("payments", len(plan.Obligations)).
		Msg("instrument created")

	return s.GetByID(ctx, inst.ID)
}

// GetByID returns one instrument with currency metadata and remaining days.
func (s *Service) GetByID(ctx context.Context, id int64) (*database.InstrumentView, error) {
	view, err := s.store.GetInstrumentByID(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.annotate(view)
	return view, nil
}

// List returns instruments of a role, newest first. ownerID of zero lists
// all owners.
func (s *Service) List(ctx context.Context, role string, ownerID int64) ([]*database.InstrumentView, error) {
	views, err := s.store.ListInstruments(ctx, role, ownerID)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		s.annotate(v)
	}
	return views, nil
}

// ListActive returns ACTIVE instruments ordered by nearest maturity.
func (s *Service) ListActive(ctx context.Context, role string, ownerID int64) ([]*database.InstrumentView, error) {
	views, err := s.store.ListActiveInstruments(ctx, role, ownerID)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		s.annotate(v)
	}
	return views, nil
}

// Obligations returns the payment schedule of an instrument in sequence
// order.
func (s *Service) Obligations(ctx context.Context, instrumentID int64) ([]*database.PaymentObligation, error) {
	if _, err := s.GetByID(ctx, instrumentID); err != nil {
		return nil, err
	}
	return s.store.ListObligations(ctx, instrumentID)
}

// Cancel marks an ACTIVE instrument CANCELLED along with its PENDING
// obligations. Only ACTIVE instruments can be cancelled; a concurrent sweep
// that already marked it OVERDUE wins.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	ok, err := s.store.CancelInstrument(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		s.logger.Info().Int64("id", id).Msg("instrument cancelled")
		return nil
	}

	// Distinguish missing from wrong-state for the caller.
	state, err := s.store.GetInstrumentState(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: state is %s", ErrNotActive, state)
}

func (s *Service) annotate(v *database.InstrumentView) {
	v.DaysRemaining = daysRemaining(s.clk.Now(), v.MaturityDate)
}

// daysRemaining is the whole days until maturity, never negative. It is
// derived from dates alone, so cancelled and overdue instruments still
// report how far off their maturity is.
func daysRemaining(now, maturity time.Time) int {
	d := int(maturity.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Service) resolveStartDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		now := s.clk.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	start, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidTerm)
	}
	return start, nil
}

func validateTerms(req CreateRequest) error {
	if req.Role != database.RoleDeposit && req.Role != database.RoleLoan {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTerm, req.Role)
	}
	if !req.Principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive", ErrInvalidTerm)
	}
	if !req.AnnualRate.IsPositive() || req.AnnualRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: annual rate must be in (0, 100]", ErrInvalidTerm)
	}
	if req.TermDays < 1 || req.TermDays > maxTermDays {
		return fmt.Errorf("%w: term days must be between 1 and %d", ErrInvalidTerm, maxTermDays)
	}
	switch strings.ToUpper(req.Modality) {
	case database.ModalityMonthly, database.ModalityBullet:
	default:
		return fmt.Errorf("%w: unknown modality %q", ErrInvalidTerm, req.Modality)
	}
	return nil
}
