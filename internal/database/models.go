package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument roles. Deposits bring capital into the fund, loans place it
// with external financial entities. Both share the same lifecycle.
const (
	RoleDeposit = "DEPOSIT"
	RoleLoan    = "LOAN"
)

// Instrument lifecycle states
const (
	InstrumentActive    = "ACTIVE"
	InstrumentOverdue   = "OVERDUE"
	InstrumentCancelled = "CANCELLED"
)

// Payment obligation states
const (
	ObligationPending   = "PENDING"
	ObligationPaid      = "PAID"
	ObligationOverdue   = "OVERDUE"
	ObligationCancelled = "CANCELLED"
)

// Payment modalities
const (
	ModalityMonthly = "MONTHLY"
	ModalityBullet  = "BULLET"
)

// Currency states
const (
	CurrencyActive   = "ACTIVE"
	CurrencyInactive = "INACTIVE"
)

// Currency is a fund currency. Immutable once referenced by an instrument.
type Currency struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Instrument is a deposit or a loan. Terms and derived fields are fixed at
// creation; only state and notes mutate afterwards.
type Instrument struct {
	ID            int64           `json:"id"`
	OwnerID       int64           `json:"owner_id"`
	CurrencyID    int64           `json:"currency_id"`
	Role          string          `json:"role"`
	Counterparty  string          `json:"counterparty,omitempty"`
	Principal     decimal.Decimal `json:"principal"`
	AnnualRate    decimal.Decimal `json:"annual_rate"`
	TermDays      int             `json:"term_days"`
	Modality      string          `json:"modality"`
	StartDate     time.Time       `json:"start_date"`
	MaturityDate  time.Time       `json:"maturity_date"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalDue      decimal.Decimal `json:"total_due"`
	State         string          `json:"state"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// InstrumentView is an instrument enriched with currency display data and
// the remaining days to maturity.
type InstrumentView struct {
	Instrument
	CurrencyCode   string `json:"currency_code"`
	CurrencySymbol string `json:"currency_symbol"`
	DaysRemaining  int    `json:"days_remaining"`
}

// PaymentObligation is one scheduled payment of an instrument. Created once
// together with its instrument; only state and paid_at mutate afterwards.
type PaymentObligation struct {
	ID           int64           `json:"id"`
	InstrumentID int64           `json:"instrument_id"`
	SequenceNo   int             `json:"sequence_no"`
	Principal    decimal.Decimal `json:"principal"`
	Interest     decimal.Decimal `json:"interest"`
	Total        decimal.Decimal `json:"total"`
	DueDate      time.Time       `json:"due_date"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	State        string          `json:"state"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DailyFundBalance is the per-currency capital snapshot for one calendar day.
// Committed is depositor capital in ACTIVE deposits, deployed is principal
// placed in ACTIVE loans, available = committed - deployed, total = committed.
type DailyFundBalance struct {
	ID          int64           `json:"id"`
	CurrencyID  int64           `json:"currency_id"`
	BalanceDate time.Time       `json:"balance_date"`
	Committed   decimal.Decimal `json:"committed"`
	Deployed    decimal.Decimal `json:"deployed"`
	Available   decimal.Decimal `json:"available"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BalanceView is a balance snapshot enriched with currency display data.
type BalanceView struct {
	DailyFundBalance
	CurrencyCode   string `json:"currency_code"`
	CurrencyName   string `json:"currency_name"`
	CurrencySymbol string `json:"currency_symbol"`
}

// OwnerBalance is the net position of a single owner in one currency.
type OwnerBalance struct {
	OwnerID        int64           `json:"owner_id"`
	CurrencyID     int64           `json:"currency_id"`
	CurrencyCode   string          `json:"currency_code"`
	CurrencySymbol string          `json:"currency_symbol"`
	Invested       decimal.Decimal `json:"invested"`
	Borrowed       decimal.Decimal `json:"borrowed"`
	Net            decimal.Decimal `json:"net"`
}

// User is an account that owns instruments and authenticates against the API.
type User struct {
	ID                int64      `json:"id"`
	Username          string     `json:"username"`
	PasswordHash      string     `json:"-"`
	FullName          string     `json:"full_name"`
	Email             string     `json:"email"`
	State             string     `json:"state"`
	CreatedAt         time.Time  `json:"created_at"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	PasswordChangedAt time.Time  `json:"-"`
}
