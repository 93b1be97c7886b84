// Package schedule builds payment schedules for fund instruments.
//
// Interest is simple (non-compounding): principal * rate/100 * days/365.
// Under the MONTHLY modality deposits pay interest only until maturity while
// loans amortize evenly; this asymmetry is deliberate. Per-period shares are
// rounded down to the currency's minor unit and the final obligation absorbs
// the rounding remainder, so the schedule always sums exactly to the total
// due and no component ever goes negative.
package schedule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lending-fund-api/internal/database"
)

// daysPerYear is the simple-interest day basis.
var daysPerYear = decimal.NewFromInt(365)

// Terms are the instrument parameters the schedule derives from.
type Terms struct {
	Principal  decimal.Decimal
	AnnualRate decimal.Decimal // percentage, 0 < rate <= 100
	TermDays   int
	Modality   string // database.ModalityMonthly or database.ModalityBullet
	MinorUnits int32  // currency decimal places, e.g. 2 for USD
}

// Plan is the derived schedule for an instrument.
type Plan struct {
	MaturityDate  time.Time
	TotalInterest decimal.Decimal
	TotalDue      decimal.Decimal
	Obligations   []database.PaymentObligation
}

// TotalInterest computes the projected simple interest over the full term,
// rounded to the currency's minor unit.
func TotalInterest(principal, annualRate decimal.Decimal, termDays int, minorUnits int32) decimal.Decimal {
	days := decimal.NewFromInt(int64(termDays))
	return principal.
		Mul(annualRate).
		Div(decimal.NewFromInt(100)).
		Mul(days).
		Div(daysPerYear).
		Round(minorUnits)
}

// Build derives the full payment plan for an instrument starting at start.
// The obligation list is never empty; due dates are non-decreasing and the
// last one falls on the maturity date.
func Build(terms Terms, role string, start time.Time) (*Plan, error) {
	if terms.TermDays < 1 {
		return nil, fmt.Errorf("term days must be positive, got %d", terms.TermDays)
	}

	maturity := start.AddDate(0, 0, terms.TermDays)
	totalInterest := TotalInterest(terms.Principal, terms.AnnualRate, terms.TermDays, terms.MinorUnits)
	totalDue := terms.Principal.Add(totalInterest)

	plan := &Plan{
		MaturityDate:  maturity,
		TotalInterest: totalInterest,
		TotalDue:      totalDue,
	}

	switch terms.Modality {
	case database.ModalityBullet:
		plan.Obligations = []database.PaymentObligation{{
			SequenceNo: 1,
			Principal:  terms.Principal,
			Interest:   totalInterest,
			Total:      totalDue,
			DueDate:    maturity,
			State:      database.ObligationPending,
		}}
	case database.ModalityMonthly:
		plan.Obligations = buildMonthly(terms, role, start, maturity, totalInterest)
	default:
		return nil, fmt.Errorf("unknown payment modality %q", terms.Modality)
	}

	return plan, nil
}

func buildMonthly(terms Terms, role string, start, maturity time.Time, totalInterest decimal.Decimal) []database.PaymentObligation {
	payments := (terms.TermDays + 29) / 30 // ceil(termDays / 30)
	count := decimal.NewFromInt(int64(payments))

	// Shares round down so the remainder carried by the final payment is
	// never negative, even when tiny interest spreads over many payments.
	interestShare := totalInterest.Div(count).RoundDown(terms.MinorUnits)
	principalShare := decimal.Zero
	if role == database.RoleLoan {
		principalShare = terms.Principal.Div(count).RoundDown(terms.MinorUnits)
	}

	obligations := make([]database.PaymentObligation, 0, payments)
	paidInterest := decimal.Zero
	paidPrincipal := decimal.Zero

	for i := 1; i <= payments; i++ {
		interest := interestShare
		principal := principalShare

		if i == payments {
			// Final payment absorbs the rounding remainder; deposits also
			// return the full principal here.
			interest = totalInterest.Sub(paidInterest)
			if role == database.RoleLoan {
				principal = terms.Principal.Sub(paidPrincipal)
			} else {
				principal = terms.Principal
			}
		}

		obligations = append(obligations, database.PaymentObligation{
			SequenceNo: i,
			Principal:  principal,
			Interest:   interest,
			Total:      principal.Add(interest),
			DueDate:    monthlyDueDate(start, maturity, i, payments),
			State:      database.ObligationPending,
		})

		paidInterest = paidInterest.Add(interest)
		paidPrincipal = paidPrincipal.Add(principal)
	}

	return obligations
}

// monthlyDueDate places payment i calendar months after the start date. The
// final payment always falls on the maturity date, and earlier payments are
// clamped to it: calendar-month arithmetic can overshoot a day-based term
// (e.g. 61 term days spans two months plus a day), and due dates must stay
// non-decreasing with the last one equal to maturity.
func monthlyDueDate(start, maturity time.Time, i, payments int) time.Time {
	if i == payments {
		return maturity
	}
	due := start.AddDate(0, i, 0)
	if due.After(maturity) {
		return maturity
	}
	return due
}
