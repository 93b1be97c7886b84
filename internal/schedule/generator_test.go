package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lending-fund-api/internal/database"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func terms(principal, rate string, days int, modality string) Terms {
	return Terms{
		Principal:  dec(principal),
		AnnualRate: dec(rate),
		TermDays:   days,
		Modality:   modality,
		MinorUnits: 2,
	}
}

func TestTotalInterest(t *testing.T) {
	t.Run("360 day bullet example", func(t *testing.T) {
		// 1000 * 0.12 * (360/365) = 118.356... -> 118.36
		got := TotalInterest(dec("1000"), dec("12"), 360, 2)
		if !got.Equal(dec("118.36")) {
			t.Errorf("expected 118.36, got %s", got)
		}
	})

	t.Run("90 day term", func(t *testing.T) {
		// 1000 * 0.12 * (90/365) = 29.589... -> 29.59
		got := TotalInterest(dec("1000"), dec("12"), 90, 2)
		if !got.Equal(dec("29.59")) {
			t.Errorf("expected 29.59, got %s", got)
		}
	})

	t.Run("full year at full rate", func(t *testing.T) {
		got := TotalInterest(dec("500"), dec("100"), 365, 2)
		if !got.Equal(dec("500")) {
			t.Errorf("expected 500, got %s", got)
		}
	})
}

func TestBuildBullet(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	plan, err := Build(terms("1000", "12", 360, database.ModalityBullet), database.RoleDeposit, start)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	wantMaturity := time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC)
	if !plan.MaturityDate.Equal(wantMaturity) {
		t.Errorf("expected maturity %s, got %s", wantMaturity, plan.MaturityDate)
	}
	if !plan.TotalInterest.Equal(dec("118.36")) {
		t.Errorf("expected total interest 118.36, got %s", plan.TotalInterest)
	}
	if !plan.TotalDue.Equal(dec("1118.36")) {
		t.Errorf("expected total due 1118.36, got %s", plan.TotalDue)
	}

	if len(plan.Obligations) != 1 {
		t.Fatalf("expected exactly one obligation, got %d", len(plan.Obligations))
	}
	ob := plan.Obligations[0]
	if ob.SequenceNo != 1 {
		t.Errorf("expected sequence 1, got %d", ob.SequenceNo)
	}
	if !ob.DueDate.Equal(wantMaturity) {
		t.Errorf("expected due date %s, got %s", wantMaturity, ob.DueDate)
	}
	if !ob.Principal.Equal(dec("1000")) || !ob.Interest.Equal(dec("118.36")) || !ob.Total.Equal(dec("1118.36")) {
		t.Errorf("unexpected components: principal=%s interest=%s total=%s", ob.Principal, ob.Interest, ob.Total)
	}
	if ob.State != database.ObligationPending {
		t.Errorf("expected PENDING, got %s", ob.State)
	}
}

func TestBuildMonthlyDeposit(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	plan, err := Build(terms("1000", "12", 90, database.ModalityMonthly), database.RoleDeposit, start)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(plan.Obligations) != 3 {
		t.Fatalf("expected 3 obligations for 90 days, got %d", len(plan.Obligations))
	}

	// First two payments are interest only
	for _, ob := range plan.Obligations[:2] {
		if !ob.Principal.IsZero() {
			t.Errorf("payment %d: expected zero principal, got %s", ob.SequenceNo, ob.Principal)
		}
		if !ob.Interest.Equal(dec("9.86")) {
			t.Errorf("payment %d: expected interest 9.86, got %s", ob.SequenceNo, ob.Interest)
		}
	}

	// Final payment returns the principal plus the interest remainder
	last := plan.Obligations[2]
	if !last.Principal.Equal(dec("1000")) {
		t.Errorf("final payment: expected principal 1000, got %s", last.Principal)
	}
	if !last.Interest.Equal(dec("9.87")) {
		t.Errorf("final payment: expected interest 9.87, got %s", last.Interest)
	}
}

func TestBuildMonthlyLoan(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	plan, err := Build(terms("1000", "12", 90, database.ModalityMonthly), database.RoleLoan, start)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(plan.Obligations) != 3 {
		t.Fatalf("expected 3 obligations, got %d", len(plan.Obligations))
	}

	// Loans amortize evenly across all payments
	for _, ob := range plan.Obligations[:2] {
		if !ob.Principal.Equal(dec("333.33")) {
			t.Errorf("payment %d: expected principal 333.33, got %s", ob.SequenceNo, ob.Principal)
		}
		if !ob.Interest.Equal(dec("9.86")) {
			t.Errorf("payment %d: expected interest 9.86, got %s", ob.SequenceNo, ob.Interest)
		}
	}
	last := plan.Obligations[2]
	if !last.Principal.Equal(dec("333.34")) {
		t.Errorf("final payment: expected principal 333.34, got %s", last.Principal)
	}
	if !last.Interest.Equal(dec("9.87")) {
		t.Errorf("final payment: expected interest 9.87, got %s", last.Interest)
	}
}

// The schedule must always sum exactly to the total due: the final payment
// absorbs whatever remainder per-period rounding leaves behind.
func TestScheduleSumsToTotalDue(t *testing.T) {
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		terms    Terms
		role     string
	}{
		{"bullet deposit", terms("1000", "12", 360, database.ModalityBullet), database.RoleDeposit},
		{"monthly deposit 90d", terms("1000", "12", 90, database.ModalityMonthly), database.RoleDeposit},
		{"monthly loan 90d", terms("1000", "12", 90, database.ModalityMonthly), database.RoleLoan},
		{"monthly loan 365d", terms("7777.77", "9.5", 365, database.ModalityMonthly), database.RoleLoan},
		{"monthly deposit awkward amounts", terms("1234.56", "7.3", 200, database.ModalityMonthly), database.RoleDeposit},
		{"monthly loan awkward amounts", terms("999.99", "33.3", 100, database.ModalityMonthly), database.RoleLoan},
		{"one day bullet", terms("50", "1", 1, database.ModalityBullet), database.RoleLoan},
		{"ten year monthly loan", terms("100000", "15", 3650, database.ModalityMonthly), database.RoleLoan},
		{"tiny interest over many payments", terms("10", "1", 3650, database.ModalityMonthly), database.RoleDeposit},
		{"tiny loan over many payments", terms("10", "1", 3650, database.ModalityMonthly), database.RoleLoan},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := Build(tc.terms, tc.role, start)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			if len(plan.Obligations) == 0 {
				t.Fatal("obligation list must never be empty")
			}

			sum := decimal.Zero
			for _, ob := range plan.Obligations {
				if ob.Principal.IsNegative() || ob.Interest.IsNegative() {
					t.Errorf("payment %d has negative component", ob.SequenceNo)
				}
				if !ob.Total.Equal(ob.Principal.Add(ob.Interest)) {
					t.Errorf("payment %d: total %s != principal %s + interest %s",
						ob.SequenceNo, ob.Total, ob.Principal, ob.Interest)
				}
				sum = sum.Add(ob.Total)
			}
			if !sum.Equal(plan.TotalDue) {
				t.Errorf("schedule sums to %s, total due is %s", sum, plan.TotalDue)
			}
		})
	}
}

// When the interest share rounds to zero the final payment carries all of
// it; the remainder must never dip below zero no matter how many payments
// the term spreads over.
func TestTinyInterestCarriedByFinalPayment(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	plan, err := Build(terms("10", "1", 3650, database.ModalityMonthly), database.RoleDeposit, start)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(plan.Obligations) != 122 {
		t.Fatalf("expected 122 payments, got %d", len(plan.Obligations))
	}

	for _, ob := range plan.Obligations[:len(plan.Obligations)-1] {
		if !ob.Interest.IsZero() {
			t.Errorf("payment %d: expected zero interest share, got %s", ob.SequenceNo, ob.Interest)
		}
	}
	last := plan.Obligations[len(plan.Obligations)-1]
	if last.Interest.IsNegative() {
		t.Fatalf("final payment interest went negative: %s", last.Interest)
	}
	if !last.Interest.Equal(dec("1.00")) {
		t.Errorf("final payment: expected interest 1.00, got %s", last.Interest)
	}
	if !last.Principal.Equal(dec("10")) {
		t.Errorf("final payment: expected principal 10, got %s", last.Principal)
	}
}

func TestDueDateOrdering(t *testing.T) {
	starts := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), // month-end rollover
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),  // short month
		time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	termDays := []int{30, 31, 60, 61, 90, 180, 360, 365, 3650}

	for _, start := range starts {
		for _, days := range termDays {
			plan, err := Build(terms("1000", "10", days, database.ModalityMonthly), database.RoleLoan, start)
			if err != nil {
				t.Fatalf("Build(%s, %dd) failed: %v", start.Format("2006-01-02"), days, err)
			}

			for i := 1; i < len(plan.Obligations); i++ {
				prev, cur := plan.Obligations[i-1], plan.Obligations[i]
				if cur.SequenceNo != prev.SequenceNo+1 {
					t.Errorf("start=%s days=%d: sequence gap at %d", start.Format("2006-01-02"), days, cur.SequenceNo)
				}
				if cur.DueDate.Before(prev.DueDate) {
					t.Errorf("start=%s days=%d: due dates decrease at payment %d",
						start.Format("2006-01-02"), days, cur.SequenceNo)
				}
			}

			last := plan.Obligations[len(plan.Obligations)-1]
			if !last.DueDate.Equal(plan.MaturityDate) {
				t.Errorf("start=%s days=%d: last due date %s != maturity %s",
					start.Format("2006-01-02"), days, last.DueDate, plan.MaturityDate)
			}
		}
	}
}

func TestMonthlyPaymentCount(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		days int
		want int
	}{
		{1, 1},
		{30, 1},
		{31, 2},
		{60, 2},
		{61, 3},
		{90, 3},
		{360, 12},
		{365, 13},
	}
	for _, tc := range cases {
		plan, err := Build(terms("1000", "10", tc.days, database.ModalityMonthly), database.RoleDeposit, start)
		if err != nil {
			t.Fatalf("Build(%dd) failed: %v", tc.days, err)
		}
		if len(plan.Obligations) != tc.want {
			t.Errorf("%d days: expected %d payments, got %d", tc.days, tc.want, len(plan.Obligations))
		}
	}
}

func TestBuildRejectsUnknownModality(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := Build(terms("1000", "10", 30, "WEEKLY"), database.RoleDeposit, start); err == nil {
		t.Error("expected error for unknown modality")
	}
}

func TestBuildRejectsNonPositiveTerm(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := Build(terms("1000", "10", 0, database.ModalityBullet), database.RoleDeposit, start); err == nil {
		t.Error("expected error for zero term days")
	}
}
