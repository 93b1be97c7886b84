package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"lending-fund-api/internal/clock"
	"lending-fund-api/internal/database"
)

type balanceKey struct {
	currencyID int64
	date       string
}

type fakeStore struct {
	currencies []*database.Currency
	deposits   map[int64]decimal.Decimal // currencyID -> active deposit principal
	loans      map[int64]decimal.Decimal
	upserts    map[balanceKey]*database.DailyFundBalance
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		currencies: []*database.Currency{
			{ID: 1, Code: "USD", State: database.CurrencyActive},
			{ID: 2, Code: "EUR", State: database.CurrencyActive},
		},
		deposits: map[int64]decimal.Decimal{},
		loans:    map[int64]decimal.Decimal{},
		upserts:  map[balanceKey]*database.DailyFundBalance{},
	}
}

func (f *fakeStore) ListActiveCurrencies(ctx context.Context) ([]*database.Currency, error) {
	return f.currencies, nil
}

func (f *fakeStore) SumActivePrincipal(ctx context.Context, currencyID int64, role string) (decimal.Decimal, error) {
	m := f.deposits
	if role == database.RoleLoan {
		m = f.loans
	}
	if v, ok := m[currencyID]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (f *fakeStore) UpsertDailyBalance(ctx context.Context, b *database.DailyFundBalance) error {
	key := balanceKey{b.CurrencyID, b.BalanceDate.Format("2006-01-02")}
	f.upserts[key] = b
	return nil
}

func (f *fakeStore) GetLatestBalance(ctx context.Context, currencyID int64) (*database.BalanceView, error) {
	var latest *database.DailyFundBalance
	for _, b := range f.upserts {
		if b.CurrencyID != currencyID {
			continue
		}
		if latest == nil || b.BalanceDate.After(latest.BalanceDate) {
			latest = b
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	return &database.BalanceView{DailyFundBalance: *latest}, nil
}

func (f *fakeStore) GetConsolidatedBalances(ctx context.Context) ([]*database.BalanceView, error) {
	var out []*database.BalanceView
	for _, c := range f.currencies {
		if v, err := f.GetLatestBalance(ctx, c.ID); err == nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) GetBalanceHistory(ctx context.Context, currencyID int64, days int, today time.Time) ([]*database.BalanceView, error) {
	cutoff := today.AddDate(0, 0, -days)
	var out []*database.BalanceView
	for _, b := range f.upserts {
		if b.CurrencyID == currencyID && !b.BalanceDate.Before(cutoff) {
			out = append(out, &database.BalanceView{DailyFundBalance: *b})
		}
	}
	return out, nil
}

func (f *fakeStore) GetOwnerBalances(ctx context.Context, ownerID int64) ([]*database.OwnerBalance, error) {
	return nil, nil
}

var testNow = time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestConsolidator(store *fakeStore) *Consolidator {
	return NewConsolidator(store, nil, clock.Fixed{T: testNow}, zerolog.Nop())
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("writes one row per active currency", func(t *testing.T) {
		store := newFakeStore()
		store.deposits[1] = dec("10000")
		store.loans[1] = dec("4000")
		store.deposits[2] = dec("500.50")

		written, err := newTestConsolidator(store).Run(ctx)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(written) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(written))
		}

		usd := store.upserts[balanceKey{1, "2024-06-01"}]
		if usd == nil {
			t.Fatal("no USD row for today")
		}
		if !usd.Committed.Equal(dec("10000")) {
			t.Errorf("committed = %s, want 10000", usd.Committed)
		}
		if !usd.Deployed.Equal(dec("4000")) {
			t.Errorf("deployed = %s, want 4000", usd.Deployed)
		}
		if !usd.Available.Equal(dec("6000")) {
			t.Errorf("available = %s, want 6000", usd.Available)
		}
		if !usd.Total.Equal(usd.Committed) {
			t.Errorf("total = %s, want committed %s", usd.Total, usd.Committed)
		}

		eur := store.upserts[balanceKey{2, "2024-06-01"}]
		if eur == nil {
			t.Fatal("no EUR row for today")
		}
		if !eur.Available.Equal(dec("500.50")) {
			t.Errorf("EUR available = %s, want 500.50", eur.Available)
		}
	})

	t.Run("rerun overwrites the same day", func(t *testing.T) {
		store := newFakeStore()
		store.deposits[1] = dec("100")

		c := newTestConsolidator(store)
		if _, err := c.Run(ctx); err != nil {
			t.Fatalf("first run failed: %v", err)
		}

		store.deposits[1] = dec("250")
		if _, err := c.Run(ctx); err != nil {
			t.Fatalf("second run failed: %v", err)
		}

		row := store.upserts[balanceKey{1, "2024-06-01"}]
		if !row.Committed.Equal(dec("250")) {
			t.Errorf("expected rerun to overwrite, got committed %s", row.Committed)
		}
		// Still exactly one row per currency per day.
		count := 0
		for k := range store.upserts {
			if k.currencyID == 1 {
				count++
			}
		}
		if count != 1 {
			t.Errorf("expected 1 USD row, got %d", count)
		}
	})

	t.Run("available can go negative when overdeployed", func(t *testing.T) {
		store := newFakeStore()
		store.deposits[1] = dec("1000")
		store.loans[1] = dec("1500")

		if _, err := newTestConsolidator(store).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		row := store.upserts[balanceKey{1, "2024-06-01"}]
		if !row.Available.Equal(dec("-500")) {
			t.Errorf("available = %s, want -500", row.Available)
		}
	})
}

func TestLatest(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestConsolidator(store)

	if _, err := c.Latest(ctx, 1); !errors.Is(err, ErrNoBalance) {
		t.Errorf("expected ErrNoBalance, got %v", err)
	}

	store.deposits[1] = dec("777")
	if _, err := c.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	view, err := c.Latest(ctx, 1)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if !view.Committed.Equal(dec("777")) {
		t.Errorf("committed = %s, want 777", view.Committed)
	}
}

func TestHistoryDefaultsWindow(t *testing.T) {
	store := newFakeStore()
	c := newTestConsolidator(store)

	// A zero or negative window falls back to 30 days rather than erroring.
	if _, err := c.History(context.Background(), 1, 0); err != nil {
		t.Fatalf("History failed: %v", err)
	}
}
