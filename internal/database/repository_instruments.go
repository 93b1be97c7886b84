package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// INSTRUMENTS
// ============================================================================

const instrumentViewColumns = `
	i.id, i.owner_id, i.currency_id, i.role, i.counterparty,
	i.principal, i.annual_rate, i.term_days, i.modality,
	i.start_date, i.maturity_date, i.total_interest, i.total_due,
	i.state, i.notes, i.created_at,
	c.code, c.symbol`

// CreateInstrument inserts an instrument together with its full payment
// schedule in one transaction. Either every row becomes visible or none.
func (r *Repository) CreateInstrument(ctx context.Context, inst *Instrument, obligations []PaymentObligation) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO instruments (
			owner_id, currency_id, role, counterparty, principal, annual_rate,
			term_days, modality, start_date, maturity_date, total_interest,
			total_due, state, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query,
		inst.OwnerID, inst.CurrencyID, inst.Role, inst.Counterparty,
		inst.Principal, inst.AnnualRate, inst.TermDays, inst.Modality,
		inst.StartDate, inst.MaturityDate, inst.TotalInterest,
		inst.TotalDue, inst.State, inst.Notes,
	).Scan(&inst.ID, &inst.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert instrument: %w", err)
	}

	obligationQuery := `
		INSERT INTO payment_obligations (
			instrument_id, sequence_no, principal, interest, total, due_date, state
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	for i := range obligations {
		ob := &obligations[i]
		ob.InstrumentID = inst.ID
		err = tx.QueryRow(ctx, obligationQuery,
			ob.InstrumentID, ob.SequenceNo, ob.Principal, ob.Interest,
			ob.Total, ob.DueDate, ob.State,
		).Scan(&ob.ID, &ob.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert obligation %d: %w", ob.SequenceNo, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit instrument creation: %w", err)
	}
	return nil
}

// GetInstrumentByID retrieves an instrument joined with its currency
func (r *Repository) GetInstrumentByID(ctx context.Context, id int64) (*InstrumentView, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + instrumentViewColumns + `
		FROM instruments i
		JOIN currencies c ON i.currency_id = c.id
		WHERE i.id = $1
	`
	return r.scanInstrumentRow(r.db.Pool.QueryRow(ctx, query, id))
}

// ListInstruments retrieves instruments of one role, most recent first.
// ownerID filters to a single owner when non-zero.
func (r *Repository) ListInstruments(ctx context.Context, role string, ownerID int64) ([]*InstrumentView, error) {
	query := `
		SELECT ` + instrumentViewColumns + `
		FROM instruments i
		JOIN currencies c ON i.currency_id = c.id
		WHERE i.role = $1
	`
	args := []interface{}{role}
	if ownerID != 0 {
		query += ` AND i.owner_id = $2`
		args = append(args, ownerID)
	}
	query += ` ORDER BY i.created_at DESC`

	return r.queryInstruments(ctx, query, args...)
}

// ListActiveInstruments retrieves ACTIVE instruments of one role ordered by
// ascending maturity, soonest-to-expire first.
func (r *Repository) ListActiveInstruments(ctx context.Context, role string, ownerID int64) ([]*InstrumentView, error) {
	query := `
		SELECT ` + instrumentViewColumns + `
		FROM instruments i
		JOIN currencies c ON i.currency_id = c.id
		WHERE i.role = $1 AND i.state = 'ACTIVE'
	`
	args := []interface{}{role}
	if ownerID != 0 {
		query += ` AND i.owner_id = $2`
		args = append(args, ownerID)
	}
	query += ` ORDER BY i.maturity_date ASC`

	return r.queryInstruments(ctx, query, args...)
}

// ListObligations retrieves an instrument's payment schedule in sequence order
func (r *Repository) ListObligations(ctx context.Context, instrumentID int64) ([]*PaymentObligation, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, instrument_id, sequence_no, principal, interest, total,
		       due_date, paid_at, state, created_at
		FROM payment_obligations
		WHERE instrument_id = $1
		ORDER BY sequence_no ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, instrumentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obligations []*PaymentObligation
	for rows.Next() {
		ob := &PaymentObligation{}
		err := rows.Scan(
			&ob.ID, &ob.InstrumentID, &ob.SequenceNo, &ob.Principal,
			&ob.Interest, &ob.Total, &ob.DueDate, &ob.PaidAt,
			&ob.State, &ob.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, ob)
	}
	return obligations, rows.Err()
}

// CancelInstrument transitions an ACTIVE instrument to CANCELLED and its
// PENDING obligations to CANCELLED in one transaction. Returns false without
// side effects when the instrument is missing or not ACTIVE. The state guard
// on the UPDATE is the tie-break against a concurrent maturity sweep:
// whichever write commits first wins the row, the loser matches zero rows.
func (r *Repository) CancelInstrument(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE instruments
		SET state = 'CANCELLED'
		WHERE id = $1 AND state = 'ACTIVE'
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel instrument: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE payment_obligations
		SET state = 'CANCELLED'
		WHERE instrument_id = $1 AND state = 'PENDING'
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel obligations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return true, nil
}

// GetInstrumentState retrieves only the lifecycle state of an instrument
func (r *Repository) GetInstrumentState(ctx context.Context, id int64) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var state string
	err := r.db.Pool.QueryRow(ctx, `SELECT state FROM instruments WHERE id = $1`, id).Scan(&state)
	if err != nil {
		return "", err
	}
	return state, nil
}

// ============================================================================
// MATURITY SWEEP
// ============================================================================

// MarkOverdueInstruments transitions every ACTIVE instrument whose maturity
// date is strictly before now to OVERDUE. Each row update is independently
// atomic; re-running is a no-op.
func (r *Repository) MarkOverdueInstruments(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE instruments
		SET state = 'OVERDUE'
		WHERE state = 'ACTIVE' AND maturity_date < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue instruments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkOverdueObligations transitions every PENDING obligation past its due
// date to OVERDUE, independently of the owning instrument's state. An
// instrument can still be ACTIVE while an interim obligation is overdue.
func (r *Repository) MarkOverdueObligations(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE payment_obligations
		SET state = 'OVERDUE'
		WHERE state = 'PENDING' AND due_date < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue obligations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ============================================================================
// AGGREGATES
// ============================================================================

// SumActivePrincipal sums the principal of ACTIVE instruments of one role in
// one currency.
func (r *Repository) SumActivePrincipal(ctx context.Context, currencyID int64, role string) (decimal.Decimal, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var sum decimal.Decimal
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(principal), 0)
		FROM instruments
		WHERE currency_id = $1 AND role = $2 AND state = 'ACTIVE'
	`, currencyID, role).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum active principal: %w", err)
	}
	return sum, nil
}

// GetOwnerBalances returns an owner's net position per currency over their
// ACTIVE instruments.
func (r *Repository) GetOwnerBalances(ctx context.Context, ownerID int64) ([]*OwnerBalance, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT i.currency_id, c.code, c.symbol,
		       COALESCE(SUM(i.principal) FILTER (WHERE i.role = 'DEPOSIT'), 0),
		       COALESCE(SUM(i.principal) FILTER (WHERE i.role = 'LOAN'), 0)
		FROM instruments i
		JOIN currencies c ON i.currency_id = c.id
		WHERE i.owner_id = $1 AND i.state = 'ACTIVE'
		GROUP BY i.currency_id, c.code, c.symbol
		ORDER BY c.code
	`
	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*OwnerBalance
	for rows.Next() {
		b := &OwnerBalance{OwnerID: ownerID}
		if err := rows.Scan(&b.CurrencyID, &b.CurrencyCode, &b.CurrencySymbol, &b.Invested, &b.Borrowed); err != nil {
			return nil, err
		}
		b.Net = b.Invested.Sub(b.Borrowed)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *Repository) queryInstruments(ctx context.Context, query string, args ...interface{}) ([]*InstrumentView, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []*InstrumentView
	for rows.Next() {
		v := &InstrumentView{}
		err := rows.Scan(
			&v.ID, &v.OwnerID, &v.CurrencyID, &v.Role, &v.Counterparty,
			&v.Principal, &v.AnnualRate, &v.TermDays, &v.Modality,
			&v.StartDate, &v.MaturityDate, &v.TotalInterest, &v.TotalDue,
			&v.State, &v.Notes, &v.CreatedAt,
			&v.CurrencyCode, &v.CurrencySymbol,
		)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, v)
	}
	return instruments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanInstrumentRow(row rowScanner) (*InstrumentView, error) {
	v := &InstrumentView{}
	err := row.Scan(
		&v.ID, &v.OwnerID, &v.CurrencyID, &v.Role, &v.Counterparty,
		&v.Principal, &v.AnnualRate, &v.TermDays, &v.Modality,
		&v.StartDate, &v.MaturityDate, &v.TotalInterest, &v.TotalDue,
		&v.State, &v.Notes, &v.CreatedAt,
		&v.CurrencyCode, &v.CurrencySymbol,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}
