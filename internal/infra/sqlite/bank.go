package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fueleu/cbledger/internal/domain"
)

// ─── Bank Ledger ────────────────────────────────────────────────────────────
// Amounts are stored as decimal text and summed with shopspring/decimal so a
// long ledger of deposits and withdrawals balances to exactly zero when it
// should. Entries are never updated or deleted (enforced by triggers).

// ListBankEntries returns the ship's entries in append order.
func (db *DB) ListBankEntries(ctx context.Context, shipID string) ([]domain.BankEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, ship_id, year, amount, created_at
		FROM bank_entries WHERE ship_id = ? ORDER BY seq
	`, shipID)
	if err != nil {
		return nil, fmt.Errorf("list bank entries: %w", err)
	}
	defer rows.Close()

	var out []domain.BankEntry
	for rows.Next() {
		var (
			e         domain.BankEntry
			amount    string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.ShipID, &e.Year, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan bank entry: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("bank entry %s: %w", e.ID, err)
		}
		e.AmountGCO2eq = d.InexactFloat64()
		e.CreatedAt = fromMillis(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SumBankEntries returns the ship's banked balance.
func (db *DB) SumBankEntries(ctx context.Context, shipID string) (float64, error) {
	return sumBankEntries(ctx, db.db, shipID)
}

func sumBankEntries(ctx context.Context, q querier, shipID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rows, err := q.QueryContext(ctx, `SELECT amount FROM bank_entries WHERE ship_id = ?`, shipID)
	if err != nil {
		return 0, fmt.Errorf("sum bank entries: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return 0, fmt.Errorf("scan bank amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return 0, fmt.Errorf("parse bank amount %q: %w", amount, err)
		}
		total = total.Add(d)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("sum bank entries: %w", err)
	}
	return total.InexactFloat64(), nil
}

func appendBankEntry(ctx context.Context, q querier, shipID string, year int, amount float64) (domain.BankEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.BankEntry{}, err
	}
	e := domain.BankEntry{
		ID:           uuid.NewString(),
		ShipID:       shipID,
		Year:         year,
		AmountGCO2eq: amount,
		CreatedAt:    fromMillis(toMillis(time.Now())),
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO bank_entries (id, ship_id, year, amount, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.ShipID, e.Year, decimal.NewFromFloat(amount).String(), toMillis(e.CreatedAt))
	if err != nil {
		return domain.BankEntry{}, fmt.Errorf("append bank entry: %w", err)
	}
	return e, nil
}
