package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fueleu/cbledger/internal/domain"
)

// ─── Compliance Records ─────────────────────────────────────────────────────

const complianceColumns = `id, ship_id, ship_name, year, ghg_target, ghg_actual, energy_mj, cb, status, computed_at`

// SaveComplianceRecord stores rec as the (ship, year) record, replacing any
// earlier computation for the same key.
func (db *DB) SaveComplianceRecord(ctx context.Context, rec domain.ComplianceRecord) (domain.ComplianceRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ComputedAt.IsZero() {
		rec.ComputedAt = time.Now().UTC()
	}
	rec.Status = domain.StatusFor(rec.ComplianceBalance)

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO compliance_records (`+complianceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ship_id, year) DO UPDATE SET
			id          = excluded.id,
			ship_name   = excluded.ship_name,
			ghg_target  = excluded.ghg_target,
			ghg_actual  = excluded.ghg_actual,
			energy_mj   = excluded.energy_mj,
			cb          = excluded.cb,
			status      = excluded.status,
			computed_at = excluded.computed_at
	`, rec.ID, rec.ShipID, rec.ShipName, rec.Year, rec.GHGTarget, rec.GHGActual,
		rec.EnergyInScopeMJ, rec.ComplianceBalance, string(rec.Status), toMillis(rec.ComputedAt))
	if err != nil {
		return domain.ComplianceRecord{}, fmt.Errorf("save compliance record: %w", err)
	}
	rec.ComputedAt = fromMillis(toMillis(rec.ComputedAt))
	return rec, nil
}

// GetComplianceRecord returns the (ship, year) record or domain.ErrNotFound.
func (db *DB) GetComplianceRecord(ctx context.Context, shipID string, year int) (domain.ComplianceRecord, error) {
	return getComplianceRecord(ctx, db.db, shipID, year)
}

// ListComplianceRecords returns the ship's records by year. An empty shipID
// lists every ship.
func (db *DB) ListComplianceRecords(ctx context.Context, shipID string) ([]domain.ComplianceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := `SELECT ` + complianceColumns + ` FROM compliance_records`
	var args []any
	if shipID != "" {
		query += ` WHERE ship_id = ?`
		args = append(args, shipID)
	}
	query += ` ORDER BY ship_id, year`

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list compliance records: %w", err)
	}
	defer rows.Close()

	var out []domain.ComplianceRecord
	for rows.Next() {
		rec, err := scanComplianceRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func getComplianceRecord(ctx context.Context, q querier, shipID string, year int) (domain.ComplianceRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ComplianceRecord{}, err
	}
	row := q.QueryRowContext(ctx, `
		SELECT `+complianceColumns+`
		FROM compliance_records WHERE ship_id = ? AND year = ?
	`, shipID, year)
	rec, err := scanComplianceRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ComplianceRecord{}, domain.NotFoundf("no compliance record for ship %s in %d", shipID, year)
	}
	return rec, err
}

func updateComplianceBalance(ctx context.Context, q querier, shipID string, year int, cb float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE compliance_records SET cb = ?, status = ?
		WHERE ship_id = ? AND year = ?
	`, cb, string(domain.StatusFor(cb)), shipID, year)
	if err != nil {
		return fmt.Errorf("update compliance balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update compliance balance: %w", err)
	}
	if n == 0 {
		return domain.NotFoundf("no compliance record for ship %s in %d", shipID, year)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplianceRecord(s rowScanner) (domain.ComplianceRecord, error) {
	var (
		rec        domain.ComplianceRecord
		status     string
		computedAt int64
	)
	err := s.Scan(&rec.ID, &rec.ShipID, &rec.ShipName, &rec.Year, &rec.GHGTarget, &rec.GHGActual,
		&rec.EnergyInScopeMJ, &rec.ComplianceBalance, &status, &computedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan compliance record: %w", err)
	}
	rec.Status = domain.ComplianceStatus(status)
	rec.ComputedAt = fromMillis(computedAt)
	return rec, nil
}
