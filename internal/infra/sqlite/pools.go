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

// ─── Pools ──────────────────────────────────────────────────────────────────

// GetPool returns a pool with its members in allocation order.
func (db *DB) GetPool(ctx context.Context, id string) (domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Pool{}, err
	}
	var (
		p         domain.Pool
		createdAt int64
	)
	err := db.db.QueryRowContext(ctx, `
		SELECT id, year, total_initial, total_adjusted, created_at
		FROM pools WHERE id = ?
	`, id).Scan(&p.ID, &p.Year, &p.TotalInitialCB, &p.TotalAdjustedCB, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Pool{}, domain.NotFoundf("pool %s not found", id)
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("get pool: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)

	if p.Members, err = db.poolMembers(ctx, p.ID); err != nil {
		return domain.Pool{}, err
	}
	return p, nil
}

// ListPools returns pools newest first. year 0 lists every year.
func (db *DB) ListPools(ctx context.Context, year int) ([]domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := `SELECT id, year, total_initial, total_adjusted, created_at FROM pools`
	var args []any
	if year != 0 {
		query += ` WHERE year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	var pools []domain.Pool
	for rows.Next() {
		var (
			p         domain.Pool
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.Year, &p.TotalInitialCB, &p.TotalAdjustedCB, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		p.CreatedAt = fromMillis(createdAt)
		pools = append(pools, p)
	}
	// The single connection must be released before loading members.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}

	for i := range pools {
		if pools[i].Members, err = db.poolMembers(ctx, pools[i].ID); err != nil {
			return nil, err
		}
	}
	return pools, nil
}

func (db *DB) poolMembers(ctx context.Context, poolID string) ([]domain.PoolMember, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT ship_id, ship_name, cb_before, cb_after
		FROM pool_members WHERE pool_id = ? ORDER BY position
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("list pool members: %w", err)
	}
	defer rows.Close()

	var out []domain.PoolMember
	for rows.Next() {
		var m domain.PoolMember
		if err := rows.Scan(&m.ShipID, &m.ShipName, &m.CBBefore, &m.CBAfter); err != nil {
			return nil, fmt.Errorf("scan pool member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func insertPool(ctx context.Context, q querier, p domain.Pool) (domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Pool{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CreatedAt = fromMillis(toMillis(p.CreatedAt))

	for _, m := range p.Members {
		var existing string
		err := q.QueryRowContext(ctx, `
			SELECT pool_id FROM pool_members WHERE year = ? AND ship_id = ?
		`, p.Year, m.ShipID).Scan(&existing)
		if err == nil {
			return domain.Pool{}, domain.Conflictf("ship %s is already part of pool %s for %d", m.ShipID, existing, p.Year)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.Pool{}, fmt.Errorf("check pool membership: %w", err)
		}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO pools (id, year, total_initial, total_adjusted, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Year, p.TotalInitialCB, p.TotalAdjustedCB, toMillis(p.CreatedAt))
	if err != nil {
		if isConstraintError(err) {
			return domain.Pool{}, domain.Conflictf("pool %s already exists", p.ID)
		}
		return domain.Pool{}, fmt.Errorf("insert pool: %w", err)
	}

	for i, m := range p.Members {
		_, err := q.ExecContext(ctx, `
			INSERT INTO pool_members (pool_id, year, position, ship_id, ship_name, cb_before, cb_after)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Year, i, m.ShipID, m.ShipName, m.CBBefore, m.CBAfter)
		if err != nil {
			if isConstraintError(err) {
				return domain.Pool{}, domain.Conflictf("ship %s appears twice or is already pooled for %d", m.ShipID, p.Year)
			}
			return domain.Pool{}, fmt.Errorf("insert pool member: %w", err)
		}
	}
	return p, nil
}
