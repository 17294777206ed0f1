package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fueleu/cbledger/internal/domain"
)

// ─── Routes ─────────────────────────────────────────────────────────────────

const routeColumns = `id, route_id, vessel_type, fuel_type, year, ghg_intensity,
	fuel_consumption, distance, total_emissions, is_baseline`

// CreateRoute stores a new route. A duplicate route id, or a second baseline
// for the same year, is domain.ErrConflict.
func (db *DB) CreateRoute(ctx context.Context, r domain.Route) (domain.Route, error) {
	if err := ctx.Err(); err != nil {
		return domain.Route{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO routes (`+routeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.RouteID, r.VesselType, r.FuelType, r.Year, r.GHGIntensity,
		r.FuelConsumption, r.Distance, r.TotalEmissions, boolToInt(r.IsBaseline))
	if err != nil {
		if isConstraintError(err) {
			return domain.Route{}, domain.Conflictf("route %s conflicts with an existing route or baseline", r.RouteID)
		}
		return domain.Route{}, fmt.Errorf("create route: %w", err)
	}
	return r, nil
}

// ListRoutes returns every route ordered by year then route id.
func (db *DB) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	return db.listRoutes(ctx, `ORDER BY year, route_id`)
}

// ListRoutesByYear returns the year's routes ordered by route id.
func (db *DB) ListRoutesByYear(ctx context.Context, year int) ([]domain.Route, error) {
	return db.listRoutes(ctx, `WHERE year = ? ORDER BY route_id`, year)
}

// GetBaselineRoute returns the year's baseline or domain.ErrNotFound.
func (db *DB) GetBaselineRoute(ctx context.Context, year int) (domain.Route, error) {
	if err := ctx.Err(); err != nil {
		return domain.Route{}, err
	}
	row := db.db.QueryRowContext(ctx, `
		SELECT `+routeColumns+` FROM routes WHERE year = ? AND is_baseline = 1
	`, year)
	r, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Route{}, domain.NotFoundf("no baseline route for %d", year)
	}
	return r, err
}

// SetBaseline makes routeID the baseline of its year, clearing the previous
// one in the same transaction.
func (db *DB) SetBaseline(ctx context.Context, routeID string) (domain.Route, error) {
	if err := ctx.Err(); err != nil {
		return domain.Route{}, err
	}
	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Route{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	row := sqlTx.QueryRowContext(ctx, `SELECT `+routeColumns+` FROM routes WHERE route_id = ?`, routeID)
	r, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Route{}, domain.NotFoundf("route %s not found", routeID)
	}
	if err != nil {
		return domain.Route{}, err
	}

	if _, err := sqlTx.ExecContext(ctx, `UPDATE routes SET is_baseline = 0 WHERE year = ? AND is_baseline = 1`, r.Year); err != nil {
		return domain.Route{}, fmt.Errorf("clear baseline: %w", err)
	}
	if _, err := sqlTx.ExecContext(ctx, `UPDATE routes SET is_baseline = 1 WHERE id = ?`, r.ID); err != nil {
		return domain.Route{}, fmt.Errorf("set baseline: %w", err)
	}
	if err := sqlTx.Commit(); err != nil {
		return domain.Route{}, fmt.Errorf("commit tx: %w", err)
	}
	r.IsBaseline = true
	return r, nil
}

func (db *DB) listRoutes(ctx context.Context, where string, args ...any) ([]domain.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := db.db.QueryContext(ctx, `SELECT `+routeColumns+` FROM routes `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var out []domain.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRoute(s rowScanner) (domain.Route, error) {
	var (
		r        domain.Route
		baseline int
	)
	err := s.Scan(&r.ID, &r.RouteID, &r.VesselType, &r.FuelType, &r.Year, &r.GHGIntensity,
		&r.FuelConsumption, &r.Distance, &r.TotalEmissions, &baseline)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan route: %w", err)
	}
	r.IsBaseline = baseline == 1
	return r, nil
}
