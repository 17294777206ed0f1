package domain

import "context"

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define the boundary between the calculation core and
// persistence. Infrastructure implements them; services depend on them.

// Tx is the set of record operations that must commit together.
// Every call made through one Tx is part of a single atomic unit.
type Tx interface {
	// GetComplianceRecord returns the latest record for (ship, year) or ErrNotFound.
	GetComplianceRecord(ctx context.Context, shipID string, year int) (ComplianceRecord, error)

	// UpdateComplianceBalance overwrites the CB of the (ship, year) record.
	UpdateComplianceBalance(ctx context.Context, shipID string, year int, cb float64) error

	// SumBankEntries returns the ship's banked balance (sum of all entries).
	SumBankEntries(ctx context.Context, shipID string) (float64, error)

	// AppendBankEntry appends one signed entry to the ship's ledger.
	AppendBankEntry(ctx context.Context, shipID string, year int, amount float64) (BankEntry, error)

	// InsertPool stores a pool and its members. A ship already pooled for
	// the same year yields ErrConflict.
	InsertPool(ctx context.Context, pool Pool) (Pool, error)
}

// LedgerStore runs fn inside one serializable transaction. If fn returns an
// error nothing fn did is visible afterwards.
type LedgerStore interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// ComplianceStore persists computed compliance records.
type ComplianceStore interface {
	SaveComplianceRecord(ctx context.Context, rec ComplianceRecord) (ComplianceRecord, error)
	GetComplianceRecord(ctx context.Context, shipID string, year int) (ComplianceRecord, error)
	ListComplianceRecords(ctx context.Context, shipID string) ([]ComplianceRecord, error)
}

// BankStore reads the bank ledger.
type BankStore interface {
	ListBankEntries(ctx context.Context, shipID string) ([]BankEntry, error)
	SumBankEntries(ctx context.Context, shipID string) (float64, error)
}

// PoolStore reads committed pools.
type PoolStore interface {
	GetPool(ctx context.Context, id string) (Pool, error)
	ListPools(ctx context.Context, year int) ([]Pool, error)
}

// RouteStore persists routes and the per-year baseline.
type RouteStore interface {
	CreateRoute(ctx context.Context, route Route) (Route, error)
	ListRoutes(ctx context.Context) ([]Route, error)
	ListRoutesByYear(ctx context.Context, year int) ([]Route, error)
	GetBaselineRoute(ctx context.Context, year int) (Route, error)
	SetBaseline(ctx context.Context, routeID string) (Route, error)
}
