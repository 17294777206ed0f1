package sqlite

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements in order. Each string is a single
// SQL statement (SQLite executes one at a time) and is idempotent.
func Migrations() []string {
	return []string{
		// One record per (ship, year); a recomputation replaces it.
		`CREATE TABLE IF NOT EXISTS compliance_records (
			id          TEXT PRIMARY KEY,
			ship_id     TEXT NOT NULL,
			ship_name   TEXT NOT NULL DEFAULT '',
			year        INTEGER NOT NULL,
			ghg_target  REAL NOT NULL,
			ghg_actual  REAL NOT NULL,
			energy_mj   REAL NOT NULL,
			cb          REAL NOT NULL,
			status      TEXT NOT NULL,
			computed_at INTEGER NOT NULL,
			UNIQUE(ship_id, year)
		)`,

		// Append-only bank ledger. Amounts are exact decimal strings.
		`CREATE TABLE IF NOT EXISTS bank_entries (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			ship_id    TEXT NOT NULL,
			year       INTEGER NOT NULL,
			amount     TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bank_entries_ship ON bank_entries(ship_id, seq)`,
		`CREATE TRIGGER IF NOT EXISTS bank_entries_no_update
			BEFORE UPDATE ON bank_entries
			BEGIN SELECT RAISE(ABORT, 'bank entries are append-only'); END`,
		`CREATE TRIGGER IF NOT EXISTS bank_entries_no_delete
			BEFORE DELETE ON bank_entries
			BEGIN SELECT RAISE(ABORT, 'bank entries are append-only'); END`,

		`CREATE TABLE IF NOT EXISTS pools (
			id              TEXT PRIMARY KEY,
			year            INTEGER NOT NULL,
			total_initial   REAL NOT NULL,
			total_adjusted  REAL NOT NULL,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pools_year ON pools(year, created_at)`,

		// A ship joins at most one pool per year.
		`CREATE TABLE IF NOT EXISTS pool_members (
			pool_id   TEXT NOT NULL REFERENCES pools(id),
			year      INTEGER NOT NULL,
			position  INTEGER NOT NULL,
			ship_id   TEXT NOT NULL,
			ship_name TEXT NOT NULL DEFAULT '',
			cb_before REAL NOT NULL,
			cb_after  REAL NOT NULL,
			PRIMARY KEY(pool_id, ship_id),
			UNIQUE(year, ship_id)
		)`,

		`CREATE TABLE IF NOT EXISTS routes (
			id               TEXT PRIMARY KEY,
			route_id         TEXT NOT NULL UNIQUE,
			vessel_type      TEXT NOT NULL DEFAULT '',
			fuel_type        TEXT NOT NULL DEFAULT '',
			year             INTEGER NOT NULL,
			ghg_intensity    REAL NOT NULL,
			fuel_consumption REAL NOT NULL DEFAULT 0,
			distance         REAL NOT NULL DEFAULT 0,
			total_emissions  REAL NOT NULL DEFAULT 0,
			is_baseline      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_routes_year ON routes(year)`,
		// At most one baseline per year.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_routes_baseline ON routes(year) WHERE is_baseline = 1`,
	}
}
