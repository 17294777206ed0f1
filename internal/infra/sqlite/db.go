// Package sqlite is the ledger's persistence layer on modernc.org/sqlite
// (pure Go, no cgo).
//
// The store owns a single connection. Every transaction starts with
// BEGIN IMMEDIATE so two mutations touching the same ships are serialized
// by SQLite's write lock. Code running inside WithTx must only use the Tx it
// was handed: the pool has one connection and the transaction holds it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/fueleu/cbledger/internal/domain"
)

// FileName is the database file created inside the storage directory.
const FileName = "cbledger.db"

// DB is the SQLite-backed ledger store.
type DB struct {
	db   *sql.DB
	path string
}

var (
	_ domain.LedgerStore     = (*DB)(nil)
	_ domain.ComplianceStore = (*DB)(nil)
	_ domain.BankStore       = (*DB)(nil)
	_ domain.PoolStore       = (*DB)(nil)
	_ domain.RouteStore      = (*DB)(nil)
)

// Open opens (creating if needed) the database in dir and applies migrations.
func Open(dir string) (*DB, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	path := filepath.Join(filepath.Clean(dir), FileName)
	dsn := path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	db := &DB{db: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.db == nil {
		return nil
	}
	return db.db.Close()
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error { return db.db.PingContext(ctx) }

func (db *DB) migrate() error {
	for i, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// WithTx runs fn in one IMMEDIATE transaction. fn's error rolls everything
// back and is returned unchanged.
func (db *DB) WithTx(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&tx{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// tx implements domain.Tx over one *sql.Tx.
type tx struct {
	q *sql.Tx
}

func (t *tx) GetComplianceRecord(ctx context.Context, shipID string, year int) (domain.ComplianceRecord, error) {
	return getComplianceRecord(ctx, t.q, shipID, year)
}

func (t *tx) UpdateComplianceBalance(ctx context.Context, shipID string, year int, cb float64) error {
	return updateComplianceBalance(ctx, t.q, shipID, year, cb)
}

func (t *tx) SumBankEntries(ctx context.Context, shipID string) (float64, error) {
	return sumBankEntries(ctx, t.q, shipID)
}

func (t *tx) AppendBankEntry(ctx context.Context, shipID string, year int, amount float64) (domain.BankEntry, error) {
	return appendBankEntry(ctx, t.q, shipID, year, amount)
}

func (t *tx) InsertPool(ctx context.Context, pool domain.Pool) (domain.Pool, error) {
	return insertPool(ctx, t.q, pool)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT ||
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
