package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fueleu/cbledger/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRecord(t *testing.T, db *DB, shipID string, year int, cb float64) domain.ComplianceRecord {
	t.Helper()
	rec, err := db.SaveComplianceRecord(context.Background(), domain.ComplianceRecord{
		ShipID:            shipID,
		Year:              year,
		GHGTarget:         89.3368,
		GHGActual:         85,
		EnergyInScopeMJ:   40400,
		ComplianceBalance: cb,
	})
	if err != nil {
		t.Fatalf("SaveComplianceRecord() error: %v", err)
	}
	return rec
}

// ─── Open ───────────────────────────────────────────────────────────────────

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	seedRecord(t, db, "S1", 2025, 100)
	db.Close()

	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	rec, err := db2.GetComplianceRecord(context.Background(), "S1", 2025)
	if err != nil {
		t.Fatalf("GetComplianceRecord() after reopen: %v", err)
	}
	if rec.ComplianceBalance != 100 {
		t.Errorf("cb = %v, want 100", rec.ComplianceBalance)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("expected error for empty path")
	}
}

// ─── Compliance Records ─────────────────────────────────────────────────────

func TestComplianceRecord_SaveGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	computed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	saved, err := db.SaveComplianceRecord(ctx, domain.ComplianceRecord{
		ShipID: "IMO1", ShipName: "Aurora", Year: 2025,
		GHGTarget: 89.3368, GHGActual: 85, EnergyInScopeMJ: 40400,
		ComplianceBalance: 175206.72, ComputedAt: computed,
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" {
		t.Error("ID should be generated")
	}

	got, err := db.GetComplianceRecord(ctx, "IMO1", 2025)
	if err != nil {
		t.Fatal(err)
	}
	if got.ShipName != "Aurora" || got.Status != domain.StatusSurplus {
		t.Errorf("got %+v", got)
	}
	if !got.ComputedAt.Equal(computed) {
		t.Errorf("ComputedAt = %v, want %v", got.ComputedAt, computed)
	}
}

func TestComplianceRecord_LatestWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedRecord(t, db, "S1", 2025, 100)
	seedRecord(t, db, "S1", 2025, -50)

	got, err := db.GetComplianceRecord(ctx, "S1", 2025)
	if err != nil {
		t.Fatal(err)
	}
	if got.ComplianceBalance != -50 || got.Status != domain.StatusDeficit {
		t.Errorf("got cb=%v status=%s, want -50 DEFICIT", got.ComplianceBalance, got.Status)
	}

	all, err := db.ListComplianceRecords(ctx, "S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("len = %d, want 1", len(all))
	}
}

func TestComplianceRecord_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetComplianceRecord(context.Background(), "ghost", 2025)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestComplianceRecord_List(t *testing.T) {
	db := newTestDB(t)
	seedRecord(t, db, "S2", 2026, 1)
	seedRecord(t, db, "S1", 2026, 2)
	seedRecord(t, db, "S1", 2025, 3)

	s1, err := db.ListComplianceRecords(context.Background(), "S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(s1) != 2 || s1[0].Year != 2025 || s1[1].Year != 2026 {
		t.Errorf("S1 records = %+v", s1)
	}

	all, _ := db.ListComplianceRecords(context.Background(), "")
	if len(all) != 3 || all[2].ShipID != "S2" {
		t.Errorf("all records = %+v", all)
	}
}

// ─── Transactions ───────────────────────────────────────────────────────────

func TestWithTx_CommitUpdatesStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedRecord(t, db, "S1", 2025, -100)

	err := db.WithTx(ctx, func(tx domain.Tx) error {
		return tx.UpdateComplianceBalance(ctx, "S1", 2025, 0)
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetComplianceRecord(ctx, "S1", 2025)
	if got.ComplianceBalance != 0 || got.Status != domain.StatusNeutral {
		t.Errorf("got cb=%v status=%s", got.ComplianceBalance, got.Status)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedRecord(t, db, "S1", 2025, 1000)
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.AppendBankEntry(ctx, "S1", 2025, 500); err != nil {
			return err
		}
		if err := tx.UpdateComplianceBalance(ctx, "S1", 2025, 500); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	bal, _ := db.SumBankEntries(ctx, "S1")
	if bal != 0 {
		t.Errorf("balance = %v after rollback, want 0", bal)
	}
	rec, _ := db.GetComplianceRecord(ctx, "S1", 2025)
	if rec.ComplianceBalance != 1000 {
		t.Errorf("cb = %v after rollback, want 1000", rec.ComplianceBalance)
	}
}

func TestWithTx_UpdateMissingRecord(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	err := db.WithTx(ctx, func(tx domain.Tx) error {
		return tx.UpdateComplianceBalance(ctx, "ghost", 2025, 1)
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestWithTx_CanceledContext(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := db.WithTx(ctx, func(domain.Tx) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Errorf("err = %v called = %v", err, called)
	}
}

// ─── Bank Ledger ────────────────────────────────────────────────────────────

func TestBankEntries_ExactSum(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx domain.Tx) error {
		for _, amt := range []float64{0.1, 0.2, -0.3} {
			if _, err := tx.AppendBankEntry(ctx, "S1", 2025, amt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	bal, err := db.SumBankEntries(ctx, "S1")
	if err != nil {
		t.Fatal(err)
	}
	if bal != 0 {
		t.Errorf("balance = %v, want exactly 0", bal)
	}

	entries, err := db.ListBankEntries(ctx, "S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].AmountGCO2eq != 0.1 || entries[2].Kind() != domain.EntryWithdrawal {
		t.Errorf("entries = %+v", entries)
	}
}

func TestBankEntries_AppendOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_ = db.WithTx(ctx, func(tx domain.Tx) error {
		_, err := tx.AppendBankEntry(ctx, "S1", 2025, 100)
		return err
	})

	if _, err := db.db.Exec(`UPDATE bank_entries SET amount = '1'`); err == nil {
		t.Error("update of a bank entry should be rejected")
	}
	if _, err := db.db.Exec(`DELETE FROM bank_entries`); err == nil {
		t.Error("delete of a bank entry should be rejected")
	}
}

func TestBankEntries_EmptyShip(t *testing.T) {
	db := newTestDB(t)
	bal, err := db.SumBankEntries(context.Background(), "nobody")
	if err != nil || bal != 0 {
		t.Errorf("SumBankEntries() = %v, %v", bal, err)
	}
}

// ─── Pools ──────────────────────────────────────────────────────────────────

func insertTestPool(t *testing.T, db *DB, year int, members ...domain.PoolMember) (domain.Pool, error) {
	t.Helper()
	ctx := context.Background()
	var out domain.Pool
	err := db.WithTx(ctx, func(tx domain.Tx) error {
		p, err := tx.InsertPool(ctx, domain.Pool{Year: year, Members: members})
		out = p
		return err
	})
	return out, err
}

func TestPools_InsertGetList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, err := insertTestPool(t, db, 2025,
		domain.PoolMember{ShipID: "A", CBBefore: 100000, CBAfter: 50000},
		domain.PoolMember{ShipID: "B", CBBefore: -30000, CBAfter: 0},
		domain.PoolMember{ShipID: "C", CBBefore: -20000, CBAfter: 0},
	)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID == "" {
		t.Fatal("pool ID should be generated")
	}

	got, err := db.GetPool(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Members) != 3 || got.Members[0].ShipID != "A" || got.Members[2].ShipID != "C" {
		t.Errorf("members = %+v", got.Members)
	}

	if _, err := insertTestPool(t, db, 2026, domain.PoolMember{ShipID: "A"}, domain.PoolMember{ShipID: "D"}); err != nil {
		t.Fatal(err)
	}

	y2025, err := db.ListPools(ctx, 2025)
	if err != nil {
		t.Fatal(err)
	}
	if len(y2025) != 1 || len(y2025[0].Members) != 3 {
		t.Errorf("2025 pools = %+v", y2025)
	}
	all, _ := db.ListPools(ctx, 0)
	if len(all) != 2 {
		t.Errorf("all pools = %d, want 2", len(all))
	}
}

func TestPools_ShipPooledTwiceInYear(t *testing.T) {
	db := newTestDB(t)
	if _, err := insertTestPool(t, db, 2025, domain.PoolMember{ShipID: "A"}, domain.PoolMember{ShipID: "B"}); err != nil {
		t.Fatal(err)
	}

	_, err := insertTestPool(t, db, 2025, domain.PoolMember{ShipID: "C"}, domain.PoolMember{ShipID: "B"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	pools, _ := db.ListPools(context.Background(), 2025)
	if len(pools) != 1 {
		t.Errorf("pools = %d, want 1 (second insert rolled back)", len(pools))
	}
}

func TestPools_GetNotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetPool(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// ─── Routes ─────────────────────────────────────────────────────────────────

func seedRoutes(t *testing.T, db *DB) {
	t.Helper()
	for _, r := range []domain.Route{
		{RouteID: "R001", VesselType: "Container", FuelType: "HFO", Year: 2024, GHGIntensity: 91.0},
		{RouteID: "R002", VesselType: "BulkCarrier", FuelType: "LNG", Year: 2024, GHGIntensity: 88.0},
		{RouteID: "R004", VesselType: "RoRo", FuelType: "HFO", Year: 2025, GHGIntensity: 89.2, IsBaseline: true},
		{RouteID: "R005", VesselType: "Container", FuelType: "LNG", Year: 2025, GHGIntensity: 90.5},
	} {
		if _, err := db.CreateRoute(context.Background(), r); err != nil {
			t.Fatalf("CreateRoute(%s) error: %v", r.RouteID, err)
		}
	}
}

func TestRoutes_CreateList(t *testing.T) {
	db := newTestDB(t)
	seedRoutes(t, db)
	ctx := context.Background()

	all, err := db.ListRoutes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].RouteID != "R001" {
		t.Errorf("routes = %+v", all)
	}
	y2025, _ := db.ListRoutesByYear(ctx, 2025)
	if len(y2025) != 2 {
		t.Errorf("2025 routes = %d, want 2", len(y2025))
	}

	_, err = db.CreateRoute(ctx, domain.Route{RouteID: "R001", Year: 2024, GHGIntensity: 1})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate route err = %v, want ErrConflict", err)
	}
	_, err = db.CreateRoute(ctx, domain.Route{RouteID: "R006", Year: 2025, GHGIntensity: 1, IsBaseline: true})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second baseline err = %v, want ErrConflict", err)
	}
}

func TestRoutes_SetBaseline(t *testing.T) {
	db := newTestDB(t)
	seedRoutes(t, db)
	ctx := context.Background()

	if _, err := db.GetBaselineRoute(ctx, 2024); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	r, err := db.SetBaseline(ctx, "R001")
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsBaseline {
		t.Error("returned route should be baseline")
	}

	if _, err := db.SetBaseline(ctx, "R002"); err != nil {
		t.Fatal(err)
	}
	base, err := db.GetBaselineRoute(ctx, 2024)
	if err != nil {
		t.Fatal(err)
	}
	if base.RouteID != "R002" {
		t.Errorf("baseline = %s, want R002", base.RouteID)
	}

	other, _ := db.GetBaselineRoute(ctx, 2025)
	if other.RouteID != "R004" {
		t.Errorf("2025 baseline = %s, want R004 (untouched)", other.RouteID)
	}

	if _, err := db.SetBaseline(ctx, "R999"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
