package domain

import (
	"errors"
	"fmt"
	"testing"
)

// ─── Status Tests ───────────────────────────────────────────────────────────

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		cb   float64
		want ComplianceStatus
	}{
		{"surplus", 175206.72, StatusSurplus},
		{"deficit", -228753.28, StatusDeficit},
		{"neutral", 0, StatusNeutral},
		{"tiny surplus", 1e-9, StatusSurplus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.cb); got != tt.want {
				t.Errorf("StatusFor(%v) = %q, want %q", tt.cb, got, tt.want)
			}
		})
	}
}

func TestComplianceStatus_Compliant(t *testing.T) {
	if !StatusSurplus.Compliant() {
		t.Error("SURPLUS should be compliant")
	}
	if !StatusNeutral.Compliant() {
		t.Error("NEUTRAL should be compliant")
	}
	if StatusDeficit.Compliant() {
		t.Error("DEFICIT should not be compliant")
	}
}

func TestComplianceRecord_Key(t *testing.T) {
	r := ComplianceRecord{ShipID: "IMO9321483", Year: 2025}
	if got := r.Key(); got != "IMO9321483/2025" {
		t.Errorf("Key() = %q", got)
	}
}

// ─── Fuel Record Tests ──────────────────────────────────────────────────────

func TestFuelRecordConstructors(t *testing.T) {
	r := Tons(FuelLNG, 12.5).WithMethaneSlip(0.02)
	if r.FuelTons == nil || *r.FuelTons != 12.5 {
		t.Fatalf("FuelTons = %v, want 12.5", r.FuelTons)
	}
	if r.EnergyMJ != nil {
		t.Error("EnergyMJ should be unset")
	}
	if r.MethaneSlipFraction == nil || *r.MethaneSlipFraction != 0.02 {
		t.Errorf("MethaneSlipFraction = %v, want 0.02", r.MethaneSlipFraction)
	}

	e := Energy(FuelHFO, 40400)
	if e.EnergyMJ == nil || *e.EnergyMJ != 40400 {
		t.Errorf("EnergyMJ = %v, want 40400", e.EnergyMJ)
	}
}

// ─── Ledger Tests ───────────────────────────────────────────────────────────

func TestBankEntry_Kind(t *testing.T) {
	if k := (BankEntry{AmountGCO2eq: 100}).Kind(); k != EntryDeposit {
		t.Errorf("Kind() = %q, want DEPOSIT", k)
	}
	if k := (BankEntry{AmountGCO2eq: -100}).Kind(); k != EntryWithdrawal {
		t.Errorf("Kind() = %q, want WITHDRAWAL", k)
	}
}

func TestPoolMember_Contribution(t *testing.T) {
	giver := PoolMember{CBBefore: 100000, CBAfter: 50000}
	if got := giver.Contribution(); got != 50000 {
		t.Errorf("giver contribution = %v, want 50000", got)
	}
	receiver := PoolMember{CBBefore: -30000, CBAfter: 0}
	if got := receiver.Contribution(); got != -30000 {
		t.Errorf("receiver contribution = %v, want -30000", got)
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind error
		name string
	}{
		{Validationf("amount must be positive"), ErrValidation, "validation"},
		{Bankingf("exceeds available CB"), ErrBanking, "banking"},
		{Poolingf("total CB is negative"), ErrPooling, "pooling"},
		{NotFoundf("no record"), ErrNotFound, "not_found"},
		{InsufficientFundsf("balance 80000 < 100000"), ErrInsufficientFunds, "insufficient_funds"},
		{Conflictf("already pooled"), ErrConflict, "conflict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			wrapped := fmt.Errorf("apply transfer: %w", tt.err)
			if !errors.Is(wrapped, tt.kind) {
				t.Error("kind lost through wrapping")
			}
			if got := KindOf(wrapped); got != tt.name {
				t.Errorf("KindOf() = %q, want %q", got, tt.name)
			}
		})
	}
}

func TestKindOf_Internal(t *testing.T) {
	if got := KindOf(errors.New("disk full")); got != "internal" {
		t.Errorf("KindOf() = %q, want internal", got)
	}
}

func TestError_Message(t *testing.T) {
	err := Bankingf("Transfer amount (%v) exceeds available CB (%v)", 150000, 100000)
	want := "Transfer amount (150000) exceeds available CB (100000)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
