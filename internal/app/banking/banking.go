// Package banking implements FuelEU banking: setting surplus CB aside in an
// append-only ledger and spending banked CB against a deficit.
//
// The rule functions are pure. They take the caller's current balances and
// return new ones without touching state. Service runs them inside a store
// transaction for the operations that move CB between records.
package banking

import (
	"math"

	"github.com/fueleu/cbledger/internal/domain"
)

// Check is the outcome of an eligibility test.
type Check struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// BankResult is the outcome of Bank.
type BankResult struct {
	UpdatedSourceCB   float64 `json:"updatedSourceCB"`
	TransferredAmount float64 `json:"transferredAmount"`
}

// TransferResult is the outcome of Transfer.
type TransferResult struct {
	UpdatedSourceCB float64 `json:"updatedSourceCB"`
	UpdatedTargetCB float64 `json:"updatedTargetCB"`
}

const msgOnlyPositive = "Only positive Compliance Balance can be banked"

// CanBank allows banking only for a strictly positive CB.
func CanBank(cb float64) Check {
	if !finite(cb) || cb <= 0 {
		return Check{Allowed: false, Reason: msgOnlyPositive}
	}
	return Check{Allowed: true}
}

// Bank moves amount out of a surplus CB into the bank.
func Bank(sourceCB, amount float64) (BankResult, error) {
	if !finite(sourceCB) {
		return BankResult{}, domain.Validationf("source CB must be a finite number")
	}
	if c := CanBank(sourceCB); !c.Allowed {
		return BankResult{}, domain.Bankingf("%s", c.Reason)
	}
	if !finite(amount) || amount <= 0 {
		return BankResult{}, domain.Validationf("Transfer amount must be positive")
	}
	if amount > sourceCB {
		return BankResult{}, domain.Bankingf("Transfer amount (%v) exceeds available CB (%v)", amount, sourceCB)
	}
	return BankResult{UpdatedSourceCB: sourceCB - amount, TransferredAmount: amount}, nil
}

// ApplyBankedToDeficit adds banked CB to a target balance. It does not check
// the bank; the caller must have verified the banked balance covers amount.
// The result may turn a deficit into a surplus.
func ApplyBankedToDeficit(targetCB, bankedAmount float64) (float64, error) {
	if !finite(targetCB) {
		return 0, domain.Validationf("target CB must be a finite number")
	}
	if !finite(bankedAmount) || bankedAmount <= 0 {
		return 0, domain.Validationf("Banked amount must be positive")
	}
	return targetCB + bankedAmount, nil
}

// Transfer moves amount directly from a surplus CB to a target CB without
// going through the bank.
func Transfer(sourceCB, targetCB, amount float64) (TransferResult, error) {
	if !finite(sourceCB) || !finite(targetCB) {
		return TransferResult{}, domain.Validationf("CB values must be finite numbers")
	}
	if sourceCB <= 0 {
		return TransferResult{}, domain.Bankingf("Source CB must be positive to transfer")
	}
	if !finite(amount) || amount <= 0 {
		return TransferResult{}, domain.Validationf("Transfer amount must be positive")
	}
	if amount > sourceCB {
		return TransferResult{}, domain.Bankingf("Transfer amount (%v) exceeds available CB (%v)", amount, sourceCB)
	}
	return TransferResult{UpdatedSourceCB: sourceCB - amount, UpdatedTargetCB: targetCB + amount}, nil
}

// RequiredTransfer returns the amount that brings targetCB to exactly zero.
func RequiredTransfer(targetCB float64) float64 {
	return math.Max(0, -targetCB)
}

// NeedsSupport reports whether cb is a deficit.
func NeedsSupport(cb float64) bool { return cb < 0 }

// CanProvideSupport reports whether cb is a surplus.
func CanProvideSupport(cb float64) bool { return cb > 0 }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
