package domain

import "time"

// ─── Bank Ledger Types ──────────────────────────────────────────────────────
// The bank is an append-only ledger. A ship's banked balance is the sum of
// its entries; there is no stored running total. Corrections are compensating
// entries, never edits.

// EntryKind is derived from the sign of a bank entry.
type EntryKind string

const (
	EntryDeposit    EntryKind = "DEPOSIT"
	EntryWithdrawal EntryKind = "WITHDRAWAL"
)

// BankEntry is a single immutable row in the bank ledger.
// Year is the source year of the CB the entry moves.
type BankEntry struct {
	ID           string    `json:"id"`
	ShipID       string    `json:"shipId"`
	Year         int       `json:"year"`
	AmountGCO2eq float64   `json:"amountGco2eq"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Kind returns DEPOSIT for positive amounts and WITHDRAWAL otherwise.
func (e BankEntry) Kind() EntryKind {
	if e.AmountGCO2eq > 0 {
		return EntryDeposit
	}
	return EntryWithdrawal
}

// ─── Pool Types ─────────────────────────────────────────────────────────────

// Pool is a committed compliance pool. Member CB values are snapshots.
type Pool struct {
	ID              string       `json:"id"`
	Year            int          `json:"year"`
	TotalInitialCB  float64      `json:"totalInitialCB"`
	TotalAdjustedCB float64      `json:"totalAdjustedCB"`
	Members         []PoolMember `json:"members"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// PoolMember is one ship's position before and after pooling.
type PoolMember struct {
	ShipID   string  `json:"shipId"`
	ShipName string  `json:"shipName,omitempty"`
	CBBefore float64 `json:"cbBefore"`
	CBAfter  float64 `json:"cbAfter"`
}

// Contribution is positive for a net giver and negative for a receiver.
func (m PoolMember) Contribution() float64 { return m.CBBefore - m.CBAfter }
