// Package pooling forms FuelEU compliance pools: ships of one reporting year
// combine their CB so that surpluses offset deficits.
//
// Allocate is the greedy redistribution. It is pure and deterministic:
//
//  1. members are stably sorted by CB, highest first
//  2. each deficit, in that order, draws from the surpluses, in that order,
//     until it reaches zero or the surpluses run dry
//
// The result is checked against the pooling invariants (conservation, no
// deficit ship worse off, no surplus ship pushed negative) before it is
// reported valid.
package pooling

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fueleu/cbledger/internal/domain"
)

// ConservationTolerance is the allowed drift between total CB before and
// after allocation.
const ConservationTolerance = 0.001

// MinMembers is the smallest pool.
const MinMembers = 2

// Member is one ship entering a pool.
type Member struct {
	ShipID   string  `json:"shipId"`
	ShipName string  `json:"shipName,omitempty"`
	CB       float64 `json:"complianceBalance"`
}

// MemberResult is one ship's position after allocation. Contribution is
// positive for a net giver.
type MemberResult struct {
	ShipID       string  `json:"shipId"`
	ShipName     string  `json:"shipName,omitempty"`
	CBBefore     float64 `json:"cbBefore"`
	AdjustedCB   float64 `json:"adjustedCB"`
	Contribution float64 `json:"contribution"`
}

// Allocation is the outcome of Allocate. When IsValid is false,
// ValidationErrors says why and nothing may be persisted.
type Allocation struct {
	Members          []MemberResult `json:"members"`
	TotalInitialCB   float64        `json:"totalInitialCB"`
	TotalAdjustedCB  float64        `json:"totalAdjustedCB"`
	IsValid          bool           `json:"isValid"`
	ValidationErrors []string       `json:"validationErrors,omitempty"`
}

// Err returns nil for a valid allocation and a domain.ErrPooling error
// listing the violations otherwise.
func (a Allocation) Err() error {
	if a.IsValid {
		return nil
	}
	return domain.Poolingf("%s", strings.Join(a.ValidationErrors, "; "))
}

// PoolMembers converts the results into persisted pool members.
func (a Allocation) PoolMembers() []domain.PoolMember {
	out := make([]domain.PoolMember, len(a.Members))
	for i, m := range a.Members {
		out[i] = domain.PoolMember{ShipID: m.ShipID, ShipName: m.ShipName, CBBefore: m.CBBefore, CBAfter: m.AdjustedCB}
	}
	return out
}

// Validate checks the member list shape: at least two members, every ship id
// present and unique, every CB finite.
func Validate(members []Member) error {
	if len(members) < MinMembers {
		return domain.Validationf("Pool must have at least two members")
	}
	seen := make(map[string]struct{}, len(members))
	for i, m := range members {
		id := strings.TrimSpace(m.ShipID)
		if id == "" {
			return domain.Validationf("Member %d missing shipId", i)
		}
		if math.IsNaN(m.CB) || math.IsInf(m.CB, 0) {
			return domain.Validationf("Member %s has a non-finite compliance balance", id)
		}
		if _, dup := seen[id]; dup {
			return domain.Validationf("Duplicate ship IDs in pool")
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Allocate redistributes CB across members. A malformed member list is a
// domain.ErrValidation error; a pool that cannot be formed is reported as
// IsValid=false with a nil error.
func Allocate(members []Member) (Allocation, error) {
	if err := Validate(members); err != nil {
		return Allocation{}, err
	}

	total := 0.0
	for _, m := range members {
		total += m.CB
	}
	if total < 0 {
		return Allocation{
			Members:          []MemberResult{},
			TotalInitialCB:   total,
			TotalAdjustedCB:  total,
			IsValid:          false,
			ValidationErrors: []string{"Pool cannot be formed: total CB is negative"},
		}, nil
	}

	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CB > sorted[j].CB })

	results := make([]MemberResult, len(sorted))
	var surplus, deficit []int
	for i, m := range sorted {
		results[i] = MemberResult{
			ShipID:     strings.TrimSpace(m.ShipID),
			ShipName:   m.ShipName,
			CBBefore:   m.CB,
			AdjustedCB: m.CB,
		}
		switch {
		case m.CB > 0:
			surplus = append(surplus, i)
		case m.CB < 0:
			deficit = append(deficit, i)
		}
	}

	for _, d := range deficit {
		remaining := math.Abs(results[d].CBBefore)
		for _, s := range surplus {
			if remaining <= 0 {
				break
			}
			available := results[s].AdjustedCB
			if available <= 0 {
				continue
			}
			amount := math.Min(available, remaining)
			results[s].AdjustedCB -= amount
			results[s].Contribution += amount
			results[d].AdjustedCB += amount
			results[d].Contribution -= amount
			remaining -= amount
		}
	}

	adjusted := 0.0
	for _, r := range results {
		adjusted += r.AdjustedCB
	}
	alloc := Allocation{
		Members:         results,
		TotalInitialCB:  total,
		TotalAdjustedCB: adjusted,
	}
	alloc.ValidationErrors = checkInvariants(alloc)
	alloc.IsValid = len(alloc.ValidationErrors) == 0
	return alloc, nil
}

func checkInvariants(a Allocation) []string {
	var errs []string
	if a.TotalAdjustedCB < 0 {
		errs = append(errs, fmt.Sprintf("Total adjusted CB is negative: %v", a.TotalAdjustedCB))
	}
	for _, m := range a.Members {
		if m.CBBefore < 0 && m.AdjustedCB < m.CBBefore {
			errs = append(errs, fmt.Sprintf("Deficit ship %s exits worse off: %v -> %v", m.ShipID, m.CBBefore, m.AdjustedCB))
		}
		if m.CBBefore > 0 && m.AdjustedCB < 0 {
			errs = append(errs, fmt.Sprintf("Surplus ship %s exits negative: %v", m.ShipID, m.AdjustedCB))
		}
	}
	if math.Abs(a.TotalAdjustedCB-a.TotalInitialCB) > ConservationTolerance {
		errs = append(errs, fmt.Sprintf("CB not conserved: before %v, after %v", a.TotalInitialCB, a.TotalAdjustedCB))
	}
	return errs
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// Check is the outcome of CanFormPool.
type Check struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CanFormPool reports whether members could form a pool.
func CanFormPool(members []Member) Check {
	if err := Validate(members); err != nil {
		return Check{Reason: err.Error()}
	}
	total := 0.0
	for _, m := range members {
		total += m.CB
	}
	if total < 0 {
		return Check{Reason: fmt.Sprintf("Pool cannot be formed: total CB is negative (%v)", total)}
	}
	return Check{Allowed: true}
}

// Stats summarizes the CB mix of a prospective pool. TotalDeficit is a
// magnitude.
type Stats struct {
	TotalCB      float64 `json:"totalCB"`
	SurplusCount int     `json:"surplusCount"`
	DeficitCount int     `json:"deficitCount"`
	NeutralCount int     `json:"neutralCount"`
	TotalSurplus float64 `json:"totalSurplus"`
	TotalDeficit float64 `json:"totalDeficit"`
}

// ComputeStats returns the Stats of members.
func ComputeStats(members []Member) Stats {
	var s Stats
	for _, m := range members {
		s.TotalCB += m.CB
		switch {
		case m.CB > 0:
			s.SurplusCount++
			s.TotalSurplus += m.CB
		case m.CB < 0:
			s.DeficitCount++
			s.TotalDeficit += -m.CB
		default:
			s.NeutralCount++
		}
	}
	return s
}
