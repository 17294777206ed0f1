package pooling

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fueleu/cbledger/internal/domain"
)

func byShip(a Allocation) map[string]MemberResult {
	out := make(map[string]MemberResult, len(a.Members))
	for _, m := range a.Members {
		out[m.ShipID] = m
	}
	return out
}

// ─── Scenarios ──────────────────────────────────────────────────────────────

func TestAllocate_OneSurplusTwoDeficits(t *testing.T) {
	a, err := Allocate([]Member{
		{ShipID: "A", CB: 100_000},
		{ShipID: "B", CB: -30_000},
		{ShipID: "C", CB: -20_000},
	})
	require.NoError(t, err)
	require.True(t, a.IsValid, a.ValidationErrors)

	got := byShip(a)
	assert.Equal(t, 50_000.0, got["A"].AdjustedCB)
	assert.Equal(t, 50_000.0, got["A"].Contribution)
	assert.Zero(t, got["B"].AdjustedCB)
	assert.Equal(t, -30_000.0, got["B"].Contribution)
	assert.Zero(t, got["C"].AdjustedCB)
	assert.Equal(t, 50_000.0, a.TotalInitialCB)
	assert.Equal(t, 50_000.0, a.TotalAdjustedCB)
	assert.NoError(t, a.Err())
}

func TestAllocate_NegativeTotalRefused(t *testing.T) {
	a, err := Allocate([]Member{
		{ShipID: "A", CB: 20_000},
		{ShipID: "B", CB: -50_000},
	})
	require.NoError(t, err)
	assert.False(t, a.IsValid)
	assert.Equal(t, -30_000.0, a.TotalInitialCB)
	assert.Equal(t, -30_000.0, a.TotalAdjustedCB)
	assert.Empty(t, a.Members)
	assert.Equal(t, []string{"Pool cannot be formed: total CB is negative"}, a.ValidationErrors)

	err = a.Err()
	assert.ErrorIs(t, err, domain.ErrPooling)
	assert.Contains(t, err.Error(), "total CB is negative")
}

func TestAllocate_ResultsInDescendingOrder(t *testing.T) {
	a, err := Allocate([]Member{
		{ShipID: "low", CB: -10},
		{ShipID: "zero", CB: 0},
		{ShipID: "high", CB: 30},
	})
	require.NoError(t, err)
	require.Len(t, a.Members, 3)
	assert.Equal(t, "high", a.Members[0].ShipID)
	assert.Equal(t, "zero", a.Members[1].ShipID)
	assert.Equal(t, "low", a.Members[2].ShipID)
	assert.Zero(t, a.Members[1].Contribution, "neutral ships are untouched")
}

func TestAllocate_TieBreakIsInputOrder(t *testing.T) {
	first, err := Allocate([]Member{
		{ShipID: "A", CB: 50},
		{ShipID: "B", CB: 50},
		{ShipID: "C", CB: -60},
	})
	require.NoError(t, err)
	got := byShip(first)
	assert.Equal(t, 0.0, got["A"].AdjustedCB)
	assert.Equal(t, 40.0, got["B"].AdjustedCB)

	swapped, err := Allocate([]Member{
		{ShipID: "B", CB: 50},
		{ShipID: "A", CB: 50},
		{ShipID: "C", CB: -60},
	})
	require.NoError(t, err)
	got = byShip(swapped)
	assert.Equal(t, 0.0, got["B"].AdjustedCB)
	assert.Equal(t, 40.0, got["A"].AdjustedCB)
}

func TestAllocate_DeficitsServedLargestCBFirst(t *testing.T) {
	// C (-10) ranks above B (-40), so C is served first and both are covered.
	a, err := Allocate([]Member{
		{ShipID: "A", CB: 30},
		{ShipID: "S", CB: 20},
		{ShipID: "B", CB: -40},
		{ShipID: "C", CB: -10},
	})
	require.NoError(t, err)
	require.True(t, a.IsValid)
	got := byShip(a)
	assert.Equal(t, 0.0, got["A"].AdjustedCB)
	assert.Equal(t, 0.0, got["S"].AdjustedCB)
	assert.Equal(t, 0.0, got["B"].AdjustedCB)
	assert.Equal(t, 0.0, got["C"].AdjustedCB)
	assert.Equal(t, 30.0, got["A"].Contribution)
	assert.Equal(t, 20.0, got["S"].Contribution)
}

func TestAllocate_ExactlyZeroTotal(t *testing.T) {
	a, err := Allocate([]Member{{ShipID: "A", CB: 25}, {ShipID: "B", CB: -25}})
	require.NoError(t, err)
	assert.True(t, a.IsValid)
	assert.Zero(t, a.TotalAdjustedCB)
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	in := []Member{{ShipID: "B", CB: -5}, {ShipID: "A", CB: 10}}
	_, err := Allocate(in)
	require.NoError(t, err)
	assert.Equal(t, "B", in[0].ShipID)
	assert.Equal(t, -5.0, in[0].CB)
}

func TestAllocate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		members []Member
		msg     string
	}{
		{"empty", nil, "at least two members"},
		{"single", []Member{{ShipID: "A", CB: 1}}, "at least two members"},
		{"missing id", []Member{{ShipID: "A"}, {ShipID: " "}}, "Member 1 missing shipId"},
		{"duplicate", []Member{{ShipID: "A"}, {ShipID: "A"}}, "Duplicate ship IDs"},
		{"non-finite", []Member{{ShipID: "A", CB: math.Inf(1)}, {ShipID: "B"}}, "non-finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Allocate(tt.members)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

// ─── Properties ─────────────────────────────────────────────────────────────

func TestAllocate_Invariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(2025, 89))

	for iter := 0; iter < 2_000; iter++ {
		n := 2 + rng.IntN(9)
		members := make([]Member, n)
		total := 0.0
		for i := range members {
			cb := math.Round((rng.Float64()*2-1)*200_000*100) / 100
			if rng.IntN(10) == 0 {
				cb = 0
			}
			members[i] = Member{ShipID: string(rune('A' + i)), CB: cb}
			total += cb
		}

		a, err := Allocate(members)
		require.NoError(t, err)

		if total < 0 {
			assert.False(t, a.IsValid, "iter %d: negative total must be refused", iter)
			continue
		}
		require.True(t, a.IsValid, "iter %d: %v", iter, a.ValidationErrors)
		require.Len(t, a.Members, n)

		after := 0.0
		for _, m := range a.Members {
			after += m.AdjustedCB
			if m.CBBefore < 0 {
				assert.GreaterOrEqual(t, m.AdjustedCB, m.CBBefore, "iter %d: %s worse off", iter, m.ShipID)
				assert.InDelta(t, 0, m.AdjustedCB, 1e-6, "iter %d: %s deficit not covered", iter, m.ShipID)
			}
			if m.CBBefore > 0 {
				assert.GreaterOrEqual(t, m.AdjustedCB, 0.0, "iter %d: %s pushed negative", iter, m.ShipID)
			}
			assert.InDelta(t, m.CBBefore-m.AdjustedCB, m.Contribution, 1e-6)
		}
		assert.InDelta(t, total, after, ConservationTolerance, "iter %d: conservation", iter)
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func TestCanFormPool(t *testing.T) {
	assert.True(t, CanFormPool([]Member{{ShipID: "A", CB: 10}, {ShipID: "B", CB: -10}}).Allowed)

	neg := CanFormPool([]Member{{ShipID: "A", CB: 10}, {ShipID: "B", CB: -11}})
	assert.False(t, neg.Allowed)
	assert.Contains(t, neg.Reason, "negative")

	assert.False(t, CanFormPool([]Member{{ShipID: "A", CB: 10}}).Allowed)
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats([]Member{
		{ShipID: "A", CB: 100_000},
		{ShipID: "B", CB: -30_000},
		{ShipID: "C", CB: -20_000},
		{ShipID: "D", CB: 0},
	})
	assert.Equal(t, Stats{
		TotalCB:      50_000,
		SurplusCount: 1,
		DeficitCount: 2,
		NeutralCount: 1,
		TotalSurplus: 100_000,
		TotalDeficit: 50_000,
	}, s)
}

func TestAllocation_PoolMembers(t *testing.T) {
	a, err := Allocate([]Member{{ShipID: "A", ShipName: "Aurora", CB: 10}, {ShipID: "B", CB: -4}})
	require.NoError(t, err)
	pm := a.PoolMembers()
	require.Len(t, pm, 2)
	assert.Equal(t, domain.PoolMember{ShipID: "A", ShipName: "Aurora", CBBefore: 10, CBAfter: 6}, pm[0])
	assert.Equal(t, 4.0, pm[0].Contribution())
}
