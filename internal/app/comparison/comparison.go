// Package comparison compares route GHG intensities against a yearly baseline.
package comparison

import (
	"math"
	"strings"

	"github.com/fueleu/cbledger/internal/domain"
)

// Input is one route to compare.
type Input struct {
	RouteID       string  `json:"routeId"`
	BaselineGHG   float64 `json:"baselineGHG"`
	ComparisonGHG float64 `json:"comparisonGHG"`
}

// Result is the comparison of one route against the baseline.
// Compliant holds when the route is at or below the baseline.
type Result struct {
	RouteID       string  `json:"routeId"`
	BaselineGHG   float64 `json:"baselineGHG"`
	ComparisonGHG float64 `json:"comparisonGHG"`
	PercentDiff   float64 `json:"percentDiff"`
	AbsoluteDiff  float64 `json:"absoluteDiff"`
	Compliant     bool    `json:"compliant"`
}

// Compare returns percentDiff = (comparison/baseline − 1) × 100 and
// absoluteDiff = comparison − baseline.
func Compare(routeID string, baselineGHG, comparisonGHG float64) (Result, error) {
	routeID = strings.TrimSpace(routeID)
	if routeID == "" {
		return Result{}, domain.Validationf("routeId is required")
	}
	if math.IsNaN(baselineGHG) || math.IsInf(baselineGHG, 0) || baselineGHG <= 0 {
		return Result{}, domain.Validationf("baseline GHG intensity must be positive")
	}
	if math.IsNaN(comparisonGHG) || math.IsInf(comparisonGHG, 0) || comparisonGHG < 0 {
		return Result{}, domain.Validationf("comparison GHG intensity cannot be negative")
	}
	return Result{
		RouteID:       routeID,
		BaselineGHG:   baselineGHG,
		ComparisonGHG: comparisonGHG,
		PercentDiff:   (comparisonGHG/baselineGHG - 1) * 100,
		AbsoluteDiff:  comparisonGHG - baselineGHG,
		Compliant:     comparisonGHG <= baselineGHG,
	}, nil
}

// CompareBatch compares every input, preserving order. The first invalid
// input aborts the batch.
func CompareBatch(inputs []Input) ([]Result, error) {
	out := make([]Result, 0, len(inputs))
	for i, in := range inputs {
		r, err := Compare(in.RouteID, in.BaselineGHG, in.ComparisonGHG)
		if err != nil {
			return nil, domain.Validationf("comparison %d: %v", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// AgainstBaseline compares each route's intensity with the baseline route's.
// The baseline itself is skipped.
func AgainstBaseline(baseline domain.Route, routes []domain.Route) ([]Result, error) {
	inputs := make([]Input, 0, len(routes))
	for _, r := range routes {
		if r.RouteID == baseline.RouteID {
			continue
		}
		inputs = append(inputs, Input{
			RouteID:       r.RouteID,
			BaselineGHG:   baseline.GHGIntensity,
			ComparisonGHG: r.GHGIntensity,
		})
	}
	return CompareBatch(inputs)
}

// AllCompliant reports whether every result is compliant. An empty batch is.
func AllCompliant(results []Result) bool {
	for _, r := range results {
		if !r.Compliant {
			return false
		}
	}
	return true
}

// Compliant returns the compliant subset, in order.
func Compliant(results []Result) []Result {
	return filter(results, true)
}

// NonCompliant returns the non-compliant subset, in order.
func NonCompliant(results []Result) []Result {
	return filter(results, false)
}

func filter(results []Result, compliant bool) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Compliant == compliant {
			out = append(out, r)
		}
	}
	return out
}
