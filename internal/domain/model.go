// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring: calculators, ledgers and stores all depend on it.
package domain

import (
	"fmt"
	"time"
)

// ─── Fuel Types ─────────────────────────────────────────────────────────────

// FuelType labels a marine fuel. Unknown labels are valid and resolve to the
// "Other" emission constants.
type FuelType string

const (
	FuelHFO      FuelType = "HFO"
	FuelMDO      FuelType = "MDO"
	FuelMGO      FuelType = "MGO"
	FuelLNG      FuelType = "LNG"
	FuelMethanol FuelType = "Methanol"
	FuelAmmonia  FuelType = "Ammonia"
	FuelHydrogen FuelType = "Hydrogen"
	FuelOther    FuelType = "Other"
)

// FuelRecord is one fuel consumption line for a ship.
// Exactly one of FuelTons / EnergyMJ is expected; EnergyMJ wins when both are set.
type FuelRecord struct {
	FuelType            FuelType `json:"fuelType"`
	FuelTons            *float64 `json:"fuelTons,omitempty"`
	EnergyMJ            *float64 `json:"energyMJ,omitempty"`
	MethaneSlipFraction *float64 `json:"methaneSlipFraction,omitempty"`
}

// Tons returns a FuelRecord measured by fuel mass.
func Tons(fuel FuelType, tons float64) FuelRecord {
	return FuelRecord{FuelType: fuel, FuelTons: &tons}
}

// Energy returns a FuelRecord measured by energy.
func Energy(fuel FuelType, mj float64) FuelRecord {
	return FuelRecord{FuelType: fuel, EnergyMJ: &mj}
}

// WithMethaneSlip returns a copy of the record with an explicit slip fraction.
func (r FuelRecord) WithMethaneSlip(fraction float64) FuelRecord {
	r.MethaneSlipFraction = &fraction
	return r
}

// EmissionConstants are the per-fuel factors used by the intensity formulas.
type EmissionConstants struct {
	FuelType           FuelType `json:"fuelType" toml:"-" yaml:"-"`
	LCVMJPerGram       float64  `json:"lcvMJPerGram" toml:"lcv_mj_per_gram" yaml:"lcv_mj_per_gram"`
	WtTFactor          float64  `json:"wttFactor" toml:"wtt_factor" yaml:"wtt_factor"`                              // gCO2e/MJ
	CO2Factor          float64  `json:"co2Factor" toml:"co2_factor" yaml:"co2_factor"`                              // gCO2/MJ
	CH4Factor          float64  `json:"ch4Factor" toml:"ch4_factor" yaml:"ch4_factor"`                              // gCH4/MJ before slip
	N2OFactor          float64  `json:"n2oFactor" toml:"n2o_factor" yaml:"n2o_factor"`                              // gN2O/MJ
	DefaultMethaneSlip float64  `json:"defaultMethaneSlip" toml:"default_methane_slip" yaml:"default_methane_slip"` // 0..1
}

// ─── Compliance Types ───────────────────────────────────────────────────────

// ComplianceStatus classifies a compliance balance by sign.
type ComplianceStatus string

const (
	StatusSurplus ComplianceStatus = "SURPLUS"
	StatusDeficit ComplianceStatus = "DEFICIT"
	StatusNeutral ComplianceStatus = "NEUTRAL"
)

// StatusFor returns the status for a compliance balance.
func StatusFor(cb float64) ComplianceStatus {
	switch {
	case cb > 0:
		return StatusSurplus
	case cb < 0:
		return StatusDeficit
	default:
		return StatusNeutral
	}
}

// Compliant reports whether the status satisfies the regulation.
func (s ComplianceStatus) Compliant() bool { return s != StatusDeficit }

// ComplianceRecord is the CB of one ship for one reporting year.
// Banking and pooling mutate ComplianceBalance in place; the other
// fields describe the original computation.
type ComplianceRecord struct {
	ID                string           `json:"id"`
	ShipID            string           `json:"shipId"`
	ShipName          string           `json:"shipName,omitempty"`
	Year              int              `json:"year"`
	GHGTarget         float64          `json:"ghgTarget"`
	GHGActual         float64          `json:"ghgActual"`
	EnergyInScopeMJ   float64          `json:"energyInScope"`
	ComplianceBalance float64          `json:"complianceBalance"`
	Status            ComplianceStatus `json:"status"`
	ComputedAt        time.Time        `json:"computedAt"`
}

// Key returns the (ship, year) key that owns the record.
func (r ComplianceRecord) Key() string {
	return fmt.Sprintf("%s/%d", r.ShipID, r.Year)
}

// ─── Route Types ────────────────────────────────────────────────────────────

// Route is a voyage route with its measured GHG intensity.
// At most one route per year is the baseline.
type Route struct {
	ID              string  `json:"id"`
	RouteID         string  `json:"routeId"`
	VesselType      string  `json:"vesselType"`
	FuelType        string  `json:"fuelType"`
	Year            int     `json:"year"`
	GHGIntensity    float64 `json:"ghgIntensity"`
	FuelConsumption float64 `json:"fuelConsumption"`
	Distance        float64 `json:"distance"`
	TotalEmissions  float64 `json:"totalEmissions"`
	IsBaseline      bool    `json:"isBaseline"`
}
