// Package compliance computes FuelEU energy in scope, emission intensities
// and compliance balances.
//
//	CB = (target intensity − actual intensity) × energy in scope   [gCO2e]
//
// A positive CB is a surplus, a negative CB a deficit. Calculator methods are
// pure: inputs plus the injected regulation table in, a value or a
// domain.ErrValidation failure out. Service stores the results.
package compliance

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fueleu/cbledger/internal/app/regulation"
	"github.com/fueleu/cbledger/internal/domain"
)

// MJPerTonne is the flat fuel-mass to energy conversion used when no fuel
// type is known.
const MJPerTonne = 41_000.0

const gramsPerTonne = 1_000_000.0

// Breakdown is one emission component of a fuel record.
type Breakdown struct {
	IntensityGPerMJ float64 `json:"intensity"`
	TotalG          float64 `json:"total"`
	EnergyMJ        float64 `json:"energyMJ"`
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithStrictYears makes ComputeForYear reject years that have no explicit
// target instead of reusing the fallback year's target.
func WithStrictYears() Option {
	return func(c *Calculator) { c.strictYears = true }
}

// WithClock overrides the timestamp source for computed records.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// Calculator evaluates the FuelEU formulas against one regulation table.
type Calculator struct {
	table       *regulation.Table
	strictYears bool
	now         func() time.Time
}

// New creates a calculator. A nil table means regulation.Default().
func New(table *regulation.Table, opts ...Option) *Calculator {
	if table == nil {
		table = regulation.Default()
	}
	c := &Calculator{table: table, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Table returns the regulation table in use.
func (c *Calculator) Table() *regulation.Table { return c.table }

// ─── Energy & Intensity ─────────────────────────────────────────────────────

// EnergyFromFuelMass converts tonnes of fuel to MJ with the flat MJPerTonne factor.
func (c *Calculator) EnergyFromFuelMass(tons float64) (float64, error) {
	if !finite(tons) || tons < 0 {
		return 0, domain.Validationf("fuelTons must be a non-negative number")
	}
	return tons * MJPerTonne, nil
}

// TankToWake returns the combustion component of rec:
//
//	intensity = CO2 + CH4 × slip × GWP(CH4) + N2O × GWP(N2O)
func (c *Calculator) TankToWake(rec domain.FuelRecord) (Breakdown, error) {
	n, err := c.normalize(rec)
	if err != nil {
		return Breakdown{}, err
	}
	k := n.constants
	intensity := k.CO2Factor +
		k.CH4Factor*n.methaneSlip*regulation.GWPMethane +
		k.N2OFactor*regulation.GWPNitrousOxide
	return Breakdown{IntensityGPerMJ: intensity, TotalG: intensity * n.energyMJ, EnergyMJ: n.energyMJ}, nil
}

// WellToTank returns the upstream component of rec.
func (c *Calculator) WellToTank(rec domain.FuelRecord) (Breakdown, error) {
	n, err := c.normalize(rec)
	if err != nil {
		return Breakdown{}, err
	}
	intensity := n.constants.WtTFactor
	return Breakdown{IntensityGPerMJ: intensity, TotalG: intensity * n.energyMJ, EnergyMJ: n.energyMJ}, nil
}

// AggregateIntensity returns windFactor × (ΣWtT + ΣTtW) / ΣEnergy over records.
func (c *Calculator) AggregateIntensity(records []domain.FuelRecord, windFactor float64) (float64, error) {
	if len(records) == 0 {
		return 0, domain.Validationf("records must be a non-empty list")
	}
	if !finite(windFactor) || windFactor <= 0 {
		return 0, domain.Validationf("windFactor must be a positive number")
	}

	var totalEnergy, totalWtT, totalTtW float64
	for i, rec := range records {
		wtt, err := c.WellToTank(rec)
		if err != nil {
			return 0, domain.Validationf("record %d: %v", i, err)
		}
		ttw, err := c.TankToWake(rec)
		if err != nil {
			return 0, domain.Validationf("record %d: %v", i, err)
		}
		totalEnergy += wtt.EnergyMJ
		totalWtT += wtt.TotalG
		totalTtW += ttw.TotalG
	}
	if totalEnergy == 0 {
		return 0, domain.Validationf("total energy must be greater than zero")
	}
	return windFactor * (totalWtT + totalTtW) / totalEnergy, nil
}

// Intensity is AggregateIntensity without a wind reward.
func (c *Calculator) Intensity(records []domain.FuelRecord) (float64, error) {
	return c.AggregateIntensity(records, 1)
}

// EnergyInScope sums the resolved energy of records.
func (c *Calculator) EnergyInScope(records []domain.FuelRecord) (float64, error) {
	var total float64
	for i, rec := range records {
		n, err := c.normalize(rec)
		if err != nil {
			return 0, domain.Validationf("record %d: %v", i, err)
		}
		total += n.energyMJ
	}
	return total, nil
}

// ─── Compliance Balance ─────────────────────────────────────────────────────

// ComplianceBalance returns (target − actual) × energy.
func (c *Calculator) ComplianceBalance(target, actual, energyMJ float64) (float64, error) {
	if !finite(target) || target <= 0 {
		return 0, domain.Validationf("GHG target must be positive")
	}
	if !finite(actual) || actual < 0 {
		return 0, domain.Validationf("GHG actual cannot be negative")
	}
	if !finite(energyMJ) || energyMJ <= 0 {
		return 0, domain.Validationf("Energy in scope must be positive")
	}
	return (target - actual) * energyMJ, nil
}

// Input is a CB computation against an explicit target.
type Input struct {
	GHGTarget     float64 `json:"ghgTarget"`
	GHGActual     float64 `json:"ghgActual"`
	EnergyInScope float64 `json:"energyInScope"`
}

// Result is the outcome of Compute.
type Result struct {
	ComplianceBalance float64                 `json:"complianceBalance"`
	GHGTarget         float64                 `json:"ghgTarget"`
	GHGActual         float64                 `json:"ghgActual"`
	EnergyInScope     float64                 `json:"energyInScope"`
	IsCompliant       bool                    `json:"isCompliant"`
	Status            domain.ComplianceStatus `json:"status"`
}

// Compute evaluates one CB input.
func (c *Calculator) Compute(in Input) (Result, error) {
	cb, err := c.ComplianceBalance(in.GHGTarget, in.GHGActual, in.EnergyInScope)
	if err != nil {
		return Result{}, err
	}
	return Result{
		ComplianceBalance: cb,
		GHGTarget:         in.GHGTarget,
		GHGActual:         in.GHGActual,
		EnergyInScope:     in.EnergyInScope,
		IsCompliant:       cb >= 0,
		Status:            domain.StatusFor(cb),
	}, nil
}

// ComputeBatch evaluates inputs in order and stops at the first failure.
func (c *Calculator) ComputeBatch(inputs []Input) ([]Result, error) {
	out := make([]Result, 0, len(inputs))
	for i, in := range inputs {
		r, err := c.Compute(in)
		if err != nil {
			return nil, domain.Validationf("input %d: %v", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ComputeForYear computes the CB of shipID against the year's target and
// returns a new record ready to be persisted.
func (c *Calculator) ComputeForYear(shipID string, year int, actual, energyMJ float64) (domain.ComplianceRecord, error) {
	shipID = strings.TrimSpace(shipID)
	if shipID == "" {
		return domain.ComplianceRecord{}, domain.Validationf("shipId is required")
	}
	if c.strictYears && !c.table.HasTarget(year) {
		return domain.ComplianceRecord{}, domain.Validationf("no GHG target defined for year %d", year)
	}
	target := c.table.TargetIntensity(year)
	cb, err := c.ComplianceBalance(target, actual, energyMJ)
	if err != nil {
		return domain.ComplianceRecord{}, err
	}
	return domain.ComplianceRecord{
		ID:                uuid.NewString(),
		ShipID:            shipID,
		Year:              year,
		GHGTarget:         target,
		GHGActual:         actual,
		EnergyInScopeMJ:   energyMJ,
		ComplianceBalance: cb,
		Status:            domain.StatusFor(cb),
		ComputedAt:        c.now().UTC(),
	}, nil
}

// ComputeFromFuel derives intensity and energy from fuel records, then
// behaves like ComputeForYear.
func (c *Calculator) ComputeFromFuel(shipID string, year int, records []domain.FuelRecord, windFactor float64) (domain.ComplianceRecord, error) {
	actual, err := c.AggregateIntensity(records, windFactor)
	if err != nil {
		return domain.ComplianceRecord{}, err
	}
	energy, err := c.EnergyInScope(records)
	if err != nil {
		return domain.ComplianceRecord{}, err
	}
	return c.ComputeForYear(shipID, year, actual, energy)
}

// ─── Record Normalization ───────────────────────────────────────────────────

type normalized struct {
	constants   domain.EmissionConstants
	energyMJ    float64
	methaneSlip float64
}

func (c *Calculator) normalize(rec domain.FuelRecord) (normalized, error) {
	if rec.FuelTons == nil && rec.EnergyMJ == nil {
		return normalized{}, domain.Validationf("fuelTons or energyMJ is required")
	}
	if rec.FuelTons != nil && (!finite(*rec.FuelTons) || *rec.FuelTons < 0) {
		return normalized{}, domain.Validationf("fuelTons must be a non-negative number")
	}
	if rec.EnergyMJ != nil && (!finite(*rec.EnergyMJ) || *rec.EnergyMJ < 0) {
		return normalized{}, domain.Validationf("energyMJ must be a non-negative number")
	}
	if s := rec.MethaneSlipFraction; s != nil && (!finite(*s) || *s < 0 || *s > 1) {
		return normalized{}, domain.Validationf("methaneSlipFraction must be within [0,1]")
	}

	k := c.table.Lookup(rec.FuelType)
	var energy float64
	if rec.EnergyMJ != nil {
		energy = *rec.EnergyMJ
	} else {
		energy = *rec.FuelTons * gramsPerTonne * k.LCVMJPerGram
	}
	if energy <= 0 {
		return normalized{}, domain.Validationf("calculated energy must be greater than zero")
	}

	slip := k.DefaultMethaneSlip
	if rec.MethaneSlipFraction != nil {
		slip = *rec.MethaneSlipFraction
	}
	return normalized{constants: k, energyMJ: energy, methaneSlip: slip}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
