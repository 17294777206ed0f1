// Package regulation holds the FuelEU constants table: per-fuel emission
// factors and per-year GHG intensity targets.
//
// A Table is immutable once built. The process loads one at startup (the
// embedded default or an operator-supplied TOML/YAML file) and injects it
// into the calculators, so tests can substitute alternate tables.
package regulation

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/fueleu/cbledger/internal/domain"
)

// 100-year global warming potentials.
const (
	GWPMethane      = 25.0
	GWPNitrousOxide = 298.0
)

// GHGTarget2025 is the 2025 target intensity in gCO2e/MJ.
const GHGTarget2025 = 89.3368

//go:embed defaults.toml
var defaultsTOML []byte

// Table is the read-only regulatory table.
type Table struct {
	fuels        map[domain.FuelType]domain.EmissionConstants
	targets      map[int]float64
	fallbackYear int
}

// YearTarget is one year's target intensity.
type YearTarget struct {
	Year      int     `toml:"year" yaml:"year" json:"year"`
	Intensity float64 `toml:"intensity" yaml:"intensity" json:"intensity"`
}

// document is the on-disk shape shared by the TOML and YAML formats.
type document struct {
	FallbackYear int                                 `toml:"fallback_year" yaml:"fallback_year"`
	Targets      []YearTarget                        `toml:"targets" yaml:"targets"`
	Fuels        map[string]domain.EmissionConstants `toml:"fuels" yaml:"fuels"`
}

var loadDefault = sync.OnceValue(func() *Table {
	t, err := Parse(defaultsTOML, "toml")
	if err != nil {
		panic(fmt.Sprintf("regulation: embedded defaults: %v", err))
	}
	return t
})

// Default returns the embedded FuelEU table. It is built once per process.
func Default() *Table { return loadDefault() }

// LoadFile reads a table from path. The format follows the extension:
// .yaml/.yml is YAML, anything else is TOML.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regulation table: %w", err)
	}
	format := "toml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	t, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a table document in the given format ("toml" or "yaml").
func Parse(data []byte, format string) (*Table, error) {
	var doc document
	switch format {
	case "toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown regulation table format %q", format)
	}

	fuels := make(map[domain.FuelType]domain.EmissionConstants, len(doc.Fuels))
	for name, c := range doc.Fuels {
		fuels[domain.FuelType(name)] = c
	}
	targets := make(map[int]float64, len(doc.Targets))
	for _, yt := range doc.Targets {
		if _, dup := targets[yt.Year]; dup {
			return nil, fmt.Errorf("duplicate target for year %d", yt.Year)
		}
		targets[yt.Year] = yt.Intensity
	}
	return New(fuels, targets, doc.FallbackYear)
}

// New builds a validated table. fuels must contain an "Other" entry and
// targets must define fallbackYear.
func New(fuels map[domain.FuelType]domain.EmissionConstants, targets map[int]float64, fallbackYear int) (*Table, error) {
	if _, ok := fuels[domain.FuelOther]; !ok {
		return nil, fmt.Errorf("fuel table must define %q", domain.FuelOther)
	}
	t := &Table{
		fuels:        make(map[domain.FuelType]domain.EmissionConstants, len(fuels)),
		targets:      make(map[int]float64, len(targets)),
		fallbackYear: fallbackYear,
	}
	for ft, c := range fuels {
		if err := validateConstants(ft, c); err != nil {
			return nil, err
		}
		c.FuelType = ft
		t.fuels[ft] = c
	}
	for year, v := range targets {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("target for %d must be a positive number, got %v", year, v)
		}
		t.targets[year] = v
	}
	if _, ok := t.targets[fallbackYear]; !ok {
		return nil, fmt.Errorf("fallback year %d has no target", fallbackYear)
	}
	return t, nil
}

func validateConstants(ft domain.FuelType, c domain.EmissionConstants) error {
	if !(c.LCVMJPerGram > 0) {
		return fmt.Errorf("fuel %s: lcv_mj_per_gram must be positive", ft)
	}
	for name, v := range map[string]float64{
		"wtt_factor": c.WtTFactor,
		"co2_factor": c.CO2Factor,
		"ch4_factor": c.CH4Factor,
		"n2o_factor": c.N2OFactor,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("fuel %s: %s must be a non-negative number", ft, name)
		}
	}
	if c.DefaultMethaneSlip < 0 || c.DefaultMethaneSlip > 1 || math.IsNaN(c.DefaultMethaneSlip) {
		return fmt.Errorf("fuel %s: default_methane_slip must be within [0,1]", ft)
	}
	return nil
}

// Lookup returns the constants for fuel. It never fails: unknown fuel types
// get the "Other" constants.
func (t *Table) Lookup(fuel domain.FuelType) domain.EmissionConstants {
	if c, ok := t.fuels[fuel]; ok {
		return c
	}
	return t.fuels[domain.FuelOther]
}

// Known reports whether fuel has its own entry.
func (t *Table) Known(fuel domain.FuelType) bool {
	_, ok := t.fuels[fuel]
	return ok
}

// TargetIntensity returns the year's target. Years without an entry get the
// fallback year's target.
func (t *Table) TargetIntensity(year int) float64 {
	if v, ok := t.targets[year]; ok {
		return v
	}
	return t.targets[t.fallbackYear]
}

// HasTarget reports whether year has an explicit target.
func (t *Table) HasTarget(year int) bool {
	_, ok := t.targets[year]
	return ok
}

// FallbackYear returns the year whose target backs unknown years.
func (t *Table) FallbackYear() int { return t.fallbackYear }

// Targets returns all explicit targets sorted by year.
func (t *Table) Targets() []YearTarget {
	out := make([]YearTarget, 0, len(t.targets))
	for y, v := range t.targets {
		out = append(out, YearTarget{Year: y, Intensity: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Fuels returns all fuel constants sorted by fuel type.
func (t *Table) Fuels() []domain.EmissionConstants {
	out := make([]domain.EmissionConstants, 0, len(t.fuels))
	for _, c := range t.fuels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FuelType < out[j].FuelType })
	return out
}
