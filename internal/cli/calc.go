package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fueleu/cbledger/internal/app/comparison"
	"github.com/fueleu/cbledger/internal/app/compliance"
	"github.com/fueleu/cbledger/internal/app/pooling"
	"github.com/fueleu/cbledger/internal/domain"
)

// ─── Offline calculators ────────────────────────────────────────────────────
// These commands run the pure engines against the configured regulation
// table. Nothing is read from or written to storage.

var jsonOutput bool

func init() {
	rootCmd.AddCommand(cbCmd)
	cbCmd.AddCommand(cbComputeCmd)
	rootCmd.AddCommand(poolCmd)
	poolCmd.AddCommand(poolPreviewCmd)
	rootCmd.AddCommand(compareCmd)

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	f := cbComputeCmd.Flags()
	f.Int("year", 2025, "Reporting year")
	f.Float64("actual", 0, "Actual GHG intensity (gCO2e/MJ)")
	f.Float64("energy", 0, "Energy in scope (MJ)")
	f.Float64("tons", 0, "Fuel consumption (t), converted to energy")
	f.String("fuel", "", "Fuel type used to convert --tons (default flat 41000 MJ/t)")
	f.Float64("target", 0, "Explicit target intensity instead of the year's target")
	_ = cbComputeCmd.MarkFlagRequired("actual")

	compareCmd.Flags().Float64("baseline", 0, "Baseline GHG intensity (gCO2e/MJ)")
	_ = compareCmd.MarkFlagRequired("baseline")
}

var cbCmd = &cobra.Command{
	Use:   "cb",
	Short: "Compliance balance calculations",
}

// ─── cb compute ─────────────────────────────────────────────────────────────

var cbComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute a compliance balance",
	Example: `  cbledger cb compute --year 2025 --actual 85 --energy 40400
  cbledger cb compute --actual 91.2 --tons 1200 --fuel HFO`,
	Args: cobra.NoArgs,
	RunE: runCBCompute,
}

func runCBCompute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	calc, err := newCalculator(cfg)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	year, _ := f.GetInt("year")
	actual, _ := f.GetFloat64("actual")
	energy, _ := f.GetFloat64("energy")
	tons, _ := f.GetFloat64("tons")
	fuel, _ := f.GetString("fuel")

	switch {
	case f.Changed("energy"):
	case f.Changed("tons") && fuel != "":
		if energy, err = calc.EnergyInScope([]domain.FuelRecord{domain.Tons(domain.FuelType(fuel), tons)}); err != nil {
			return err
		}
	case f.Changed("tons"):
		if energy, err = calc.EnergyFromFuelMass(tons); err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of --energy or --tons is required")
	}

	target := calc.Table().TargetIntensity(year)
	if f.Changed("target") {
		target, _ = f.GetFloat64("target")
	} else if cfg.Regulation.StrictYears && !calc.Table().HasTarget(year) {
		return domain.Validationf("no GHG target defined for year %d", year)
	}

	res, err := calc.Compute(compliance.Input{GHGTarget: target, GHGActual: actual, EnergyInScope: energy})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, res)
	}
	fmt.Fprintf(out, "Target:     %.4f gCO2e/MJ\n", res.GHGTarget)
	fmt.Fprintf(out, "Actual:     %.4f gCO2e/MJ\n", res.GHGActual)
	fmt.Fprintf(out, "Energy:     %.2f MJ\n", res.EnergyInScope)
	fmt.Fprintf(out, "CB:         %.2f gCO2e (%s)\n", res.ComplianceBalance, res.Status)
	return nil
}

// ─── pool preview ───────────────────────────────────────────────────────────

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Compliance pooling",
}

var poolPreviewCmd = &cobra.Command{
	Use:     "preview SHIP=CB [SHIP=CB...]",
	Short:   "Allocate a pool without persisting it",
	Example: `  cbledger pool preview A=100000 B=-30000 C=-20000`,
	Args:    cobra.MinimumNArgs(pooling.MinMembers),
	RunE:    runPoolPreview,
}

func runPoolPreview(cmd *cobra.Command, args []string) error {
	pairs, err := parsePairs(args)
	if err != nil {
		return err
	}
	members := make([]pooling.Member, len(pairs))
	for i, p := range pairs {
		members[i] = pooling.Member{ShipID: p.key, CB: p.value}
	}

	preview, err := pooling.PreviewMembers(members)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, preview)
	}

	alloc := preview.Allocation
	fmt.Fprintf(out, "Total CB:   %.2f\n", alloc.TotalInitialCB)
	if !alloc.IsValid {
		fmt.Fprintf(out, "Invalid pool:\n")
		for _, e := range alloc.ValidationErrors {
			fmt.Fprintf(out, "  • %s\n", e)
		}
		return alloc.Err()
	}
	for _, m := range alloc.Members {
		fmt.Fprintf(out, "  %-12s %14.2f → %14.2f\n", m.ShipID, m.CBBefore, m.AdjustedCB)
	}
	return nil
}

// ─── compare ────────────────────────────────────────────────────────────────

var compareCmd = &cobra.Command{
	Use:     "compare ROUTE=GHG [ROUTE=GHG...]",
	Short:   "Compare route intensities against a baseline",
	Example: `  cbledger compare --baseline 91.0 R002=88.0 R003=93.5`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runCompare,
}

func runCompare(cmd *cobra.Command, args []string) error {
	baseline, _ := cmd.Flags().GetFloat64("baseline")
	pairs, err := parsePairs(args)
	if err != nil {
		return err
	}
	inputs := make([]comparison.Input, len(pairs))
	for i, p := range pairs {
		inputs[i] = comparison.Input{RouteID: p.key, BaselineGHG: baseline, ComparisonGHG: p.value}
	}

	results, err := comparison.CompareBatch(inputs)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, results)
	}
	for _, r := range results {
		mark := "✓"
		if !r.Compliant {
			mark = "✗"
		}
		fmt.Fprintf(out, "%s %-10s %8.4f %+8.2f%%\n", mark, r.RouteID, r.ComparisonGHG, r.PercentDiff)
	}
	fmt.Fprintf(out, "All compliant: %t\n", comparison.AllCompliant(results))
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type pair struct {
	key   string
	value float64
}

// parsePairs parses KEY=NUMBER arguments, preserving order.
func parsePairs(args []string) ([]pair, error) {
	out := make([]pair, 0, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected KEY=NUMBER, got %q", arg)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", arg, err)
		}
		out = append(out, pair{key: k, value: n})
	}
	return out, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
