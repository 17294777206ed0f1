package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fueleu/cbledger/internal/api"
	"github.com/fueleu/cbledger/internal/app/regulation"
	"github.com/fueleu/cbledger/internal/domain"
)

func init() {
	rootCmd.AddCommand(regulationCmd)
	regulationCmd.AddCommand(regulationShowCmd)
	rootCmd.AddCommand(versionCmd)

	regulationShowCmd.Flags().StringP("format", "f", "toml", "Output format: toml, yaml or json")
}

var regulationCmd = &cobra.Command{
	Use:   "regulation",
	Short: "Inspect the regulatory constants table",
}

// ─── regulation show ────────────────────────────────────────────────────────

var regulationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active regulation table",
	Long: `Print the regulation table selected by [regulation] table_path, or the
embedded defaults. The toml and yaml output can be edited and loaded back
through table_path.`,
	Args: cobra.NoArgs,
	RunE: runRegulationShow,
}

// tableDocument mirrors the on-disk table format.
type tableDocument struct {
	FallbackYear int                                 `toml:"fallback_year" yaml:"fallback_year" json:"fallbackYear"`
	Targets      []regulation.YearTarget             `toml:"targets" yaml:"targets" json:"targets"`
	Fuels        map[string]domain.EmissionConstants `toml:"fuels" yaml:"fuels" json:"fuels"`
}

func runRegulationShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := loadTable(cfg)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if jsonOutput {
		format = "json"
	}
	return writeTable(cmd.OutOrStdout(), table, format)
}

func writeTable(w io.Writer, table *regulation.Table, format string) error {
	doc := tableDocument{
		FallbackYear: table.FallbackYear(),
		Targets:      table.Targets(),
		Fuels:        make(map[string]domain.EmissionConstants),
	}
	for _, c := range table.Fuels() {
		doc.Fuels[string(c.FuelType)] = c
	}

	switch format {
	case "toml":
		return toml.NewEncoder(w).Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		return printJSON(w, doc)
	default:
		return fmt.Errorf("unknown format %q (want toml, yaml or json)", format)
	}
}

// ─── version ────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cbledger version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cbledger %s (%s %s/%s)\n", api.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
