package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fueleu/cbledger/internal/domain"
	"github.com/fueleu/cbledger/internal/infra/sqlite"
)

// ─── Routes CLI ─────────────────────────────────────────────────────────────
// Routes are loaded from YAML files into the configured storage. A route
// marked baseline becomes its year's baseline after the whole file is
// imported.

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.AddCommand(routesImportCmd)
	routesCmd.AddCommand(routesListCmd)

	routesListCmd.Flags().Int("year", 0, "Only list routes of this year")
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Manage voyage routes and baselines",
}

// routeFile is the YAML shape accepted by routes import.
type routeFile struct {
	Routes []routeEntry `yaml:"routes"`
}

type routeEntry struct {
	RouteID         string  `yaml:"route_id"`
	VesselType      string  `yaml:"vessel_type"`
	FuelType        string  `yaml:"fuel_type"`
	Year            int     `yaml:"year"`
	GHGIntensity    float64 `yaml:"ghg_intensity"`
	FuelConsumption float64 `yaml:"fuel_consumption"`
	Distance        float64 `yaml:"distance"`
	TotalEmissions  float64 `yaml:"total_emissions"`
	Baseline        bool    `yaml:"baseline"`
}

// ─── routes import ──────────────────────────────────────────────────────────

var routesImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import routes from a YAML file",
	Long: `Import routes from a YAML file of the form:

  routes:
    - route_id: R001
      vessel_type: Container
      fuel_type: HFO
      year: 2024
      ghg_intensity: 91.0
      baseline: true`,
	Args: cobra.ExactArgs(1),
	RunE: runRoutesImport,
}

func runRoutesImport(cmd *cobra.Command, args []string) error {
	routes, baselines, err := readRouteFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	n, err := importRoutes(cmd.Context(), db, routes, baselines)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %d routes into %s\n", n, db.Path())
	return nil
}

// readRouteFile parses path and returns its routes plus the route ids
// flagged as baseline.
func readRouteFile(path string) ([]domain.Route, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read route file: %w", err)
	}
	var doc routeFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse route file %s: %w", path, err)
	}
	if len(doc.Routes) == 0 {
		return nil, nil, fmt.Errorf("%s contains no routes", path)
	}

	routes := make([]domain.Route, 0, len(doc.Routes))
	var baselines []string
	for i, e := range doc.Routes {
		id := strings.TrimSpace(e.RouteID)
		if id == "" {
			return nil, nil, fmt.Errorf("route %d: route_id is required", i)
		}
		routes = append(routes, domain.Route{
			RouteID:         id,
			VesselType:      e.VesselType,
			FuelType:        e.FuelType,
			Year:            e.Year,
			GHGIntensity:    e.GHGIntensity,
			FuelConsumption: e.FuelConsumption,
			Distance:        e.Distance,
			TotalEmissions:  e.TotalEmissions,
		})
		if e.Baseline {
			baselines = append(baselines, id)
		}
	}
	return routes, baselines, nil
}

func importRoutes(ctx context.Context, store domain.RouteStore, routes []domain.Route, baselines []string) (int, error) {
	for _, r := range routes {
		if _, err := store.CreateRoute(ctx, r); err != nil {
			return 0, fmt.Errorf("create route %s: %w", r.RouteID, err)
		}
	}
	for _, id := range baselines {
		if _, err := store.SetBaseline(ctx, id); err != nil {
			return 0, fmt.Errorf("set baseline %s: %w", id, err)
		}
	}
	return len(routes), nil
}

// ─── routes list ────────────────────────────────────────────────────────────

var routesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored routes",
	Args:  cobra.NoArgs,
	RunE:  runRoutesList,
}

func runRoutesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	year, _ := cmd.Flags().GetInt("year")
	var routes []domain.Route
	if year == 0 {
		routes, err = db.ListRoutes(cmd.Context())
	} else {
		routes, err = db.ListRoutesByYear(cmd.Context(), year)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, routes)
	}
	if len(routes) == 0 {
		fmt.Fprintln(out, "No routes stored.")
		fmt.Fprintln(out, "Use 'cbledger routes import <file>' to load routes.")
		return nil
	}
	fmt.Fprintf(out, "Routes (%d):\n", len(routes))
	for _, r := range routes {
		mark := " "
		if r.IsBaseline {
			mark = "*"
		}
		fmt.Fprintf(out, " %s %-8s %d  %-12s %-8s %8.4f gCO2e/MJ\n", mark, r.RouteID, r.Year, r.VesselType, r.FuelType, r.GHGIntensity)
	}
	return nil
}
