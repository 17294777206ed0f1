// Package cli implements the cbledger command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fueleu/cbledger/internal/app/compliance"
	"github.com/fueleu/cbledger/internal/app/regulation"
	"github.com/fueleu/cbledger/internal/daemon"
)

var (
	configPath string
	envFile    string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cbledger.toml", "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with CBLEDGER_* overrides")
}

var rootCmd = &cobra.Command{
	Use:   "cbledger",
	Short: "FuelEU compliance balance ledger",
	Long: `cbledger computes FuelEU Maritime compliance balances, banks surplus,
applies banked surplus to deficits and forms compliance pools.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the daemon config selected by --config.
func loadConfig() (daemon.Config, error) {
	return daemon.Load(configPath)
}

// loadTable returns the configured regulation table.
func loadTable(cfg daemon.Config) (*regulation.Table, error) {
	if cfg.Regulation.TablePath == "" {
		return regulation.Default(), nil
	}
	t, err := regulation.LoadFile(cfg.Regulation.TablePath)
	if err != nil {
		return nil, fmt.Errorf("load regulation table: %w", err)
	}
	return t, nil
}

// newCalculator builds a calculator from the config.
func newCalculator(cfg daemon.Config) (*compliance.Calculator, error) {
	table, err := loadTable(cfg)
	if err != nil {
		return nil, err
	}
	var opts []compliance.Option
	if cfg.Regulation.StrictYears {
		opts = append(opts, compliance.WithStrictYears())
	}
	return compliance.New(table, opts...), nil
}
