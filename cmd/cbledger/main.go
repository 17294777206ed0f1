// Command cbledger runs the FuelEU compliance balance ledger.
package main

import (
	"os"

	"github.com/fueleu/cbledger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
