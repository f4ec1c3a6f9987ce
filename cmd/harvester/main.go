// Command harvester runs federation calendar harvesting cycles against
// the catalog database.
package main

import (
	"os"

	"github.com/racebase/harvester/cmd/harvester/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
