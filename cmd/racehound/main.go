// Command racehound scans Go source for concurrency hazards.
package main

import (
	"os"

	"github.com/kolkov/racehound/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
