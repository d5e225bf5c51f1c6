// Command migrate is the CLI entry point for the workflow engine: it
// wires cobra to the three migration strategies over a real go-git
// origin and destination.
package main

import (
	"fmt"
	"os"

	"github.com/kurobon/vcsmigrate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vcsmigrate: %v\n", err)
		os.Exit(1)
	}
}
