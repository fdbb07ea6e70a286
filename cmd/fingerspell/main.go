// Package main provides the fingerspell command.
//
// Usage:
//
//	fingerspell [flags] <command> [args]
//
// Commands:
//
//	serve     - Run the recognition server (HTTP API, optional camera and tray)
//	stats     - Show per-letter sample counts for a dataset
//	classify  - Classify a landmarks JSON file against a dataset
//	version   - Print the version
//
// Configuration:
//
//	Settings are read from ~/.fingerspell/config.yaml unless --config is given.
package main

import (
	"fmt"
	"os"

	"github.com/ayusman/fingerspell/cmd/fingerspell/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
