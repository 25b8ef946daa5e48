// Package main is the voxpod gateway CLI.
//
// Usage:
//
//	voxpod [flags] <command>
//
// Commands:
//
//	run      - Run the gateway server
//	device   - Manage device registrations
//	version  - Print the version
//
// Configuration comes from a YAML file (--config) with VOXPOD_*
// environment overrides.
package main

import (
	"fmt"
	"os"

	"github.com/voxpod/voxpod/cmd/voxpod/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
