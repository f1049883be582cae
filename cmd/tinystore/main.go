// Package main is the entry point for the tinystore CLI.
//
// tinystore can be used either as a library (SDK) or as a standalone binary
// that serves a map-shaped store from a YAML or TOML configuration. This
// CLI provides the standalone binary approach.
//
// Usage:
//
//	tinystore init                      # Write a starter config
//	tinystore serve -c tinystore.yaml    # Serve the store
//	tinystore validate -c tinystore.yaml # Validate configuration
//	tinystore version                   # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "tinystore",
	Short: "Serve an observable state store over HTTP",
	Long: `tinystore holds one piece of state and notifies every subscriber
when it changes.

The standalone binary serves a store over HTTP: read it with GET, merge into
it with PATCH, replace it with PUT, and watch it live over Server-Sent
Events or a WebSocket.

Quick start:
  1. Run: tinystore init
  2. Run: tinystore serve -c tinystore.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  name: cart
  port: 8080
  state:
    items: []
    total: 0`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this tinystore binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tinystore %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
