package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/tinystore/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a tinystore configuration file without starting the server.

This command parses the YAML or TOML, expands environment variables,
validates all fields and loads the state file if one is configured. It's
useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  tinystore validate -c tinystore.yaml
  tinystore validate --config /etc/tinystore/cart.toml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	initial, err := config.InitialState(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	stateFile := cfg.StateFile
	if stateFile == "" {
		stateFile = "(none)"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Store:        %s\n", cfg.Name)
	fmt.Printf("  Port:         %d\n", cfg.Port)
	fmt.Printf("  Panic policy: %s\n", cfg.Policy())
	fmt.Printf("  Rate limit:   %g rps (burst %d)\n", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	fmt.Printf("  Read only:    %t\n", cfg.ReadOnly)
	fmt.Printf("  Metrics:      %t\n", cfg.Metrics.Enabled)
	fmt.Printf("  State file:   %s (watch: %t)\n", stateFile, cfg.Watch)
	fmt.Printf("  State keys:   %d\n", len(initial))

	return nil
}
