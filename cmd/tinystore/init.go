package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/tinystore/config"
)

// starterConfig is the subset of config.Config written by init.
type starterConfig struct {
	Name     string         `yaml:"name" toml:"name"`
	Title    string         `yaml:"title,omitempty" toml:"title,omitempty"`
	Port     int            `yaml:"port" toml:"port"`
	LogLevel string         `yaml:"log_level" toml:"log_level"`
	Metrics  starterMetrics `yaml:"metrics" toml:"metrics"`
	State    map[string]any `yaml:"state" toml:"state"`
}

type starterMetrics struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

func defaultStarter() starterConfig {
	return starterConfig{
		Name:     "tinystore",
		Port:     8080,
		LogLevel: "info",
		State:    map[string]any{"counter": 0},
	}
}

// initCmd writes a starter config file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a starter tinystore configuration file.

Without --yes the command asks for the store name, port and whether to
enable metrics. The output format follows the file extension: .toml writes
TOML, anything else YAML.

Example:
  tinystore init
  tinystore init --yes -o cart.toml`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringP("output", "o", "tinystore.yaml", "path of the config file to write")
	initCmd.Flags().BoolP("yes", "y", false, "accept the defaults without prompting")
	initCmd.Flags().Bool("force", false, "overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	yes, _ := cmd.Flags().GetBool("yes")
	force, _ := cmd.Flags().GetBool("force")

	if !force {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", output)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", output, err)
		}
	}

	starter := defaultStarter()
	if !yes {
		if err := askStarter(&starter); err != nil {
			return err
		}
	}

	data, err := encodeStarter(starter, config.FormatFromPath(output))
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", output)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  tinystore serve -c %s\n", output)
	return nil
}

// askStarter prompts for the starter values, using the current values as
// defaults.
func askStarter(s *starterConfig) error {
	questions := []*survey.Question{
		{
			Name:     "name",
			Prompt:   &survey.Input{Message: "Store name:", Default: s.Name},
			Validate: survey.Required,
		},
		{
			Name:   "port",
			Prompt: &survey.Input{Message: "Port:", Default: strconv.Itoa(s.Port)},
			Validate: func(ans interface{}) error {
				port, err := strconv.Atoi(fmt.Sprint(ans))
				if err != nil || port < 1 || port > 65535 {
					return errors.New("port must be a number between 1 and 65535")
				}
				return nil
			},
		},
		{
			Name:   "metrics",
			Prompt: &survey.Confirm{Message: "Expose Prometheus metrics?", Default: s.Metrics.Enabled},
		},
	}

	answers := struct {
		Name    string
		Port    string
		Metrics bool
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	port, _ := strconv.Atoi(answers.Port)
	s.Name = answers.Name
	s.Port = port
	s.Metrics.Enabled = answers.Metrics
	return nil
}

func encodeStarter(s starterConfig, format config.Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case config.FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return nil, fmt.Errorf("failed to encode TOML: %w", err)
		}
	case config.FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q: use .yaml or .toml", format)
	}
	return buf.Bytes(), nil
}
