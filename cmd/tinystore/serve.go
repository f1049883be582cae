package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/tinystore"
	"github.com/jpalmerr/tinystore/config"
	"github.com/jpalmerr/tinystore/internal/seedwatch"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadEnvFile loads KEY=VALUE pairs from path into the environment.
// Variables already set win. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// serveCmd serves a store built from a config file.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the store",
	Long: `Serve a store built from a config file.

The server will:
  - Load environment variables from .env (if present)
  - Load configuration from the specified YAML or TOML file
  - Build the initial state from the inline state and the state file
  - Serve the state API, live streams and inspector on the configured port
  - Reload the state file on change when watch is enabled

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  tinystore serve -c tinystore.yaml
  tinystore serve --config /etc/tinystore/cart.toml --env-file /etc/tinystore/.env`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("env-file", ".env", "path to a .env file loaded before the config")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Level())

	initial, err := config.InitialState(cfg)
	if err != nil {
		return fmt.Errorf("failed to build initial state: %w", err)
	}

	logger.Info("config loaded",
		"store", cfg.Name,
		"keys", len(initial),
		"state_file", cfg.StateFile,
		"watch", cfg.Watch,
	)

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	storeOpts, err := config.BuildStoreOptions(cfg, logger, registererOrNil(registry))
	if err != nil {
		return fmt.Errorf("failed to build store options: %w", err)
	}

	store, err := tinystore.New(initial, storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	host, err := tinystore.NewHost(store, config.BuildHostOptions(cfg, logger, gathererOrNil(registry))...)
	if err != nil {
		return fmt.Errorf("failed to create host: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Watch {
		watcher, err := seedwatch.New(seedwatch.Config{
			Path:     cfg.StateFile,
			Debounce: cfg.WatchDebounce.Duration(),
			OnChange: reloadState(cfg, store, logger),
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to watch state file: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("state file watch stopped", "error", err)
			}
		}()
	}

	logger.Info("starting server", "port", cfg.Port, "read_only", cfg.ReadOnly)

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- host.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// reloadState rebuilds the initial state after the state file changed and
// replaces the store's state with it. A file that fails to parse is logged
// and leaves the state untouched.
func reloadState(cfg *config.Config, store *tinystore.Store[map[string]any], logger *slog.Logger) func(string) {
	return func(path string) {
		next, err := config.InitialState(cfg)
		if err != nil {
			logger.Warn("state file reload failed", "path", path, "error", err)
			return
		}
		store.ReplaceState(next)
		logger.Info("state file reloaded", "path", path, "keys", len(next))
	}
}

// registererOrNil avoids handing a typed nil to an interface parameter.
func registererOrNil(r *prometheus.Registry) prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r
}

// gathererOrNil avoids handing a typed nil to an interface parameter.
func gathererOrNil(r *prometheus.Registry) prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r
}
