// Package seedwatch reloads the seed state file of a served store when it
// changes on disk.
//
// The watcher observes the directory holding the file rather than the file
// itself, because editors commonly save by writing a temporary file and
// renaming it over the original, which drops a watch placed on the file.
package seedwatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// Config configures a [Watcher].
type Config struct {
	// Path is the file to watch.
	Path string

	// Debounce is how long the file must stay quiet before OnChange runs.
	// Defaults to 100ms.
	Debounce time.Duration

	// OnChange is called with Path after each settled change.
	OnChange func(path string)

	// Logger receives watch errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher watches a single file.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(string)
	logger   *slog.Logger
}

// New validates cfg and creates a [Watcher]. Watching starts with
// [Watcher.Run].
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("seed path is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}

	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve seed path: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		onChange: cfg.OnChange,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is cancelled, calling OnChange after each settled
// write, create or rename of the watched file.
//
// Returns an error if the watch cannot be established.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		w.onChange(w.path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("seed watch error", "path", w.path, "error", err)
		}
	}
}
