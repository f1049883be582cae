package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/tinystore"
)

// counter is the shared state of the demo.
type counter struct {
	Count   int    `json:"count"`
	LastBy  string `json:"last_by"`
	Updated string `json:"updated"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := tinystore.New(counter{},
		tinystore.WithName("counter"),
		tinystore.WithLogger(logger),
		tinystore.WithNavigator(func(target string) {
			logger.Info("navigate", "target", target)
		}),
	)
	if err != nil {
		slog.Error("failed to create store", "error", err)
		os.Exit(1)
	}

	// consumer 1: a read-only view that re-renders on every write
	display := store.Use(func(c counter) {
		fmt.Printf("  display  count=%d (by %s)\n", c.Count, c.LastBy)
	}, tinystore.WithoutSetter())
	defer display.Unmount()

	// consumer 2: a write-only control that bumps the counter and resets it
	// at 50
	control := store.Use(nil, tinystore.WithoutGetter())
	defer control.Unmount()

	host, err := tinystore.NewHost(store, tinystore.WithPort(8080), tinystore.WithHostLogger(logger))
	if err != nil {
		slog.Error("failed to create host", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   tinystore Demo                                      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Consumers:                                          ║")
	fmt.Println("  ║   • display (value only) prints every write           ║")
	fmt.Println("  ║   • control bumps the count every 2s, resets at 50    ║")
	fmt.Println("  ║   • remote client PATCHes over HTTP every 5s          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		reset := control.Result().Set
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				// Update reads and writes in one step, so remote PATCHes in
				// between are never lost
				var count int
				store.Update(func(cur counter) counter {
					count = cur.Count + 1
					return counter{Count: count, LastBy: "control", Updated: now.Format(time.TimeOnly)}
				})
				if count%10 == 0 {
					store.Navigate(fmt.Sprintf("/milestones/%d", count))
				}
				if count >= 50 {
					reset(counter{LastBy: "control", Updated: now.Format(time.TimeOnly)}, true)
				}
			}
		}
	}()

	go RunRemoteClient(ctx, "http://localhost:8080", 5*time.Second, logger)

	if err := host.Start(ctx); err != nil {
		slog.Error("host error", "error", err)
		os.Exit(1)
	}
}
