package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// RunRemoteClient bumps the counter over the HTTP state API every interval
// until ctx is cancelled. It reads with GET and writes with PATCH, so the
// in-process consumers observe its writes like any other.
//
// The GET and the PATCH are two requests, so a local bump landing between
// them is overwritten. In-process writers use Store.Update instead.
func RunRemoteClient(ctx context.Context, baseURL string, interval time.Duration, logger *slog.Logger) {
	client := &http.Client{Timeout: 2 * time.Second}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := bump(ctx, client, baseURL, now); err != nil {
				logger.Warn("remote bump failed", "error", err)
			}
		}
	}
}

func bump(ctx context.Context, client *http.Client, baseURL string, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/state", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	var cur counter
	err = json.NewDecoder(resp.Body).Decode(&cur)
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}

	patch, err := json.Marshal(counter{Count: cur.Count + 1, LastBy: "remote", Updated: now.Format(time.TimeOnly)})
	if err != nil {
		return err
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPatch, baseURL+"/api/state", bytes.NewReader(patch))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
