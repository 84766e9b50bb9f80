package app

import (
	"context"
	"log/slog"
	"time"
)

// RunSessionJanitor periodically marks idle sessions inactive across all
// projects. Leave is best-effort on the client, so ghost sessions accumulate
// without this loop. Blocks until ctx is canceled.
func (a *App) RunSessionJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-a.sessionIdleAfter)
			expired, err := a.store.ExpireIdleSessions(cutoff)
			if err != nil {
				slog.Warn("session janitor sweep failed", "err", err)
				continue
			}
			if expired > 0 {
				slog.Info("expired idle sessions", "count", expired)
			}
		}
	}
}
