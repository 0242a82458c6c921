package service

import (
	"context"
	"log/slog"
	"time"
)

// RunTokenPruner deletes long-expired refresh tokens every interval until ctx
// is cancelled.
func RunTokenPruner(ctx context.Context, tokens *TokenService, interval time.Duration, retention time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := tokens.PruneExpired(ctx, retention)
			if err != nil {
				// PruneExpired has logged it; retry on the next tick.
				continue
			}
			if removed > 0 {
				slog.Info("pruned expired refresh tokens", "removed", removed)
			}
		}
	}
}
