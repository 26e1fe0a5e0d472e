package core

// scheduler.go runs dataset retention in the background.
//
// Datasets older than the configured retention are purged once at start and
// then every CheckInterval. A failed purge is logged and retried on the next
// tick; it never stops the server.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls the retention scheduler.
type RetentionConfig struct {
	MaxAge        time.Duration // Datasets older than this are purged; 0 disables
	CheckInterval time.Duration // How often to run (default: 1h)
}

// StartRetentionScheduler purges expired datasets until ctx is cancelled.
// It returns at once when storage or retention is disabled.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	if s.store == nil || cfg.MaxAge <= 0 {
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}

	slog.Info("retention scheduler started",
		"max_age", cfg.MaxAge.String(),
		"interval", cfg.CheckInterval.String(),
	)

	// Run immediately on startup
	s.runRetentionJob(ctx, cfg.MaxAge, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case now := <-ticker.C:
			s.runRetentionJob(ctx, cfg.MaxAge, now)
		}
	}
}

// runRetentionJob performs one purge and reports how many datasets went.
func (s *Service) runRetentionJob(ctx context.Context, maxAge time.Duration, now time.Time) int64 {
	start := time.Now()
	cutoff := now.Add(-maxAge)

	purged, err := s.store.Purge(ctx, cutoff)
	if err != nil {
		slog.Error("dataset purge failed", "error", err)
		return 0
	}

	slog.Info("purged expired datasets",
		"datasets_purged", purged,
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged
}
