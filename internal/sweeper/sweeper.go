// Package sweeper periodically reconciles the cache index against its
// backing records, evicting entries whose records expired.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jmallory/pagefeed/internal/feed"
	"github.com/jmallory/pagefeed/internal/metrics"
)

// Config controls sweep cadence and batch size.
type Config struct {
	Interval  time.Duration
	BatchSize int64
}

// Sweeper drives feed.PostCache.Reconcile on a timer.
type Sweeper struct {
	cache  feed.PostCache
	cfg    Config
	logger *zap.Logger
}

// New constructs a Sweeper. Interval defaults to 5 minutes.
func New(cache feed.PostCache, cfg Config, logger *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{cache: cache, cfg: cfg, logger: logger}
}

// Run blocks, sweeping on every tick until the context finishes.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.cache.Reconcile(ctx, s.cfg.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("cache sweep failed", zap.Error(err))
		return
	}
	metrics.ObserveEvictions(removed)
	if removed > 0 {
		s.logger.Info("cache sweep evicted stale entries", zap.Int64("removed", removed))
	}
}
