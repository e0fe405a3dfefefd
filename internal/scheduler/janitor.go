package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/store"
)

// DefaultPruneInterval is how often expired store entries are dropped.
const DefaultPruneInterval = 15 * time.Minute

// Janitor drops expired entries from the guide store's memory tier.
// Expired entries are already invisible to readers; this only bounds memory.
type Janitor struct {
	store    *store.GuideStore
	logger   logger.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewJanitor creates a janitor. interval <= 0 disables it.
func NewJanitor(s *store.GuideStore, log logger.Logger, interval time.Duration) *Janitor {
	return &Janitor{
		store:    s,
		logger:   log,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic prune.
func (j *Janitor) Start(ctx context.Context) error {
	if j.interval <= 0 {
		j.logger.Info("store janitor disabled")
		return nil
	}

	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.Collect()
			case <-j.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the janitor
func (j *Janitor) Stop() {
	close(j.stopCh)
}

// Collect prunes once and returns the number of entries removed.
func (j *Janitor) Collect() int {
	removed := j.store.Prune(j.now())
	if removed > 0 {
		j.logger.Info("pruned expired guide entries",
			logger.Int("removed", removed),
			logger.Int("remaining", j.store.Len()))
	} else {
		j.logger.Debug("no expired guide entries")
	}
	return removed
}
