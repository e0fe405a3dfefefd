package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/guide/internal/ingest"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/sources/manifest"
)

// GuideReloader runs the ingest pipeline at startup and whenever the
// manual trigger fires. It never reloads on its own schedule.
type GuideReloader struct {
	loader        *manifest.Loader
	pipeline      *ingest.Pipeline
	logger        logger.Logger
	now           func() time.Time
	stopCh        chan struct{}
	manualTrigger chan struct{}

	mu      sync.Mutex // serialises runs
	lastErr error
}

// NewGuideReloader creates a reloader for the manifest at manifestFile.
// manualTrigger should be buffered with capacity 1 so requests coalesce.
func NewGuideReloader(
	manifestFile string,
	pipeline *ingest.Pipeline,
	log logger.Logger,
	manualTrigger chan struct{},
) *GuideReloader {
	return &GuideReloader{
		loader:        manifest.NewLoader(manifestFile),
		pipeline:      pipeline,
		logger:        log,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads immediately, then waits for manual triggers. A failed
// initial load is logged, not returned: the service keeps answering from
// the snapshot and whatever the durable tier still holds.
func (gr *GuideReloader) Start(ctx context.Context) error {
	if err := gr.Reload(ctx); err != nil {
		gr.logger.Error("initial guide reload failed", logger.Error(err))
	}

	go func() {
		for {
			select {
			case <-gr.manualTrigger:
				gr.logger.Info("manual reload triggered")
				if err := gr.Reload(ctx); err != nil {
					gr.logger.Error("failed to reload guides", logger.Error(err))
				}
			case <-gr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (gr *GuideReloader) Stop() {
	close(gr.stopCh)
}

// Reload reads the manifest and runs one ingest.
func (gr *GuideReloader) Reload(ctx context.Context) error {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	gr.logger.Info("reloading guides")
	started := gr.now()

	err := gr.reload(ctx, started)
	gr.lastErr = err
	if err != nil {
		return err
	}

	gr.logger.Info("guides reloaded",
		logger.Duration("took", gr.now().Sub(started)))
	return nil
}

func (gr *GuideReloader) reload(ctx context.Context, now time.Time) error {
	m, err := gr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	if _, err := gr.pipeline.Run(ctx, m, now); err != nil {
		return fmt.Errorf("failed to ingest guides: %w", err)
	}
	return nil
}

// LastError returns the outcome of the most recent reload, nil on success.
func (gr *GuideReloader) LastError() error {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	return gr.lastErr
}
