package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/guide/internal/index"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/store"
)

// SnapshotSyncer restores the last catalog and mapping from the durable
// tier on startup, before the first reload has finished.
type SnapshotSyncer struct {
	durable store.Durable
	index   *index.MemoryIndex
	logger  logger.Logger
}

// NewSnapshotSyncer creates a new snapshot syncer
func NewSnapshotSyncer(d store.Durable, idx *index.MemoryIndex, log logger.Logger) *SnapshotSyncer {
	return &SnapshotSyncer{durable: d, index: idx, logger: log}
}

// Sync loads the snapshot into the index. A missing snapshot is not an error.
func (ss *SnapshotSyncer) Sync(ctx context.Context) error {
	ss.logger.Info("restoring guide snapshot")

	snap, found, err := store.LoadSnapshot(ctx, ss.durable)
	if err != nil {
		return err
	}
	if !found {
		ss.logger.Info("no guide snapshot found")
		return nil
	}

	ss.index.UpdateCatalog(snap.Channels, snap.LoadedAt)
	ss.index.UpdateMapping(snap.Mapping)

	ss.logger.Info("restored guide snapshot",
		logger.Int("channels", len(snap.Channels)),
		logger.Int("coverage", snap.Mapping.Coverage),
		logger.Time("loaded_at", snap.LoadedAt))
	return nil
}
