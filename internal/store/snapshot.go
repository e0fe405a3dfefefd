package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/guide/internal/domain"
)

// KeySnapshot holds the last catalog and mapping, so a restarted service can
// answer catalog and mapping queries before its first reload completes.
const KeySnapshot = "guide:snapshot"

// Snapshot is the catalog-level result of one ingest run.
type Snapshot struct {
	Channels []domain.GuideChannel `json:"channels"`
	Mapping  domain.MappingResult  `json:"mapping"`
	LoadedAt time.Time             `json:"loadedAt"`
}

// SaveSnapshot writes snap to d.
func SaveSnapshot(ctx context.Context, d Durable, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := d.Write(ctx, KeySnapshot, string(data)); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the last snapshot. found is false when none was saved.
func LoadSnapshot(ctx context.Context, d Durable) (snap Snapshot, found bool, err error) {
	raw, found, err := d.Read(ctx, KeySnapshot)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if !found {
		return Snapshot{}, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, true, nil
}
