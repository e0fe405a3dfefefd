package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/guide/internal/domain"
)

// SourceStatus is the outcome of the last load of one guide source.
type SourceStatus struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Channels int       `json:"channels"`
	Programs int       `json:"programs"`
	Skipped  int       `json:"skipped"`
	Error    string    `json:"error,omitempty"`
	LoadedAt time.Time `json:"loadedAt"`
}

// MemoryIndex holds the latest guide catalog and playlist mapping for the
// HTTP surface. Programmes live in the guide store, not here.
type MemoryIndex struct {
	mu         sync.RWMutex
	channels   map[string]domain.GuideChannel // ID -> channel
	order      []string                       // catalog order
	mapping    domain.MappingResult
	sources    []SourceStatus
	lastReload time.Time
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		channels: make(map[string]domain.GuideChannel),
		mapping:  domain.MappingResult{Map: map[string]string{}},
	}
}

// UpdateCatalog replaces the catalog, keeping the given order.
func (idx *MemoryIndex) UpdateCatalog(channels []domain.GuideChannel, at time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.channels = make(map[string]domain.GuideChannel, len(channels))
	idx.order = make([]string, 0, len(channels))
	for _, ch := range channels {
		if _, dup := idx.channels[ch.ID]; dup {
			continue
		}
		idx.channels[ch.ID] = ch
		idx.order = append(idx.order, ch.ID)
	}
	idx.lastReload = at
}

// GetChannel retrieves a guide channel by ID.
func (idx *MemoryIndex) GetChannel(id string) (domain.GuideChannel, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ch, ok := idx.channels[id]
	return ch, ok
}

// Channels returns the catalog in catalog order.
func (idx *MemoryIndex) Channels() []domain.GuideChannel {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.GuideChannel, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.channels[id])
	}
	return out
}

// Count returns the number of catalog channels.
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.channels)
}

// GetLastReload returns the time of the last catalog update.
func (idx *MemoryIndex) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}

// ─────────────────────────────────────────────────────────────────
// Mapping
// ─────────────────────────────────────────────────────────────────

// UpdateMapping replaces the playlist mapping.
func (idx *MemoryIndex) UpdateMapping(m domain.MappingResult) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if m.Map == nil {
		m.Map = map[string]string{}
	}
	idx.mapping = m
}

// Mapping returns the last playlist mapping.
func (idx *MemoryIndex) Mapping() domain.MappingResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.mapping
}

// Resolve maps a playlist key to its guide channel id.
func (idx *MemoryIndex) Resolve(key string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.mapping.Resolve(key)
}

// ─────────────────────────────────────────────────────────────────
// Sources
// ─────────────────────────────────────────────────────────────────

// UpdateSources records the per-source outcome of the last reload.
func (idx *MemoryIndex) UpdateSources(statuses []SourceStatus) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.sources = append([]SourceStatus(nil), statuses...)
}

// Sources returns the per-source outcome of the last reload.
func (idx *MemoryIndex) Sources() []SourceStatus {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return append([]SourceStatus(nil), idx.sources...)
}
