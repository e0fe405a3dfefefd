// Package store caches per-channel programme lists with a fixed TTL.
//
// The memory tier is authoritative for the process lifetime. A Durable
// backend (redis, sqlite, postgres) is mirrored on a best-effort basis and
// consulted only on memory misses; its failures never reach callers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/logger"
)

const (
	DefaultTTL = 120 * time.Minute

	KeyPrefixPrograms = "guide:programs:"
)

// Durable is the persistence capability the store mirrors to.
// Read reports found=false, err=nil for a missing key.
type Durable interface {
	Read(ctx context.Context, key string) (value string, found bool, err error)
	Write(ctx context.Context, key, value string) error
}

// NopDurable persists nothing.
type NopDurable struct{}

func (NopDurable) Read(context.Context, string) (string, bool, error) { return "", false, nil }
func (NopDurable) Write(context.Context, string, string) error        { return nil }

// ProgramsKey returns the durable key of a channel's programme list.
func ProgramsKey(channelID string) string {
	return KeyPrefixPrograms + channelID
}

type entry struct {
	programs  []domain.GuideProgram
	expiresAt time.Time
}

// persisted is the durable form of an entry. Instants are RFC 3339 strings.
type persisted struct {
	Programs  []domain.GuideProgram `json:"programs"`
	ExpiresAt string                `json:"expiresAt"`
}

// GuideStore holds one entry per guide channel id.
type GuideStore struct {
	mu      sync.RWMutex
	entries map[string]entry

	ttl     time.Duration
	durable Durable
	log     logger.Logger
}

// New builds a store. ttl <= 0 means DefaultTTL; a nil durable means NopDurable.
func New(ttl time.Duration, durable Durable, log logger.Logger) *GuideStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if durable == nil {
		durable = NopDurable{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &GuideStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		durable: durable,
		log:     log,
	}
}

// TTL returns the entry lifetime.
func (s *GuideStore) TTL() time.Duration { return s.ttl }

// Get returns the programmes cached for channelID if they have not expired
// at now. Memory is checked first, then the durable backend; a durable hit
// is rehydrated into memory. Any durable failure is a miss.
func (s *GuideStore) Get(ctx context.Context, channelID string, now time.Time) ([]domain.GuideProgram, bool) {
	s.mu.RLock()
	e, ok := s.entries[channelID]
	s.mu.RUnlock()

	if ok && now.Before(e.expiresAt) {
		return slices.Clone(e.programs), true
	}

	e, ok = s.readDurable(ctx, channelID)
	if !ok || !now.Before(e.expiresAt) {
		return nil, false
	}

	s.mu.Lock()
	// a concurrent Set may have landed while we were reading
	if cur, exists := s.entries[channelID]; !exists || cur.expiresAt.Before(e.expiresAt) {
		s.entries[channelID] = e
	}
	s.mu.Unlock()

	return slices.Clone(e.programs), true
}

// Set replaces the entry for channelID with programs, expiring at now+TTL,
// and mirrors it to the durable backend. Persistence failures are logged only.
func (s *GuideStore) Set(ctx context.Context, channelID string, programs []domain.GuideProgram, now time.Time) {
	e := entry{
		programs:  slices.Clone(programs),
		expiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.entries[channelID] = e
	s.mu.Unlock()

	if err := s.writeDurable(ctx, channelID, e); err != nil {
		s.logStorage("guide store write failed, keeping memory copy", channelID, err)
	}
}

// Len returns the number of entries held in memory, expired ones included.
func (s *GuideStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Prune drops memory entries expired at now and returns how many were removed.
func (s *GuideStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *GuideStore) readDurable(ctx context.Context, channelID string) (entry, bool) {
	raw, found, err := s.durable.Read(ctx, ProgramsKey(channelID))
	if err != nil {
		s.logStorage("guide store read failed", channelID, err)
		return entry{}, false
	}
	if !found {
		return entry{}, false
	}

	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logStorage("guide store entry undecodable", channelID, err)
		return entry{}, false
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, p.ExpiresAt)
	if err != nil {
		s.logStorage("guide store entry has bad expiry", channelID, err)
		return entry{}, false
	}

	for i := range p.Programs {
		p.Programs[i].Start = p.Programs[i].Start.UTC()
		p.Programs[i].End = p.Programs[i].End.UTC()
	}
	return entry{programs: p.Programs, expiresAt: expiresAt}, true
}

func (s *GuideStore) writeDurable(ctx context.Context, channelID string, e entry) error {
	data, err := json.Marshal(persisted{
		Programs:  e.programs,
		ExpiresAt: e.expiresAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	return s.durable.Write(ctx, ProgramsKey(channelID), string(data))
}

func (s *GuideStore) logStorage(msg, channelID string, err error) {
	var serr *domain.StorageError
	if errors.As(err, &serr) {
		s.log.Warn(msg,
			logger.String("channel", channelID),
			logger.String("op", serr.Op),
			logger.Error(serr.Err),
		)
		return
	}
	s.log.Warn(msg, logger.String("channel", channelID), logger.Error(err))
}
