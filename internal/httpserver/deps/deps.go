package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/index"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/store"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedCIDRS      []string // IPs allowed to access /reload and /infra
	TrustProxy        bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)
	MatchBurst        int      // POST /api/match bucket size per IP
	MatchRefillPerMin int      // POST /api/match refill per IP

	MemoryIndex *index.MemoryIndex   // catalog, mapping and source status
	GuideStore  *store.GuideStore    // per-channel programme lists
	Match       *domain.MatchOptions // options for ad-hoc matches, nil = defaults

	DurableBackend string                          // none | redis | sqlite | postgres
	DurablePing    func(ctx context.Context) error // nil when the backend has no liveness probe

	ReloadTrigger chan struct{} // manual reload, buffered 1
	LastReloadErr func() error  // outcome of the latest reload, nil before the first one ends
}

// Now returns the injected clock or time.Now.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
