package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/guide/internal/httpserver/deps"
	"github.com/MrSnakeDoc/guide/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/guide/internal/httpserver/mw"
)

func init() { Register(registerCatalog) }

func registerCatalog(r chi.Router, d deps.Deps) {
	r.Get("/api/channels", handlers.Channels(d))
	r.Get("/api/mapping", handlers.Mapping(d))
	r.Get("/api/sources", handlers.Sources(d))

	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.MatchBurst,
		RefillPerIPPerMin: d.MatchRefillPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	})
	r.With(limit).Post("/api/match", handlers.Match(d))
}
