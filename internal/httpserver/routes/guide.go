package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/guide/internal/httpserver/deps"
	"github.com/MrSnakeDoc/guide/internal/httpserver/handlers"
)

func init() { Register(registerGuide) }

func registerGuide(r chi.Router, d deps.Deps) {
	r.Get("/api/guide/{channelID}", handlers.Guide(d))
	r.Get("/api/guide/{channelID}/now", handlers.NowPlaying(d))
	r.Get("/api/playlist/{key}/guide", handlers.PlaylistGuide(d))
}
