package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/httpserver/deps"
	"github.com/MrSnakeDoc/guide/internal/index"
)

type channelsResponse struct {
	Count      int                   `json:"count"`
	LastReload *time.Time            `json:"lastReload,omitempty"`
	Channels   []domain.GuideChannel `json:"channels"`
}

// Channels lists the guide catalog in catalog order.
func Channels(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels := d.MemoryIndex.Channels()
		resp := channelsResponse{Count: len(channels), Channels: channels}
		if t := d.MemoryIndex.GetLastReload(); !t.IsZero() {
			resp.LastReload = &t
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Mapping returns the playlist mapping of the last reload.
func Mapping(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.MemoryIndex.Mapping())
	}
}

// Sources reports the per-source outcome of the last reload.
func Sources(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources := d.MemoryIndex.Sources()
		if sources == nil {
			sources = []index.SourceStatus{}
		}
		writeJSON(w, http.StatusOK, sources)
	}
}
