package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/httpserver/deps"
	"github.com/MrSnakeDoc/guide/internal/logger"
)

type guideResponse struct {
	ChannelID string                `json:"channelId"`
	Channel   *domain.GuideChannel  `json:"channel,omitempty"`
	Programs  []domain.GuideProgram `json:"programs"`
}

type nowResponse struct {
	ChannelID string              `json:"channelId"`
	At        time.Time           `json:"at"`
	Program   domain.GuideProgram `json:"program"`
}

// Guide serves a guide channel's cached programmes, optionally limited to
// the ?from= / ?to= window.
func Guide(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveGuide(w, r, d, chi.URLParam(r, "channelID"))
	}
}

// PlaylistGuide resolves a playlist key through the current mapping, then
// serves like Guide.
func PlaylistGuide(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		id, ok := d.MemoryIndex.Resolve(key)
		if !ok {
			writeError(w, http.StatusNotFound, "playlist channel is not mapped to a guide")
			return
		}
		serveGuide(w, r, d, id)
	}
}

func serveGuide(w http.ResponseWriter, r *http.Request, d deps.Deps, channelID string) {
	from, err := parseInstant(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be an RFC 3339 instant")
		return
	}
	to, err := parseInstant(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be an RFC 3339 instant")
		return
	}

	programs, ok := d.GuideStore.Get(r.Context(), channelID, d.Now())
	if !ok {
		d.Logger.Debug("guide miss", logger.String("channel", channelID))
		writeError(w, http.StatusNotFound, "no guide data for channel")
		return
	}

	resp := guideResponse{
		ChannelID: channelID,
		Programs:  domain.Window(programs, from, to),
	}
	if ch, ok := d.MemoryIndex.GetChannel(channelID); ok {
		resp.Channel = &ch
	}
	writeJSON(w, http.StatusOK, resp)
}

// NowPlaying serves the programme airing at ?at= (default: now).
func NowPlaying(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := chi.URLParam(r, "channelID")
		now := d.Now()

		at, err := parseInstant(r, "at")
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be an RFC 3339 instant")
			return
		}
		if at.IsZero() {
			at = now
		}

		programs, ok := d.GuideStore.Get(r.Context(), channelID, now)
		if !ok {
			writeError(w, http.StatusNotFound, "no guide data for channel")
			return
		}
		p, ok := domain.AiringAt(programs, at)
		if !ok {
			writeError(w, http.StatusNotFound, "nothing airing at that time")
			return
		}
		writeJSON(w, http.StatusOK, nowResponse{ChannelID: channelID, At: at.UTC(), Program: p})
	}
}
