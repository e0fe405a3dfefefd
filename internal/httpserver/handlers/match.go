package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/httpserver/deps"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/sources/m3u"
)

const maxMatchBody = 4 << 20

type matchRequest struct {
	Channels []domain.PlaylistChannel `json:"channels"`
}

// Match binds an ad-hoc playlist to the current catalog. The body is
// either JSON ({"channels": [...]}) or a raw M3U playlist.
func Match(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMatchBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "playlist too large")
				return
			}
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}

		playlist, err := decodePlaylist(r.Header.Get("Content-Type"), body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result := domain.Match(playlist, d.MemoryIndex.Channels(), d.Match)
		d.Logger.Debug("ad-hoc match",
			logger.Int("channels", len(playlist)),
			logger.Int("coverage", result.Coverage))
		writeJSON(w, http.StatusOK, result)
	}
}

func decodePlaylist(contentType string, body []byte) ([]domain.PlaylistChannel, error) {
	trimmed := bytes.TrimSpace(body)
	if strings.Contains(contentType, "mpegurl") || bytes.HasPrefix(trimmed, []byte("#EXTM3U")) {
		return m3u.ParsePlaylist(bytes.NewReader(body))
	}

	var req matchRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, errors.New("body must be a JSON channel list or an M3U playlist")
	}
	return req.Channels, nil
}
