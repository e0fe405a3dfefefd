package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/httpserver"
	"github.com/MrSnakeDoc/guide/internal/httpserver/deps"
	"github.com/MrSnakeDoc/guide/internal/index"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/store"
)

var now = time.Date(2023, 12, 25, 13, 10, 0, 0, time.UTC)

func program(title string, start time.Time, minutes int) domain.GuideProgram {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return domain.GuideProgram{
		ID:        "xmltv_la1.es_" + title,
		ChannelID: "la1.es",
		Title:     title,
		Start:     start,
		End:       end,
		Duration:  domain.DurationMinutes(start, end),
	}
}

type harness struct {
	handler http.Handler
	deps    deps.Deps
}

func newHarness(t *testing.T) harness {
	t.Helper()
	log := logger.NewNop()

	idx := index.NewMemoryIndex()
	idx.UpdateCatalog([]domain.GuideChannel{
		{ID: "la1.es", Name: "La 1", Country: "ES"},
		{ID: "la2.es", Name: "La 2", Country: "ES"},
	}, now.Add(-time.Hour))
	idx.UpdateMapping(domain.MappingResult{Map: map[string]string{"la1-hd": "la1.es"}, Coverage: 50})

	s := store.New(0, nil, log)
	start := time.Date(2023, 12, 25, 13, 0, 0, 0, time.UTC)
	s.Set(context.Background(), "la1.es", []domain.GuideProgram{
		program("Telediario", start, 30),
		program("Corazón", start.Add(30*time.Minute), 30),
	}, now)

	d := deps.Deps{
		Logger:            log,
		StartTime:         now.Add(-time.Minute),
		Version:           "test",
		TimeNow:           func() time.Time { return now },
		MatchBurst:        5,
		MatchRefillPerMin: 5,
		MemoryIndex:       idx,
		GuideStore:        s,
		DurableBackend:    "none",
		ReloadTrigger:     make(chan struct{}, 1),
	}
	return harness{handler: httpserver.NewRouter(log, d), deps: d}
}

func (h harness) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", contentType)
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type guideBody struct {
	ChannelID string                `json:"channelId"`
	Channel   *domain.GuideChannel  `json:"channel"`
	Programs  []domain.GuideProgram `json:"programs"`
}

func TestGuideEndpoint(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/guide/la1.es", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[guideBody](t, w)
	assert.Equal(t, "la1.es", body.ChannelID)
	require.NotNil(t, body.Channel)
	assert.Equal(t, "La 1", body.Channel.Name)
	require.Len(t, body.Programs, 2)
	assert.Equal(t, 30, body.Programs[0].Duration)

	w = h.do(t, http.MethodGet, "/api/guide/la1.es?from=2023-12-25T13:30:00Z", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[guideBody](t, w)
	require.Len(t, body.Programs, 1)
	assert.Equal(t, "Corazón", body.Programs[0].Title)

	w = h.do(t, http.MethodGet, "/api/guide/la1.es?to=2023-12-25T13:30:00Z", "", "")
	body = decode[guideBody](t, w)
	require.Len(t, body.Programs, 1)
	assert.Equal(t, "Telediario", body.Programs[0].Title)
}

func TestGuideEndpointErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"bad from", "/api/guide/la1.es?from=yesterday", http.StatusBadRequest},
		{"bad to", "/api/guide/la1.es?to=13:00", http.StatusBadRequest},
		{"unknown channel", "/api/guide/cuatro.es", http.StatusNotFound},
		{"catalog channel without programmes", "/api/guide/la2.es", http.StatusNotFound},
		{"unmapped playlist key", "/api/playlist/unknown/guide", http.StatusNotFound},
		{"bad at", "/api/guide/la1.es/now?at=noon", http.StatusBadRequest},
		{"nothing airing", "/api/guide/la1.es/now?at=2023-12-25T15:00:00Z", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodGet, tt.target, "", "")
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestNowPlaying(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/guide/la1.es/now", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Telediario", decode[struct {
		Program domain.GuideProgram `json:"program"`
	}](t, w).Program.Title)

	w = h.do(t, http.MethodGet, "/api/guide/la1.es/now?at=2023-12-25T13:30:00Z", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Corazón", decode[struct {
		Program domain.GuideProgram `json:"program"`
	}](t, w).Program.Title)
}

func TestPlaylistGuide(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/playlist/la1-hd/guide", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[guideBody](t, w)
	assert.Equal(t, "la1.es", body.ChannelID)
	assert.Len(t, body.Programs, 2)
}

func TestCatalogEndpoints(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/channels", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	channels := decode[struct {
		Count    int                   `json:"count"`
		Channels []domain.GuideChannel `json:"channels"`
	}](t, w)
	assert.Equal(t, 2, channels.Count)
	assert.Equal(t, "la1.es", channels.Channels[0].ID)

	w = h.do(t, http.MethodGet, "/api/mapping", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	mapping := decode[domain.MappingResult](t, w)
	assert.Equal(t, 50, mapping.Coverage)
	assert.Equal(t, "la1.es", mapping.Map["la1-hd"])

	w = h.do(t, http.MethodGet, "/api/sources", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestMatchEndpoint(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/match", "application/json",
		`{"channels":[{"name":"La1"},{"name":"Telecinco"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[domain.MappingResult](t, w)
	assert.Equal(t, map[string]string{"La1": "la1.es"}, res.Map)
	assert.Equal(t, 50, res.Coverage)
	assert.Equal(t, domain.MatchFuzzy, res.Details["La1"].Method)
	assert.InDelta(t, 0.75, res.Details["La1"].Score, 1e-9)

	w = h.do(t, http.MethodPost, "/api/match", "audio/x-mpegurl",
		"#EXTM3U\n#EXTINF:-1 tvg-id=\"la2.es\",La 2\nhttp://s/la2\n")
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[domain.MappingResult](t, w)
	assert.Equal(t, map[string]string{"la2.es": "la2.es"}, res.Map)
	assert.Equal(t, 100, res.Coverage)

	w = h.do(t, http.MethodPost, "/api/match", "application/json", "{nope")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatchEndpointRateLimited(t *testing.T) {
	h := newHarness(t)

	var last int
	for i := 0; i < 6; i++ {
		last = h.do(t, http.MethodPost, "/api/match", "application/json", `{"channels":[]}`).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestReloadEndpoint(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/reload", "", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	// nobody drains the trigger, so the second request is coalesced
	w = h.do(t, http.MethodPost, "/reload", "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	<-h.deps.ReloadTrigger
	w = h.do(t, http.MethodPost, "/reload", "", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[map[string]any](t, w)
	assert.Equal(t, "ok", health["status"])
	assert.InDelta(t, 60, health["uptime_seconds"], 1e-9)

	w = h.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/infra", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	infra := decode[struct {
		Mode string `json:"mode"`
	}](t, w)
	assert.Equal(t, "optimal", infra.Mode)
}

func TestReadyzEmptyCatalog(t *testing.T) {
	log := logger.NewNop()
	d := deps.Deps{
		Logger:      log,
		MemoryIndex: index.NewMemoryIndex(),
		GuideStore:  store.New(0, nil, log),
	}
	w := httptest.NewRecorder()
	httpserver.NewRouter(log, d).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInfraDegradedDurable(t *testing.T) {
	h := newHarness(t)
	d := h.deps
	d.DurableBackend = "redis"
	d.DurablePing = func(context.Context) error { return errors.New("connection refused") }
	d.LastReloadErr = func() error { return nil }

	w := httptest.NewRecorder()
	httpserver.NewRouter(logger.NewNop(), d).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/infra", nil))
	require.Equal(t, http.StatusOK, w.Code)

	infra := decode[struct {
		Mode       string `json:"mode"`
		Components map[string]struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		} `json:"components"`
	}](t, w)
	assert.Equal(t, "degraded", infra.Mode)
	assert.False(t, infra.Components["durable"].OK)
	assert.Equal(t, "connection refused", infra.Components["durable"].Error)
}
