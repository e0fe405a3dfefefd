package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/guide/internal/httpserver/deps"
	"github.com/MrSnakeDoc/guide/internal/index"
)

type componentStatus struct {
	OK         bool                 `json:"ok"`
	Channels   *int                 `json:"channels,omitempty"`
	Entries    *int                 `json:"entries,omitempty"`
	Coverage   *int                 `json:"coverage,omitempty"`
	LastReload string               `json:"last_reload,omitempty"`
	Mode       string               `json:"mode,omitempty"`
	Impact     string               `json:"impact,omitempty"`
	Error      string               `json:"error,omitempty"`
	Sources    []index.SourceStatus `json:"sources,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Uptime     string                     `json:"uptime"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of the catalog, the store and the durable tier.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels := d.MemoryIndex.Count()
		coverage := d.MemoryIndex.Mapping().Coverage
		entries := d.GuideStore.Len()

		lastReload := "never"
		if t := d.MemoryIndex.GetLastReload(); !t.IsZero() {
			lastReload = t.UTC().Format(time.RFC3339)
		}

		catalog := componentStatus{
			OK:         channels > 0,
			Channels:   &channels,
			Coverage:   &coverage,
			LastReload: lastReload,
			Sources:    d.MemoryIndex.Sources(),
		}
		if d.LastReloadErr != nil {
			if err := d.LastReloadErr(); err != nil {
				catalog.Error = err.Error()
			}
		}

		components := map[string]componentStatus{
			"catalog": catalog,
			"store":   {OK: true, Entries: &entries, Mode: "ttl " + d.GuideStore.TTL().String()},
			"durable": checkDurable(r.Context(), d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       overallMode(components),
			Uptime:     uptime(d).String(),
			Components: components,
		})
	}
}

func overallMode(components map[string]componentStatus) string {
	if !components["catalog"].OK {
		return "critical" // nothing to serve
	}
	if !components["durable"].OK || components["catalog"].Error != "" {
		return "degraded"
	}
	return "optimal"
}

func checkDurable(ctx context.Context, d deps.Deps) componentStatus {
	if d.DurableBackend == "" || d.DurableBackend == "none" {
		return componentStatus{OK: true, Mode: "memory-only", Impact: "guide lost on restart"}
	}
	if d.DurablePing == nil {
		return componentStatus{OK: true, Mode: d.DurableBackend}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.DurablePing(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.DurableBackend,
			Impact: "fallback-disabled",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: d.DurableBackend}
}
