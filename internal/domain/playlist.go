package domain

import "strings"

// PlaylistChannel is one entry of a user's playlist. The matcher only reads it.
type PlaylistChannel struct {
	ID    string            `json:"id,omitempty"`
	Name  string            `json:"name"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Attr returns the trimmed attribute value, or "" when absent.
func (c PlaylistChannel) Attr(key string) string {
	return strings.TrimSpace(c.Attrs[key])
}

// Key is the lookup key used in a MappingResult: tvg-id, else id, else name.
func (c PlaylistChannel) Key() string {
	if v := c.Attr(GuideIDAttr); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.ID); v != "" {
		return v
	}
	return strings.TrimSpace(c.Name)
}

// MatchMethod tells how a playlist channel was bound.
type MatchMethod string

const (
	MatchExact MatchMethod = "exact"
	MatchFuzzy MatchMethod = "fuzzy"
)

// MatchDetail describes one binding in a MappingResult.
type MatchDetail struct {
	GuideID string      `json:"guideId"`
	Method  MatchMethod `json:"method"`
	Score   float64     `json:"score"` // clamped to [0,1]
}

// MappingResult binds playlist keys to guide channel ids.
type MappingResult struct {
	Map      map[string]string `json:"map"`
	Coverage int               `json:"coverage"` // 0-100

	Details   map[string]MatchDetail `json:"details,omitempty"`
	Unmatched []string               `json:"unmatched,omitempty"`
}

// Resolve returns the guide channel id bound to a playlist key.
func (r MappingResult) Resolve(key string) (string, bool) {
	id, ok := r.Map[key]
	return id, ok
}
