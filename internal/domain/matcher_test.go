package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spanishCatalog() []GuideChannel {
	return []GuideChannel{
		{ID: "la1.es", Name: "La 1", Country: "ES"},
		{ID: "la2.es", Name: "La 2", Country: "ES"},
		{ID: "antena3.es", Name: "Antena 3", Country: "ES"},
		{ID: "telemadrid.es", Name: "Telemadrid Más", Country: "ES"},
	}
}

func TestMatchExactIDWinsOverPerfectName(t *testing.T) {
	playlist := []PlaylistChannel{
		// name is a perfect match for la1.es, but the tvg-id points elsewhere
		{Name: "La 1", Attrs: map[string]string{"tvg-id": "la2.es"}},
	}

	res := Match(playlist, spanishCatalog(), nil)

	require.Equal(t, map[string]string{"la2.es": "la2.es"}, res.Map)
	assert.Equal(t, MatchExact, res.Details["la2.es"].Method)
	assert.Equal(t, 100, res.Coverage)
}

func TestMatchUnknownIDFallsBackToFuzzy(t *testing.T) {
	playlist := []PlaylistChannel{
		{Name: "La1", Attrs: map[string]string{"tvg-id": "unknown.id"}},
	}

	res := Match(playlist, spanishCatalog(), nil)

	assert.Equal(t, "la1.es", res.Map["unknown.id"])
	d := res.Details["unknown.id"]
	assert.Equal(t, MatchFuzzy, d.Method)
	assert.InDelta(t, 0.75, d.Score, 1e-9)
}

func TestMatchCoverageRounds(t *testing.T) {
	playlist := []PlaylistChannel{
		{Name: "La 1 HD", Attrs: map[string]string{"tvg-id": "la1.es"}},
		{Name: "Telemadrid Mas"},
		{Name: "Some Shopping Channel"},
	}

	res := Match(playlist, spanishCatalog(), nil)

	assert.Len(t, res.Map, 2)
	assert.Equal(t, 67, res.Coverage)
	assert.Equal(t, []string{"Some Shopping Channel"}, res.Unmatched)
}

func TestMatchEmptyPlaylist(t *testing.T) {
	res := Match(nil, spanishCatalog(), nil)
	assert.Empty(t, res.Map)
	assert.Equal(t, 0, res.Coverage)
}

func TestMatchKeylessChannelIsSkippedButCounted(t *testing.T) {
	playlist := []PlaylistChannel{
		{Name: "   "},
		{Name: "La 2"},
	}

	res := Match(playlist, spanishCatalog(), nil)

	assert.Equal(t, map[string]string{"La 2": "la2.es"}, res.Map)
	assert.Equal(t, 50, res.Coverage)
	assert.Empty(t, res.Unmatched)
}

func TestMatchKeyPrefersIDOverName(t *testing.T) {
	playlist := []PlaylistChannel{{ID: "ch-7", Name: "Antena 3"}}

	res := Match(playlist, spanishCatalog(), nil)

	assert.Equal(t, "antena3.es", res.Map["ch-7"])
}

func TestMatchCountryBonusBreaksNearTie(t *testing.T) {
	catalog := []GuideChannel{
		{ID: "news.uk", Name: "News 24", Country: "UK"},
		{ID: "news.es", Name: "News 24", Country: "ES"},
	}
	playlist := []PlaylistChannel{
		{Name: "News 24", Attrs: map[string]string{"tvg-country": "es"}},
	}

	res := Match(playlist, catalog, nil)

	assert.Equal(t, "news.es", res.Map["News 24"])
	// raw score is 1.1 but the reported score is clamped
	assert.InDelta(t, 1.0, res.Details["News 24"].Score, 1e-9)
}

func TestMatchCustomCountryAttr(t *testing.T) {
	catalog := []GuideChannel{
		{ID: "news.uk", Name: "News 24", Country: "UK"},
		{ID: "news.es", Name: "News 24", Country: "ES"},
	}
	playlist := []PlaylistChannel{
		{Name: "News 24", Attrs: map[string]string{"group-country": "ES"}},
	}

	res := Match(playlist, catalog, &MatchOptions{CountryAttrKey: "group-country"})
	assert.Equal(t, "news.es", res.Map["News 24"])

	res = Match(playlist, catalog, nil)
	assert.Equal(t, "news.uk", res.Map["News 24"], "without the bonus the first entry wins the tie")
}

func TestMatchTiesGoToFirstCatalogEntry(t *testing.T) {
	catalog := []GuideChannel{
		{ID: "first", Name: "Cine A"},
		{ID: "second", Name: "Cine B"},
	}
	playlist := []PlaylistChannel{{Name: "Cine C"}}

	res := Match(playlist, catalog, nil)

	assert.Equal(t, "first", res.Map["Cine C"])
}

func TestMatchThreshold(t *testing.T) {
	playlist := []PlaylistChannel{{Name: "La1"}}

	res := Match(playlist, spanishCatalog(), &MatchOptions{MinSimilarity: Threshold(0.8)})
	assert.Empty(t, res.Map)

	res = Match(playlist, spanishCatalog(), &MatchOptions{MinSimilarity: Threshold(0.75)})
	assert.Equal(t, "la1.es", res.Map["La1"])
}

func TestMatchZeroThresholdAcceptsBestCandidate(t *testing.T) {
	playlist := []PlaylistChannel{{Name: "Antena 3"}}
	catalog := []GuideChannel{{ID: "la1.es", Name: "La 1"}}

	res := Match(playlist, catalog, &MatchOptions{MinSimilarity: Threshold(0)})
	assert.Equal(t, map[string]string{"Antena 3": "la1.es"}, res.Map)
	assert.Equal(t, 100, res.Coverage)
	assert.Empty(t, res.Unmatched)

	// unset falls back to the default threshold
	res = Match(playlist, catalog, &MatchOptions{})
	assert.Empty(t, res.Map)
	assert.Equal(t, []string{"Antena 3"}, res.Unmatched)
}

func TestMatchSharedKeyFirstChannelDecides(t *testing.T) {
	tests := []struct {
		name          string
		playlist      []PlaylistChannel
		wantMap       map[string]string
		wantUnmatched []string
		wantCoverage  int
	}{
		{
			name: "first unmatched, second would match by id",
			playlist: []PlaylistChannel{
				{Name: "la2.es"},
				{Name: "Otra", Attrs: map[string]string{"tvg-id": "la2.es"}},
			},
			wantMap:       map[string]string{},
			wantUnmatched: []string{"la2.es"},
			wantCoverage:  0,
		},
		{
			name: "first matched, second inherits",
			playlist: []PlaylistChannel{
				{Name: "La 1", Attrs: map[string]string{"tvg-id": "la1.es"}},
				{Name: "la1.es"},
			},
			wantMap:      map[string]string{"la1.es": "la1.es"},
			wantCoverage: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Match(tt.playlist, spanishCatalog(), &MatchOptions{MinSimilarity: Threshold(0.9)})
			assert.Equal(t, tt.wantMap, res.Map)
			assert.Equal(t, tt.wantUnmatched, res.Unmatched)
			assert.Equal(t, tt.wantCoverage, res.Coverage)
		})
	}
}

func TestMatchDoesNotMutateInput(t *testing.T) {
	playlist := []PlaylistChannel{
		{Name: "La 1", Attrs: map[string]string{"tvg-id": " la1.es ", "tvg-country": "ES"}},
	}
	before := []PlaylistChannel{
		{Name: "La 1", Attrs: map[string]string{"tvg-id": " la1.es ", "tvg-country": "ES"}},
	}

	res := Match(playlist, spanishCatalog(), nil)

	assert.Equal(t, "la1.es", res.Map["la1.es"])
	if diff := cmp.Diff(before, playlist); diff != "" {
		t.Errorf("playlist mutated (-want +got):\n%s", diff)
	}
}
