package domain

import (
	"math"
	"strings"

	"github.com/MrSnakeDoc/guide/internal/normalize"
)

const (
	// GuideIDAttr is the playlist attribute naming the guide channel to bind to.
	GuideIDAttr = "tvg-id"

	DefaultCountryAttrKey = "tvg-country"
	DefaultMinSimilarity  = 0.6

	// CountryBonus is added when playlist and guide channel share a country.
	CountryBonus = 0.1
)

// MatchOptions tunes Match. A nil *MatchOptions means defaults.
type MatchOptions struct {
	CountryAttrKey string
	// MinSimilarity is the fuzzy acceptance threshold; nil means
	// DefaultMinSimilarity. 0 accepts the best candidate whatever its score.
	MinSimilarity *float64
}

// Threshold returns v as a MinSimilarity value.
func Threshold(v float64) *float64 { return &v }

type matchSettings struct {
	countryAttrKey string
	minSimilarity  float64
}

func (o *MatchOptions) withDefaults() matchSettings {
	out := matchSettings{
		countryAttrKey: DefaultCountryAttrKey,
		minSimilarity:  DefaultMinSimilarity,
	}
	if o == nil {
		return out
	}
	if o.CountryAttrKey != "" {
		out.countryAttrKey = o.CountryAttrKey
	}
	if o.MinSimilarity != nil {
		out.minSimilarity = *o.MinSimilarity
	}
	return out
}

type candidate struct {
	ch     GuideChannel
	folded string
}

// Match binds each playlist channel to at most one guide channel.
//
// A tvg-id present in the catalog always wins. Otherwise every guide channel
// is scored by name similarity (plus CountryBonus on a country match) and the
// best one is kept if it reaches MinSimilarity. Ties go to the earlier entry
// of catalog. Coverage counts every playlist channel, keyless ones included.
// When several playlist channels share a key, the first one decides the
// outcome and the others count as matched only if it matched.
func Match(playlist []PlaylistChannel, catalog []GuideChannel, opts *MatchOptions) MappingResult {
	o := opts.withDefaults()

	res := MappingResult{
		Map:     make(map[string]string),
		Details: make(map[string]MatchDetail),
	}

	byID := make(map[string]struct{}, len(catalog))
	candidates := make([]candidate, 0, len(catalog))
	for _, ch := range catalog {
		byID[ch.ID] = struct{}{}
		candidates = append(candidates, candidate{ch: ch, folded: normalize.Name(ch.Name)})
	}

	matched := 0
	decided := make(map[string]bool, len(playlist)) // key -> matched
	for _, pc := range playlist {
		key := pc.Key()
		if key == "" {
			continue
		}
		if ok, seen := decided[key]; seen {
			if ok {
				matched++
			}
			continue
		}

		if id := pc.Attr(GuideIDAttr); id != "" {
			if _, ok := byID[id]; ok {
				res.Map[key] = id
				res.Details[key] = MatchDetail{GuideID: id, Method: MatchExact, Score: 1}
				decided[key] = true
				matched++
				continue
			}
		}

		best, score, ok := bestCandidate(pc, candidates, o)
		if !ok || score < o.minSimilarity {
			decided[key] = false
			res.Unmatched = append(res.Unmatched, key)
			continue
		}
		res.Map[key] = best.ID
		res.Details[key] = MatchDetail{GuideID: best.ID, Method: MatchFuzzy, Score: math.Min(score, 1)}
		decided[key] = true
		matched++
	}

	if len(playlist) > 0 {
		res.Coverage = int(math.Round(float64(matched) / float64(len(playlist)) * 100))
	}
	return res
}

func bestCandidate(pc PlaylistChannel, candidates []candidate, o matchSettings) (GuideChannel, float64, bool) {
	name := normalize.Name(pc.Name)
	country := pc.Attr(o.countryAttrKey)

	var (
		best      GuideChannel
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		score := normalize.SimilarityFolded(name, c.folded)
		if country != "" && c.ch.Country != "" && strings.EqualFold(country, strings.TrimSpace(c.ch.Country)) {
			score += CountryBonus
		}
		if !found || score > bestScore {
			best, bestScore, found = c.ch, score, true
		}
	}
	return best, bestScore, found
}
