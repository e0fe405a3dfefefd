// Package normalize holds the pure text and time helpers shared by the guide
// parsers and the channel matcher.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// foldDiacritics returns a fresh transformer; transform chains keep state and
// must not be shared between goroutines.
func foldDiacritics() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// StripDiacritics removes combining marks: "Telemadrid Más" -> "Telemadrid Mas".
func StripDiacritics(s string) string {
	out, _, err := transform.String(foldDiacritics(), s)
	if err != nil {
		return s
	}
	return out
}

// Name folds a display name for comparison: lowercase, diacritics stripped,
// every run of non letters/digits collapsed to a single space, trimmed.
// Example: "  La-1 ÉXITO  " -> "la 1 exito"
func Name(s string) string {
	s = strings.ToLower(StripDiacritics(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Slug builds a channel id from a display title: lowercase, runs of anything
// outside [a-z0-9] become one underscore, edge underscores trimmed.
// Example: "La 1 HD (Spain)" -> "la_1_hd_spain"
func Slug(s string) string {
	s = slugSeparators.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}

// HashID returns a short base-36 32-bit hash of s. It only keeps derived ids
// short and collision-unlikely within a channel/day; it is not a security hash.
func HashID(s string) string {
	h := uint32(xxhash.Sum64String(s))
	return strconv.FormatUint(uint64(h), 36)
}

// Similarity compares two display names after folding them with Name:
// 1 - levenshtein(a, b) / max(len(a), len(b), 1).
func Similarity(a, b string) float64 {
	return SimilarityFolded(Name(a), Name(b))
}

// SimilarityFolded is Similarity for inputs already folded with Name.
func SimilarityFolded(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b), 1)
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}
