// Package m3u reads M3U playlists: the channel list used for matching and
// the guide directives some providers embed in playlist comments.
package m3u

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

const (
	format = "m3u"

	tagHeader = "#EXTM3U"
	tagInf    = "#EXTINF:"
	tagGuide  = "#EXTGUIDE:"
	tagProg   = "#EXTPROG:"

	// Long EXTINF lines are common, some carry base64 logos.
	maxLineSize = 1024 * 1024
)

var reAttr = regexp.MustCompile(`([A-Za-z0-9_-]+)="([^"]*)"`)

// newScanner returns a line scanner sized for real-world playlists.
func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return s
}

// hasTag reports whether line starts with tag, ignoring case.
func hasTag(line, tag string) bool {
	return len(line) >= len(tag) && strings.EqualFold(line[:len(tag)], tag)
}

// parseAttrs collects key="value" pairs. Keys are lowercased, values trimmed;
// the first occurrence of a key wins.
func parseAttrs(s string) map[string]string {
	out := make(map[string]string)
	for _, m := range reAttr.FindAllStringSubmatch(s, -1) {
		key := strings.ToLower(m[1])
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = strings.TrimSpace(m[2])
	}
	return out
}

// splitInf splits the body of an #EXTINF line (tag removed) into its
// attribute part and the display title after the first unquoted comma.
func splitInf(body string) (attrs map[string]string, title string) {
	inQuotes := false
	for i, r := range body {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return parseAttrs(body[:i]), strings.TrimSpace(body[i+1:])
			}
		}
	}
	return parseAttrs(body), ""
}

// isStreamLine reports whether a trimmed line is a stream URL line.
func isStreamLine(trimmed string) bool {
	return trimmed != "" && !strings.HasPrefix(trimmed, "#")
}
