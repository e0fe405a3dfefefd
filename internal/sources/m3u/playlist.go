package m3u

import (
	"fmt"
	"io"
	"strings"

	"github.com/MrSnakeDoc/guide/internal/domain"
)

// ParsePlaylist reads the channel list of an M3U playlist. Each #EXTINF
// followed by a stream URL yields one channel; an #EXTINF without a URL is
// dropped. Name is the display title, falling back to tvg-name then tvg-id.
func ParsePlaylist(r io.Reader) ([]domain.PlaylistChannel, error) {
	var (
		channels []domain.PlaylistChannel
		pending  *domain.PlaylistChannel
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case hasTag(line, tagInf):
			attrs, title := splitInf(line[len(tagInf):])
			pending = &domain.PlaylistChannel{
				ID:    attrs["channel-id"],
				Name:  firstNonEmpty(title, attrs["tvg-name"], attrs[domain.GuideIDAttr]),
				Attrs: attrs,
			}
		case isStreamLine(line):
			if pending == nil {
				continue
			}
			channels = append(channels, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.ParseError{Format: format, Err: fmt.Errorf("failed to read playlist: %w", err)}
	}
	return channels, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
