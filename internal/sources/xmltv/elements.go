package xmltv

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/guide/internal/domain"
)

// Credit roles kept on programmes.
var creditRoles = map[string]struct{}{
	"director": {},
	"actor":    {},
	"writer":   {},
}

var onscreenEpisode = regexp.MustCompile(`(?i)^S(\d+)\s*E(\d+)`)

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// text reads the character data of el and consumes its end tag.
func text(dec *xml.Decoder, el xml.StartElement) (string, error) {
	var s string
	if err := dec.DecodeElement(&s, &el); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func readChannel(dec *xml.Decoder, start xml.StartElement) (domain.GuideChannel, error) {
	ch := domain.GuideChannel{ID: attr(start, "id")}

	for {
		tok, err := dec.Token()
		if err != nil {
			return ch, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "display-name":
				name, err := text(dec, el)
				if err != nil {
					return ch, err
				}
				if ch.Name == "" {
					ch.Name = name
				}
			case "icon":
				if ch.Logo == "" {
					ch.Logo = attr(el, "src")
				}
				if err := dec.Skip(); err != nil {
					return ch, err
				}
			default:
				if err := dec.Skip(); err != nil {
					return ch, err
				}
			}
		case xml.EndElement:
			return ch, nil
		}
	}
}

func readProgramme(dec *xml.Decoder, start xml.StartElement) (rawProgramme, error) {
	raw := rawProgramme{
		channel: attr(start, "channel"),
		start:   attr(start, "start"),
		stop:    attr(start, "stop"),
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return raw, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if err := readProgrammeChild(dec, el, &raw); err != nil {
				return raw, err
			}
		case xml.EndElement:
			return raw, nil
		}
	}
}

func readProgrammeChild(dec *xml.Decoder, el xml.StartElement, raw *rawProgramme) error {
	switch el.Name.Local {
	case "title", "desc", "category":
		v, err := text(dec, el)
		if err != nil {
			return err
		}
		// first occurrence wins
		switch {
		case el.Name.Local == "title" && raw.title == "":
			raw.title = v
		case el.Name.Local == "desc" && raw.desc == "":
			raw.desc = v
		case el.Name.Local == "category" && raw.genre == "":
			raw.genre = v
		}
		return nil

	case "episode-num":
		system := attr(el, "system")
		v, err := text(dec, el)
		if err != nil {
			return err
		}
		if raw.episode == nil {
			raw.episode = parseEpisode(system, v)
		}
		return nil

	case "credits":
		return readCredits(dec, raw)

	case "rating":
		return readRating(dec, raw)

	default:
		return dec.Skip()
	}
}

func readCredits(dec *xml.Decoder, raw *rawProgramme) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			role := el.Name.Local
			name, err := text(dec, el)
			if err != nil {
				return err
			}
			if _, ok := creditRoles[role]; !ok || name == "" {
				continue
			}
			if raw.credits == nil {
				raw.credits = make(map[string][]string)
			}
			raw.credits[role] = append(raw.credits[role], name)
		case xml.EndElement:
			return nil
		}
	}
}

func readRating(dec *xml.Decoder, raw *rawProgramme) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "value" {
				if err := dec.Skip(); err != nil {
					return err
				}
				continue
			}
			v, err := text(dec, el)
			if err != nil {
				return err
			}
			if raw.rating == "" {
				raw.rating = v
			}
		case xml.EndElement:
			return nil
		}
	}
}

// parseEpisode reads xmltv_ns ("S.E.P", 0-based, "/total" suffixes allowed)
// and onscreen ("S01E05") numbering. Returns nil when nothing is usable.
func parseEpisode(system, v string) *domain.Episode {
	var ep domain.Episode

	switch strings.ToLower(system) {
	case "xmltv_ns":
		parts := strings.Split(v, ".")
		if len(parts) < 2 {
			return nil
		}
		if n, ok := nsNumber(parts[0]); ok {
			ep.Season = n + 1
		}
		if n, ok := nsNumber(parts[1]); ok {
			ep.Episode = n + 1
		}
	case "onscreen", "":
		m := onscreenEpisode.FindStringSubmatch(strings.TrimSpace(v))
		if m == nil {
			return nil
		}
		ep.Season, _ = strconv.Atoi(m[1])
		ep.Episode, _ = strconv.Atoi(m[2])
	default:
		return nil
	}

	if ep.Season == 0 && ep.Episode == 0 {
		return nil
	}
	return &ep
}

// nsNumber reads one xmltv_ns field such as " 4 " or "4/12".
func nsNumber(s string) (int, bool) {
	s, _, _ = strings.Cut(s, "/")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
