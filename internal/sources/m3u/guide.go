package m3u

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/normalize"
)

const (
	DefaultExternalLabel = "Guide available externally"

	placeholderLength = time.Hour
)

// "# La 1: Telediario (21:00-21:45) - Noticias de la noche"
var reCommentProgram = regexp.MustCompile(`^#\s*([^:]+?)\s*:\s*(.+?)\s*\((\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})\)\s*(?:-\s*(.*?))?\s*$`)

// GuideOptions configures a GuideParser.
type GuideOptions struct {
	// Now is the clock used for placeholders and comment programs.
	Now func() time.Time

	// Location is the wall clock comment programs are read in.
	Location *time.Location

	// ExternalLabel titles the placeholder of channels with only a guide URL.
	ExternalLabel string

	Log logger.Logger
}

// GuideParser implements domain.GuideParser for guide data embedded in a
// playlist: #EXTINF channels, #EXTGUIDE references, #EXTPROG programmes and
// the "# <channel>: <title> (HH:MM-HH:MM) - <desc>" comment convention.
type GuideParser struct {
	now      func() time.Time
	loc      *time.Location
	external string
	log      logger.Logger
}

var _ domain.GuideParser = (*GuideParser)(nil)

func NewGuideParser(opts GuideOptions) *GuideParser {
	p := &GuideParser{
		now:      opts.Now,
		loc:      opts.Location,
		external: opts.ExternalLabel,
		log:      opts.Log,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	if p.external == "" {
		p.external = DefaultExternalLabel
	}
	if p.log == nil {
		p.log = logger.NewNop()
	}
	return p
}

// current is the channel whose directives are being read.
type current struct {
	id       string
	guideURL string
	shift    int // minutes
	declared int
}

// Parse scans text once for directives, then falls back to the comment
// convention for channels that got no programme at all.
func (p *GuideParser) Parse(text string) (*domain.Guide, error) {
	now := p.now()
	g := domain.NewGuide()
	covered := make(map[string]bool)
	var comments []string
	var cur *current

	closeCurrent := func(streamSeen bool) {
		if cur == nil || cur.guideURL == "" {
			cur = nil
			return
		}
		g.References = append(g.References, domain.GuideReference{ChannelID: cur.id, URL: cur.guideURL, Shift: cur.shift})
		if streamSeen && cur.declared == 0 {
			g.AddProgram(newProgram(cur.id, p.external, "", now, now.Add(placeholderLength)))
			covered[cur.id] = true
		}
		cur = nil
	}

	scanner := newScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
		case hasTag(line, tagHeader):
			g.References = append(g.References, headerReferences(line[len(tagHeader):])...)

		case hasTag(line, tagInf):
			closeCurrent(false)
			cur = p.declareChannel(g, line[len(tagInf):])

		case hasTag(line, tagGuide):
			if cur == nil {
				continue
			}
			attrs := parseAttrs(line[len(tagGuide):])
			if u := attrs["url"]; u != "" {
				cur.guideURL = u
			}
			if s, err := strconv.Atoi(attrs["shift"]); err == nil {
				cur.shift = s
			}

		case hasTag(line, tagProg):
			if cur == nil {
				g.Skipped++
				continue
			}
			prog, ok := p.declaredProgram(cur, parseAttrs(line[len(tagProg):]))
			if !ok {
				g.Skipped++
				p.log.Warn("embedded programme skipped", logger.String("channel", cur.id))
				continue
			}
			g.AddProgram(prog)
			cur.declared++
			covered[cur.id] = true

		case strings.HasPrefix(line, "#"):
			if !hasTag(line, "#EXT") {
				comments = append(comments, line)
			}

		default:
			closeCurrent(true)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.ParseError{Format: format, Err: err}
	}
	closeCurrent(false)

	p.commentPrograms(g, comments, covered, now)
	g.SortPrograms()

	p.log.Debug("embedded guide parsed",
		logger.Int("channels", len(g.Channels)),
		logger.Int("programs", g.ProgramCount()),
		logger.Int("references", len(g.References)),
	)
	return g, nil
}

func (p *GuideParser) declareChannel(g *domain.Guide, body string) *current {
	attrs, title := splitInf(body)

	id := firstNonEmpty(attrs[domain.GuideIDAttr], attrs["channel-id"], normalize.Slug(title))
	if id == "" {
		g.Skipped++
		return nil
	}
	g.AddChannel(domain.GuideChannel{
		ID:      id,
		Name:    firstNonEmpty(title, attrs["tvg-name"]),
		Logo:    attrs["tvg-logo"],
		Country: attrs["tvg-country"],
	})

	return &current{
		id:       id,
		guideURL: attrs["tvg-url"],
		shift:    shiftHours(attrs["tvg-shift"]),
	}
}

// declaredProgram builds an #EXTPROG programme. start and title are required.
func (p *GuideParser) declaredProgram(cur *current, attrs map[string]string) (domain.GuideProgram, bool) {
	title := attrs["title"]
	if title == "" || attrs["start"] == "" {
		return domain.GuideProgram{}, false
	}
	start, err := normalize.ParseFlexibleTime(attrs["start"])
	if err != nil {
		return domain.GuideProgram{}, false
	}
	end := start.Add(domain.DefaultProgramLength)
	if attrs["end"] != "" {
		if end, err = normalize.ParseFlexibleTime(attrs["end"]); err != nil || !end.After(start) {
			return domain.GuideProgram{}, false
		}
	}

	shift := time.Duration(cur.shift) * time.Minute
	prog := newProgram(cur.id, title, attrs["desc"], start.Add(shift), end.Add(shift))
	if c := attrs["category"]; c != "" {
		prog.Genre = []string{c}
	}
	return prog, true
}

func (p *GuideParser) commentPrograms(g *domain.Guide, comments []string, covered map[string]bool, now time.Time) {
	if len(comments) == 0 {
		return
	}

	// comment lines name channels by display name
	bySlug := make(map[string]string, len(g.Channels))
	for _, id := range g.Order {
		bySlug[normalize.Slug(g.Channels[id].Name)] = id
	}

	local := now.In(p.loc)
	y, m, d := local.Date()

	for _, line := range comments {
		mm := reCommentProgram.FindStringSubmatch(line)
		if mm == nil {
			continue
		}

		slug := normalize.Slug(mm[1])
		if slug == "" {
			continue
		}
		id, known := bySlug[slug]
		if !known {
			id = slug
		}
		if covered[id] {
			continue
		}

		start, ok := wallClock(y, m, d, mm[3], mm[4], p.loc)
		if !ok {
			continue
		}
		end, ok := wallClock(y, m, d, mm[5], mm[6], p.loc)
		if !ok {
			continue
		}
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}

		if !known {
			g.AddChannel(domain.GuideChannel{ID: id, Name: strings.TrimSpace(mm[1])})
			bySlug[slug] = id
		}
		g.AddProgram(newProgram(id, mm[2], mm[7], start.UTC(), end.UTC()))
	}
}

// ProgramID derives "embedded_<startMillis>_<hash(title)>".
func ProgramID(startMillis int64, title string) string {
	return "embedded_" + strconv.FormatInt(startMillis, 10) + "_" + normalize.HashID(title)
}

func newProgram(channelID, title, desc string, start, end time.Time) domain.GuideProgram {
	start, end = start.UTC(), end.UTC()
	return domain.GuideProgram{
		ID:          ProgramID(start.UnixMilli(), title),
		ChannelID:   channelID,
		Title:       title,
		Description: desc,
		Start:       start,
		End:         end,
		Duration:    domain.DurationMinutes(start, end),
	}
}

func wallClock(y int, m time.Month, d int, hh, mm string, loc *time.Location) (time.Time, bool) {
	h, err := strconv.Atoi(hh)
	if err != nil || h > 23 {
		return time.Time{}, false
	}
	mi, err := strconv.Atoi(mm)
	if err != nil || mi > 59 {
		return time.Time{}, false
	}
	return time.Date(y, m, d, h, mi, 0, 0, loc), true
}

// headerReferences reads the playlist-wide guide URLs of an #EXTM3U line
// (url-tvg / x-tvg-url, comma separated). They carry no channel id.
func headerReferences(body string) []domain.GuideReference {
	attrs := parseAttrs(body)
	var refs []domain.GuideReference
	for _, key := range []string{"url-tvg", "x-tvg-url"} {
		for _, u := range strings.Split(attrs[key], ",") {
			if u = strings.TrimSpace(u); u != "" {
				refs = append(refs, domain.GuideReference{URL: u})
			}
		}
	}
	return refs
}

// shiftHours converts a tvg-shift value ("+1", "-2.5") to minutes.
func shiftHours(v string) int {
	if v == "" {
		return 0
	}
	h, err := strconv.ParseFloat(strings.TrimPrefix(v, "+"), 64)
	if err != nil {
		return 0
	}
	return int(math.Round(h * 60))
}
