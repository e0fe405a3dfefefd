// Package xmltv parses XMLTV documents into the normalised guide model.
//
// The parser streams tokens instead of unmarshalling the whole tree, so a
// single malformed <programme> only costs that element. Structural problems
// (not well-formed, wrong root) fail the whole parse with *domain.ParseError.
package xmltv

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/normalize"
)

const (
	format = "xmltv"
	root   = "tv"

	DefaultUntitled = "Untitled"
)

var (
	errMissingRoot      = errors.New("missing <tv> root element")
	errContentAfterRoot = errors.New("element after </tv>")
)

// Options configures a Parser. Zero values fall back to defaults.
type Options struct {
	// Untitled replaces a missing <title>.
	Untitled string

	Log logger.Logger
}

// Parser implements domain.GuideParser for XMLTV.
type Parser struct {
	untitled string
	log      logger.Logger
}

var _ domain.GuideParser = (*Parser)(nil)

func New(opts Options) *Parser {
	p := &Parser{untitled: opts.Untitled, log: opts.Log}
	if p.untitled == "" {
		p.untitled = DefaultUntitled
	}
	if p.log == nil {
		p.log = logger.NewNop()
	}
	return p
}

// rawProgramme is a <programme> as read, before validation.
type rawProgramme struct {
	channel string
	start   string
	stop    string
	title   string
	desc    string
	genre   string
	rating  string
	episode *domain.Episode
	credits map[string][]string
}

// Parse reads a complete XMLTV document.
func (p *Parser) Parse(text string) (*domain.Guide, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charsetReader

	guide := domain.NewGuide()
	var pending []rawProgramme
	sawRoot, rootClosed := false, false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{Format: format, Err: err}
		}

		// Children are consumed whole, so the only end tag seen here is the root's.
		if _, ok := tok.(xml.EndElement); ok {
			rootClosed = true
			continue
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if rootClosed {
			return nil, &domain.ParseError{Format: format, Err: fmt.Errorf("%w: <%s>", errContentAfterRoot, start.Name.Local)}
		}

		if !sawRoot {
			if start.Name.Local != root {
				return nil, &domain.ParseError{Format: format, Err: fmt.Errorf("%w: found <%s>", errMissingRoot, start.Name.Local)}
			}
			sawRoot = true
			continue
		}

		switch start.Name.Local {
		case "channel":
			ch, err := readChannel(dec, start)
			if err != nil {
				return nil, &domain.ParseError{Format: format, Err: err}
			}
			if ch.ID == "" {
				p.skip(guide, "channel without id")
				continue
			}
			if !guide.AddChannel(ch) {
				p.log.Debug("duplicate xmltv channel ignored", logger.String("channel", ch.ID))
			}

		case "programme":
			raw, err := readProgramme(dec, start)
			if err != nil {
				return nil, &domain.ParseError{Format: format, Err: err}
			}
			pending = append(pending, raw)

		default:
			if err := dec.Skip(); err != nil {
				return nil, &domain.ParseError{Format: format, Err: err}
			}
		}
	}

	if !sawRoot {
		return nil, &domain.ParseError{Format: format, Err: errMissingRoot}
	}

	// The catalog is complete before any programme is attached.
	for _, raw := range pending {
		prog, reason := p.build(raw)
		if reason != "" {
			p.skip(guide, reason,
				logger.String("channel", raw.channel),
				logger.String("start", raw.start),
			)
			continue
		}
		guide.AddProgram(prog)
	}
	guide.SortPrograms()

	p.log.Debug("xmltv parsed",
		logger.Int("channels", len(guide.Channels)),
		logger.Int("programs", guide.ProgramCount()),
		logger.Int("skipped", guide.Skipped),
	)
	return guide, nil
}

func (p *Parser) skip(g *domain.Guide, reason string, fields ...zap.Field) {
	g.Skipped++
	p.log.Warn("xmltv element skipped: "+reason, fields...)
}

// build validates raw and returns the programme, or a non-empty skip reason.
func (p *Parser) build(raw rawProgramme) (domain.GuideProgram, string) {
	if raw.channel == "" {
		return domain.GuideProgram{}, "programme without channel"
	}
	if raw.start == "" {
		return domain.GuideProgram{}, "programme without start"
	}

	start, err := normalize.ParseXMLTVTime(raw.start)
	if err != nil {
		return domain.GuideProgram{}, "malformed start"
	}

	end := start.Add(domain.DefaultProgramLength)
	if raw.stop != "" {
		end, err = normalize.ParseXMLTVTime(raw.stop)
		if err != nil {
			return domain.GuideProgram{}, "malformed stop"
		}
		if !end.After(start) {
			return domain.GuideProgram{}, "stop not after start"
		}
	}

	title := raw.title
	if title == "" {
		title = p.untitled
	}

	prog := domain.GuideProgram{
		ID:          ProgramID(raw.channel, start.UnixMilli(), title),
		ChannelID:   raw.channel,
		Title:       title,
		Description: raw.desc,
		Start:       start,
		End:         end,
		Duration:    domain.DurationMinutes(start, end),
		Rating:      raw.rating,
		Episode:     raw.episode,
	}
	if raw.genre != "" {
		prog.Genre = []string{raw.genre}
	}
	if len(raw.credits) > 0 {
		prog.Credits = raw.credits
	}
	return prog, ""
}

// ProgramID derives "xmltv_<channel>_<startMillis>_<hash(title)>".
func ProgramID(channelID string, startMillis int64, title string) string {
	return "xmltv_" + channelID + "_" + strconv.FormatInt(startMillis, 10) + "_" + normalize.HashID(title)
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
