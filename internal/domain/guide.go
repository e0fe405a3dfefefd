package domain

import (
	"math"
	"sort"
	"time"
)

// DefaultProgramLength is used when a source omits a programme's end time.
const DefaultProgramLength = 30 * time.Minute

// GuideChannel is a channel as declared by a guide source.
//
// Channels are created while parsing and are scoped to one parse result.
type GuideChannel struct {
	// ID is the guide-native identifier, unique within a parse.
	ID string `json:"id"`

	// Name is the display name. Defaults to ID when the source has none.
	Name string `json:"name"`

	Logo    string `json:"logo,omitempty"`
	Country string `json:"country,omitempty"`
}

// Episode holds 1-based season/episode numbers. Zero means unknown.
type Episode struct {
	Season  int `json:"season,omitempty"`
	Episode int `json:"episode,omitempty"`
}

// GuideProgram is one programme airing on a guide channel.
//
// Start is always before End and both are UTC. Duration is derived from the
// span, never read from the source.
type GuideProgram struct {
	// ID is derived from channel+start+title, stable within one parse.
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Start    time.Time `json:"startTime"`
	End      time.Time `json:"endTime"`
	Duration int       `json:"duration"` // minutes, >= 1

	Genre   []string            `json:"genre,omitempty"`
	Rating  string              `json:"rating,omitempty"`
	Episode *Episode            `json:"episode,omitempty"`
	Credits map[string][]string `json:"credits,omitempty"` // role -> names
}

// DurationMinutes returns round((end-start)/1m), never below 1.
func DurationMinutes(start, end time.Time) int {
	m := int(math.Round(end.Sub(start).Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

// GuideReference points a playlist channel at an external guide.
type GuideReference struct {
	ChannelID string `json:"channelId"`
	URL       string `json:"url"`
	Shift     int    `json:"shift,omitempty"` // minutes
}

// Guide is the normalised output of every guide parser.
type Guide struct {
	Channels map[string]GuideChannel  // id -> channel
	Order    []string                 // channel ids in declaration order
	Programs map[string][]GuideProgram // channel id -> programmes ascending by start

	// References lists external guides announced by an embedded guide.
	References []GuideReference

	// Skipped counts elements dropped as malformed.
	Skipped int
}

// GuideParser turns a raw document into a Guide.
type GuideParser interface {
	Parse(text string) (*Guide, error)
}

// NewGuide returns an empty guide ready to be filled by a parser.
func NewGuide() *Guide {
	return &Guide{
		Channels: make(map[string]GuideChannel),
		Programs: make(map[string][]GuideProgram),
	}
}

// AddChannel registers ch unless its id is already known.
// Returns false for duplicates; the first declaration wins.
func (g *Guide) AddChannel(ch GuideChannel) bool {
	if _, exists := g.Channels[ch.ID]; exists {
		return false
	}
	if ch.Name == "" {
		ch.Name = ch.ID
	}
	g.Channels[ch.ID] = ch
	g.Order = append(g.Order, ch.ID)
	return true
}

// AddProgram appends p to its channel's list. Order is fixed by SortPrograms.
func (g *Guide) AddProgram(p GuideProgram) {
	g.Programs[p.ChannelID] = append(g.Programs[p.ChannelID], p)
}

// SortPrograms orders every channel's list ascending by start time.
func (g *Guide) SortPrograms() {
	for _, programs := range g.Programs {
		sort.SliceStable(programs, func(i, j int) bool {
			return programs[i].Start.Before(programs[j].Start)
		})
	}
}

// ChannelList returns the catalog in declaration order.
func (g *Guide) ChannelList() []GuideChannel {
	out := make([]GuideChannel, 0, len(g.Order))
	for _, id := range g.Order {
		out = append(out, g.Channels[id])
	}
	return out
}

// ProgramCount returns the number of programmes across all channels.
func (g *Guide) ProgramCount() int {
	n := 0
	for _, programs := range g.Programs {
		n += len(programs)
	}
	return n
}

// Merge folds other into g. Channel metadata keeps the first declaration;
// a channel's programme list from other replaces the one in g wholesale.
func (g *Guide) Merge(other *Guide) {
	if other == nil {
		return
	}
	for _, id := range other.Order {
		g.AddChannel(other.Channels[id])
	}
	for id, programs := range other.Programs {
		g.Programs[id] = programs
	}
	g.References = append(g.References, other.References...)
	g.Skipped += other.Skipped
}
