// Package ingest runs one reload: fetch the playlist and every guide source,
// parse, merge, match the playlist against the merged catalog, then publish
// programmes to the store and the catalog to the index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/index"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/sources/loader"
	"github.com/MrSnakeDoc/guide/internal/sources/m3u"
	"github.com/MrSnakeDoc/guide/internal/sources/manifest"
	"github.com/MrSnakeDoc/guide/internal/sources/xmltv"
	"github.com/MrSnakeDoc/guide/internal/store"
)

// ErrNoGuideLoaded is returned when every guide source failed.
var ErrNoGuideLoaded = errors.New("no guide source could be loaded")

// Fetcher retrieves document text. *loader.Loader satisfies it.
type Fetcher interface {
	LoadFromURL(ctx context.Context, rawURL string) (string, error)
	LoadFromFile(path string) (string, error)
}

var _ Fetcher = (*loader.Loader)(nil)

// Options wires a Pipeline. Store and Index are required.
type Options struct {
	Fetcher  Fetcher
	XMLTV    domain.GuideParser
	Embedded domain.GuideParser
	Store    *store.GuideStore
	Index    *index.MemoryIndex

	// Durable receives the catalog snapshot after each successful run.
	Durable store.Durable

	Match *domain.MatchOptions
	Log   logger.Logger
}

// Pipeline is safe to reuse across runs but not to run concurrently; the
// scheduler serialises reloads.
type Pipeline struct {
	fetch    Fetcher
	xmltv    domain.GuideParser
	embedded domain.GuideParser
	store    *store.GuideStore
	index    *index.MemoryIndex
	durable  store.Durable
	match    *domain.MatchOptions
	log      logger.Logger
}

// Result summarises one run.
type Result struct {
	Guide    *domain.Guide
	Playlist []domain.PlaylistChannel
	Mapping  domain.MappingResult
	Sources  []index.SourceStatus
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		fetch:    opts.Fetcher,
		xmltv:    opts.XMLTV,
		embedded: opts.Embedded,
		store:    opts.Store,
		index:    opts.Index,
		durable:  opts.Durable,
		match:    opts.Match,
		log:      opts.Log,
	}
	if p.log == nil {
		p.log = logger.NewNop()
	}
	if p.durable == nil {
		p.durable = store.NopDurable{}
	}
	if p.fetch == nil {
		p.fetch = loader.New(0, "", p.log)
	}
	if p.xmltv == nil {
		p.xmltv = xmltv.New(xmltv.Options{Log: p.log})
	}
	if p.embedded == nil {
		p.embedded = m3u.NewGuideParser(m3u.GuideOptions{Log: p.log})
	}
	return p
}

// Run executes one reload of m at now. Individual source failures are
// logged and recorded in the result; Run fails only when nothing could be
// loaded or ctx was cancelled before publishing.
func (p *Pipeline) Run(ctx context.Context, m *manifest.Manifest, now time.Time) (*Result, error) {
	res := &Result{Guide: domain.NewGuide()}

	playlistText, playlistErr := p.loadPlaylist(ctx, m)
	if playlistErr != nil {
		p.log.Warn("playlist unavailable, mapping will be empty",
			logger.String("playlist", m.Playlist.String()),
			logger.Error(playlistErr))
	} else if playlistText != "" {
		channels, err := m3u.ParsePlaylist(strings.NewReader(playlistText))
		if err != nil {
			p.log.Warn("failed to parse playlist", logger.Error(err))
		}
		res.Playlist = channels
	}

	var errs []error
	loaded := 0
	visited := make(map[string]bool)

	for _, src := range m.Guides {
		if src.URL != "" {
			visited[src.URL] = true
		}
		guide, err := p.loadSource(ctx, src, playlistText, playlistErr)
		res.Sources = append(res.Sources, status(src.Name, src.Type, guide, err, now))
		if err != nil {
			p.log.Warn("skipping guide source",
				logger.String("source", src.Name),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		p.log.Info("loaded guide source",
			logger.String("source", src.Name),
			logger.Int("channels", len(guide.Order)),
			logger.Int("programs", guide.ProgramCount()),
			logger.Int("skipped", guide.Skipped))
		res.Guide.Merge(guide)
		loaded++
	}

	if m.FollowReferences {
		refs := res.Guide.References
		if !hasEmbedded(m) && playlistText != "" {
			// nobody parsed the playlist for directives yet
			if g, err := p.embedded.Parse(playlistText); err == nil {
				refs = append(refs, g.References...)
			}
		}
		for _, group := range groupReferences(refs) {
			if visited[group.url] {
				continue
			}
			visited[group.url] = true

			name := "ref:" + group.url
			guide, err := p.loadReference(ctx, group)
			res.Sources = append(res.Sources, status(name, manifest.KindXMLTV, guide, err, now))
			if err != nil {
				p.log.Warn("skipping referenced guide",
					logger.String("url", group.url),
					logger.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			res.Guide.Merge(guide)
			loaded++
		}
	}

	if loaded == 0 {
		if len(errs) == 0 {
			return res, ErrNoGuideLoaded
		}
		return res, fmt.Errorf("%w: %w", ErrNoGuideLoaded, errors.Join(errs...))
	}

	res.Mapping = domain.Match(res.Playlist, res.Guide.ChannelList(), p.match)

	// an abandoned reload must not publish anything
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("reload abandoned: %w", err)
	}

	p.publish(ctx, res, now)
	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, res *Result, now time.Time) {
	for _, id := range res.Guide.Order {
		if programs, ok := res.Guide.Programs[id]; ok {
			p.store.Set(ctx, id, programs, now)
		}
	}

	p.index.UpdateCatalog(res.Guide.ChannelList(), now)
	p.index.UpdateMapping(res.Mapping)
	p.index.UpdateSources(res.Sources)

	snap := store.Snapshot{
		Channels: res.Guide.ChannelList(),
		Mapping:  res.Mapping,
		LoadedAt: now,
	}
	if err := store.SaveSnapshot(ctx, p.durable, snap); err != nil {
		p.log.Warn("failed to save snapshot", logger.Error(err))
	}

	p.log.Info("guide published",
		logger.Int("channels", len(res.Guide.Order)),
		logger.Int("programs", res.Guide.ProgramCount()),
		logger.Int("coverage", res.Mapping.Coverage),
		logger.Int("unmatched", len(res.Mapping.Unmatched)))
}

func (p *Pipeline) loadPlaylist(ctx context.Context, m *manifest.Manifest) (string, error) {
	if m.Playlist.IsZero() {
		return "", nil
	}
	return p.load(ctx, m.Playlist)
}

func (p *Pipeline) loadSource(ctx context.Context, src manifest.GuideSource, playlistText string, playlistErr error) (*domain.Guide, error) {
	var parser domain.GuideParser
	switch src.Type {
	case manifest.KindEmbedded:
		parser = p.embedded
	default:
		parser = p.xmltv
	}

	text := playlistText
	if !src.Location.IsZero() {
		var err error
		if text, err = p.load(ctx, src.Location); err != nil {
			return nil, err
		}
	} else if playlistErr != nil {
		return nil, fmt.Errorf("playlist: %w", playlistErr)
	}

	return parser.Parse(text)
}

// referenceGroup is one referenced guide URL with the shift, in minutes, of
// every channel that points at it. The first declaration of a channel wins.
type referenceGroup struct {
	url    string
	shifts map[string]int
}

func groupReferences(refs []domain.GuideReference) []referenceGroup {
	var groups []referenceGroup
	pos := make(map[string]int)
	for _, ref := range refs {
		if ref.URL == "" {
			continue
		}
		i, ok := pos[ref.URL]
		if !ok {
			i = len(groups)
			pos[ref.URL] = i
			groups = append(groups, referenceGroup{url: ref.URL, shifts: make(map[string]int)})
		}
		if ref.ChannelID == "" {
			continue
		}
		if _, dup := groups[i].shifts[ref.ChannelID]; !dup {
			groups[i].shifts[ref.ChannelID] = ref.Shift
		}
	}
	return groups
}

func (p *Pipeline) loadReference(ctx context.Context, group referenceGroup) (*domain.Guide, error) {
	text, err := p.fetch.LoadFromURL(ctx, group.url)
	if err != nil {
		return nil, err
	}
	guide, err := p.xmltv.Parse(text)
	if err != nil {
		return nil, err
	}
	for channelID, shift := range group.shifts {
		if shift != 0 {
			shiftPrograms(guide.Programs[channelID], time.Duration(shift)*time.Minute)
		}
	}
	return guide, nil
}

func (p *Pipeline) load(ctx context.Context, loc manifest.Location) (string, error) {
	if loc.URL != "" {
		return p.fetch.LoadFromURL(ctx, loc.URL)
	}
	return p.fetch.LoadFromFile(loc.File)
}

// shiftPrograms moves programmes by d. Ids embed the start instant, so they
// are derived again.
func shiftPrograms(programs []domain.GuideProgram, d time.Duration) {
	for i := range programs {
		p := &programs[i]
		p.Start = p.Start.Add(d)
		p.End = p.End.Add(d)
		p.ID = xmltv.ProgramID(p.ChannelID, p.Start.UnixMilli(), p.Title)
	}
}

func hasEmbedded(m *manifest.Manifest) bool {
	for _, g := range m.Guides {
		if g.Type == manifest.KindEmbedded {
			return true
		}
	}
	return false
}

func status(name, kind string, g *domain.Guide, err error, now time.Time) index.SourceStatus {
	st := index.SourceStatus{Name: name, Kind: kind, LoadedAt: now}
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Channels = len(g.Order)
	st.Programs = g.ProgramCount()
	st.Skipped = g.Skipped
	return st
}
