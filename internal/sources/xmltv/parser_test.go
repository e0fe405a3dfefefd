package xmltv

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/guide/internal/domain"
)

const laUnoDoc = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE tv SYSTEM "xmltv.dtd">
<tv generator-info-name="test">
  <channel id="la1.es">
    <display-name>La 1</display-name>
    <display-name>TVE 1</display-name>
    <icon src="http://example.com/la1.png"/>
  </channel>
  <channel id="la2.es"/>
  <programme channel="la1.es" start="20231225150000 +0100" stop="20231225160000 +0100">
    <title lang="es">Cine</title>
    <desc>Película de tarde</desc>
    <category>Movie</category>
    <category>Drama</category>
    <episode-num system="xmltv_ns">1.4.0/1</episode-num>
    <credits>
      <director>Pedro Almodóvar</director>
      <actor>Penélope Cruz</actor>
      <actor>Antonio Banderas</actor>
      <presenter>Nobody</presenter>
    </credits>
    <rating system="MPAA"><value>PG-13</value></rating>
  </programme>
  <programme channel="la1.es" start="20231225140000 +0100">
    <title>Noticias</title>
  </programme>
  <programme channel="la2.es" start="20231225100000">
  </programme>
</tv>`

func TestParseLaUno(t *testing.T) {
	g, err := New(Options{}).Parse(laUnoDoc)
	require.NoError(t, err)

	require.Len(t, g.Channels, 2)
	assert.Equal(t, []string{"la1.es", "la2.es"}, g.Order)
	assert.Equal(t, domain.GuideChannel{ID: "la1.es", Name: "La 1", Logo: "http://example.com/la1.png"}, g.Channels["la1.es"])
	assert.Equal(t, "la2.es", g.Channels["la2.es"].Name, "missing display-name falls back to id")

	progs := g.Programs["la1.es"]
	require.Len(t, progs, 2)

	news := progs[0]
	assert.Equal(t, "Noticias", news.Title)
	assert.True(t, news.Start.Equal(time.Date(2023, 12, 25, 13, 0, 0, 0, time.UTC)))
	assert.True(t, news.End.Equal(time.Date(2023, 12, 25, 13, 30, 0, 0, time.UTC)), "missing stop is start+30m")
	assert.Equal(t, 30, news.Duration)
	assert.Nil(t, news.Genre)

	film := progs[1]
	assert.Equal(t, 60, film.Duration)
	assert.Equal(t, []string{"Movie"}, film.Genre)
	assert.Equal(t, "Película de tarde", film.Description)
	assert.Equal(t, "PG-13", film.Rating)
	assert.Equal(t, &domain.Episode{Season: 2, Episode: 5}, film.Episode)
	want := map[string][]string{
		"director": {"Pedro Almodóvar"},
		"actor":    {"Penélope Cruz", "Antonio Banderas"},
	}
	if diff := cmp.Diff(want, film.Credits); diff != "" {
		t.Errorf("credits mismatch (-want +got):\n%s", diff)
	}

	untitled := g.Programs["la2.es"]
	require.Len(t, untitled, 1)
	assert.Equal(t, DefaultUntitled, untitled[0].Title)
	assert.True(t, untitled[0].Start.Equal(time.Date(2023, 12, 25, 10, 0, 0, 0, time.UTC)))
}

func TestParseProgramID(t *testing.T) {
	g, err := New(Options{}).Parse(laUnoDoc)
	require.NoError(t, err)

	news := g.Programs["la1.es"][0]
	start := time.Date(2023, 12, 25, 13, 0, 0, 0, time.UTC)
	assert.True(t, strings.HasPrefix(news.ID, "xmltv_la1.es_1703509200000_"), news.ID)
	assert.Equal(t, ProgramID("la1.es", start.UnixMilli(), "Noticias"), news.ID)
}

func TestParseIsIdempotent(t *testing.T) {
	p := New(Options{})
	a, err := p.Parse(laUnoDoc)
	require.NoError(t, err)
	b, err := p.Parse(laUnoDoc)
	require.NoError(t, err)

	if diff := cmp.Diff(a.Programs, b.Programs); diff != "" {
		t.Errorf("second parse differs (-first +second):\n%s", diff)
	}
}

func TestParseSkipsMalformedProgrammes(t *testing.T) {
	doc := `<tv>
  <channel id="c1"><display-name>One</display-name></channel>
  <channel><display-name>No id</display-name></channel>
  <programme start="20231225140000"><title>no channel</title></programme>
  <programme channel="c1"><title>no start</title></programme>
  <programme channel="c1" start="2023-12-25 14:00"><title>bad start</title></programme>
  <programme channel="c1" start="20231225140000" stop="garbage"><title>bad stop</title></programme>
  <programme channel="c1" start="20231225140000" stop="20231225140000"><title>zero length</title></programme>
  <programme channel="c1" start="20231225180000" stop="20231225190000"><title>later</title></programme>
  <programme channel="c1" start="20231225120000" stop="20231225123000"><title>earlier</title></programme>
  <programme channel="unknown" start="20231225120000"><title>orphan</title></programme>
</tv>`

	g, err := New(Options{Untitled: "Sin título"}).Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, 6, g.Skipped)
	require.Len(t, g.Programs["c1"], 2)
	assert.Equal(t, "earlier", g.Programs["c1"][0].Title)
	assert.Equal(t, "later", g.Programs["c1"][1].Title)
	assert.Len(t, g.Programs["unknown"], 1, "programmes are not validated against the catalog")
}

func TestParseProgrammesSortedAndDurationsConsistent(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<tv><channel id="c"/>`)
	starts := []string{"20240101180000", "20240101060000", "20240101120000", "20240101000000", "20240101090000"}
	for _, s := range starts {
		b.WriteString(`<programme channel="c" start="` + s + ` +0000" stop="` + s[:8] + `235959 +0000"><title>x` + s + `</title></programme>`)
	}
	b.WriteString(`</tv>`)

	g, err := New(Options{}).Parse(b.String())
	require.NoError(t, err)

	list := g.Programs["c"]
	require.Len(t, list, len(starts))
	for i, p := range list {
		if i > 0 {
			assert.False(t, p.Start.Before(list[i-1].Start), "list must be ascending")
		}
		assert.True(t, p.Start.Before(p.End))
		assert.Equal(t, domain.DurationMinutes(p.Start, p.End), p.Duration)
		assert.GreaterOrEqual(t, p.Duration, 1)
	}
}

func TestParseDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"not xml", "this is not a guide"},
		{"wrong root", `<rss><channel id="x"/></rss>`},
		{"unclosed", `<tv><channel id="x"><display-name>X</display-name></tv>`},
		{"truncated", `<tv><programme channel="x" start="20231225140000"><title>X`},
		{"programme after root", `<tv></tv><programme channel="x" start="20231225140000"><title>A</title></programme>`},
		{"second root", `<tv><channel id="a"/></tv><tv><channel id="b"/></tv>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{}).Parse(tt.doc)
			var perr *domain.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "xmltv", perr.Format)
		})
	}
}

func TestParseLatin1Document(t *testing.T) {
	// "Más" encoded as ISO-8859-1
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><tv><channel id=\"m\"><display-name>M\xe1s</display-name></channel></tv>"

	g, err := New(Options{}).Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "Más", g.Channels["m"].Name)
}

func TestParseEpisode(t *testing.T) {
	tests := []struct {
		system string
		value  string
		want   *domain.Episode
	}{
		{"xmltv_ns", "0.0.", &domain.Episode{Season: 1, Episode: 1}},
		{"xmltv_ns", " 2 . 9/24 . 0/1", &domain.Episode{Season: 3, Episode: 10}},
		{"xmltv_ns", ".3.", &domain.Episode{Episode: 4}},
		{"xmltv_ns", "..", nil},
		{"xmltv_ns", "nonsense", nil},
		{"onscreen", "S02E07", &domain.Episode{Season: 2, Episode: 7}},
		{"onscreen", "Episode 7", nil},
		{"dd_progid", "EP0123", nil},
	}

	for _, tt := range tests {
		t.Run(tt.system+"/"+tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseEpisode(tt.system, tt.value))
		})
	}
}
