package manifest

// Guide kinds.
const (
	KindXMLTV    = "xmltv"
	KindEmbedded = "embedded"
)

// Location points at a document by URL or local file. Exactly one is set.
type Location struct {
	URL  string `yaml:"url"`
	File string `yaml:"file"`
}

// IsZero reports whether neither URL nor File is set.
func (l Location) IsZero() bool { return l.URL == "" && l.File == "" }

// String returns the URL or the file path.
func (l Location) String() string {
	if l.URL != "" {
		return l.URL
	}
	return l.File
}

// GuideSource is one guide document to ingest.
type GuideSource struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"` // xmltv (default) or embedded
	Location `yaml:",inline"`
}

// Manifest is the root structure of the sources file.
//
//	playlist:
//	  url: https://provider.example/playlist.m3u
//	guides:
//	  - name: tdt
//	    url: https://epg.example/guide.xml.gz
//	  - name: inline
//	    type: embedded      # no location: reads the playlist itself
//	follow_references: true
type Manifest struct {
	Playlist         Location      `yaml:"playlist"`
	Guides           []GuideSource `yaml:"guides"`
	FollowReferences bool          `yaml:"follow_references"`
}
