package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test manifest: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeManifest(t, `---
playlist:
  file: lists/playlist.m3u
guides:
  - name: tdt
    url: https://epg.example.com/guide.xml.gz
  - name: inline
    type: Embedded
follow_references: true
`)

	m, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(m.Guides) != 2 {
		t.Fatalf("Load() guides = %d, want 2", len(m.Guides))
	}
	if m.Guides[0].Type != KindXMLTV {
		t.Errorf("default type = %q, want %q", m.Guides[0].Type, KindXMLTV)
	}
	if m.Guides[1].Type != KindEmbedded {
		t.Errorf("type = %q, want %q", m.Guides[1].Type, KindEmbedded)
	}
	wantPlaylist := filepath.Join(filepath.Dir(path), "lists", "playlist.m3u")
	if m.Playlist.File != wantPlaylist {
		t.Errorf("playlist file = %q, want %q", m.Playlist.File, wantPlaylist)
	}
	if !m.FollowReferences {
		t.Error("follow_references should be true")
	}
}

func TestLoaderExpandsEnv(t *testing.T) {
	path := writeManifest(t, `guides:
  - name: tdt
    url: https://epg.example.com/${EPG_TOKEN}/guide.xml
  - name: other
    url: https://epg.example.com/${UNSET_FOR_TEST}x.xml
`)
	l := NewLoader(path)
	l.lookup = func(name string) (string, bool) {
		if name == "EPG_TOKEN" {
			return "s3cr3t", true
		}
		return "", false
	}

	m, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := m.Guides[0].URL; got != "https://epg.example.com/s3cr3t/guide.xml" {
		t.Errorf("expanded url = %q", got)
	}
	if got := m.Guides[1].URL; got != "https://epg.example.com/x.xml" {
		t.Errorf("unset variable should expand to empty, got %q", got)
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/path/sources.yaml").Load()
	if err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no sources",
			yaml:    "playlist:\n  url: http://x/p.m3u\n",
			wantErr: "no guide sources",
		},
		{
			name:    "xmltv without location",
			yaml:    "guides:\n  - name: a\n",
			wantErr: "url or file is required",
		},
		{
			name:    "unknown type",
			yaml:    "guides:\n  - name: a\n    type: json\n    url: http://x\n",
			wantErr: "unknown type",
		},
		{
			name:    "duplicate names",
			yaml:    "guides:\n  - name: a\n    url: http://x\n  - name: a\n    url: http://y\n",
			wantErr: "duplicate name",
		},
		{
			name:    "embedded without playlist",
			yaml:    "guides:\n  - type: embedded\n",
			wantErr: "needs a location or a playlist",
		},
		{
			name:    "both url and file",
			yaml:    "guides:\n  - url: http://x\n    file: g.xml\n",
			wantErr: "not both",
		},
		{
			name:    "not yaml",
			yaml:    "guides: [unclosed",
			wantErr: "failed to parse manifest yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseFollowReferencesOnly(t *testing.T) {
	m, err := Parse([]byte("playlist:\n  url: http://x/p.m3u\nfollow_references: true\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(m.Guides) != 0 {
		t.Errorf("guides = %d, want 0", len(m.Guides))
	}
}

func TestParseDefaultNames(t *testing.T) {
	m, err := Parse([]byte("guides:\n  - url: http://x\n  - url: http://y\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if m.Guides[0].Name != "guide-1" || m.Guides[1].Name != "guide-2" {
		t.Errorf("default names = %q, %q", m.Guides[0].Name, m.Guides[1].Name)
	}
}
