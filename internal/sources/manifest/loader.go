// Package manifest reads the YAML file listing the playlist and the guide
// sources to ingest.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Loader handles loading and validation of the sources manifest.
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewLoader creates a manifest loader. ${VAR} references are expanded from
// the process environment.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath, lookup: os.LookupEnv}
}

// Load reads, expands and validates the manifest. Relative file locations
// are resolved against the manifest's directory.
func (l *Loader) Load() (*Manifest, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	m, err := Parse(expandEnv(data, l.lookup))
	if err != nil {
		return nil, err
	}
	m.resolveFiles(filepath.Dir(l.filePath))
	return m, nil
}

// Parse decodes and validates manifest YAML without touching the filesystem.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest yaml: %w", err)
	}
	if err := m.normalize(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// expandEnv replaces ${VAR} with its value; unset variables become "".
func expandEnv(data []byte, lookup func(string) (string, bool)) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRef.FindSubmatch(ref)[1]
		v, _ := lookup(string(name))
		return []byte(v)
	})
}

func (m *Manifest) normalize() error {
	var errs []error

	if m.Playlist.URL != "" && m.Playlist.File != "" {
		errs = append(errs, errors.New("playlist: set url or file, not both"))
	}

	seen := make(map[string]bool, len(m.Guides))
	for i := range m.Guides {
		g := &m.Guides[i]
		g.Name = strings.TrimSpace(g.Name)
		g.Type = strings.ToLower(strings.TrimSpace(g.Type))

		if g.Type == "" {
			g.Type = KindXMLTV
		}
		if g.Name == "" {
			g.Name = fmt.Sprintf("guide-%d", i+1)
		}
		if seen[g.Name] {
			errs = append(errs, fmt.Errorf("guides[%d]: duplicate name %q", i, g.Name))
		}
		seen[g.Name] = true

		switch g.Type {
		case KindXMLTV:
			if g.IsZero() {
				errs = append(errs, fmt.Errorf("guides[%d] %s: url or file is required", i, g.Name))
			}
		case KindEmbedded:
			if g.IsZero() && m.Playlist.IsZero() {
				errs = append(errs, fmt.Errorf("guides[%d] %s: embedded guide needs a location or a playlist", i, g.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("guides[%d] %s: unknown type %q", i, g.Name, g.Type))
		}
		if g.URL != "" && g.File != "" {
			errs = append(errs, fmt.Errorf("guides[%d] %s: set url or file, not both", i, g.Name))
		}
	}

	// with follow_references the playlist itself can announce the guides
	if len(m.Guides) == 0 && (!m.FollowReferences || m.Playlist.IsZero()) {
		errs = append(errs, errors.New("no guide sources"))
	}

	return errors.Join(errs...)
}

func (m *Manifest) resolveFiles(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	m.Playlist.File = resolve(m.Playlist.File)
	for i := range m.Guides {
		m.Guides[i].File = resolve(m.Guides[i].File)
	}
}
