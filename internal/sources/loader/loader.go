// Package loader fetches raw guide documents from URLs or blobs and returns
// them as decoded text.
package loader

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/utils"
)

const DefaultUserAgent = "guide/1.0"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Blob is a binary guide payload with an optional name and media type hint.
type Blob struct {
	Name      string
	MediaType string
	Body      io.Reader
}

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionXZ
)

// Loader turns URLs and blobs into guide text.
type Loader struct {
	client    *http.Client
	userAgent string
	log       logger.Logger
}

// New builds a Loader. A zero timeout leaves the client unbounded, so only
// the caller's context can stop a fetch.
func New(timeout time.Duration, userAgent string, log logger.Logger) *Loader {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		log:       log,
	}
}

// WithClient swaps the HTTP client, mostly for tests.
func (l *Loader) WithClient(c *http.Client) *Loader {
	l.client = c
	return l
}

// LoadFromURL fetches rawURL. Any transport failure, non-2xx status or
// cancellation yields a *domain.NetworkError and no partial text.
// Compressed bodies (.gz/.xz path or matching Content-Type) are decoded.
func (l *Loader) LoadFromURL(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &domain.NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", l.userAgent)

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &domain.NetworkError{URL: rawURL, Err: err}
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.NetworkError{URL: rawURL, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	// Buffer the body so a cancelled transfer never reaches the decoder half-read.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &domain.NetworkError{URL: rawURL, Err: err}
	}

	l.log.Debug("guide fetched",
		logger.String("url", rawURL),
		logger.Int("bytes", len(body)),
		logger.Duration("took", time.Since(start)),
	)

	return LoadFromBlob(Blob{
		Name:      urlPath(rawURL),
		MediaType: resp.Header.Get("Content-Type"),
		Body:      bytes.NewReader(body),
	})
}

// LoadFromFile reads a local guide file, decompressing by extension.
func (l *Loader) LoadFromFile(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open guide file: %w", err)
	}
	defer utils.Close(f)

	return LoadFromBlob(Blob{Name: filepath.Base(filePath), Body: f})
}

// LoadFromBlob decodes b as text, decompressing first when its name or media
// type says gzip or xz. Decompression failures are *domain.DecodeError; the
// compressed bytes are never returned as text.
func LoadFromBlob(b Blob) (string, error) {
	if b.Body == nil {
		return "", &domain.DecodeError{Name: b.Name, Err: errors.New("empty blob")}
	}

	var r io.Reader = b.Body
	switch detectCompression(b.Name, b.MediaType) {
	case compressionGzip:
		gz, err := gzip.NewReader(b.Body)
		if err != nil {
			return "", &domain.DecodeError{Name: b.Name, Err: err}
		}
		defer utils.Close(gz)
		r = gz
	case compressionXZ:
		xr, err := xz.NewReader(b.Body)
		if err != nil {
			return "", &domain.DecodeError{Name: b.Name, Err: err}
		}
		r = xr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", &domain.DecodeError{Name: b.Name, Err: err}
	}
	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

func detectCompression(name, mediaType string) compression {
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		switch mt {
		case "application/gzip", "application/x-gzip":
			return compressionGzip
		case "application/x-xz":
			return compressionXZ
		}
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".gz", ".gzip":
		return compressionGzip
	case ".xz":
		return compressionXZ
	}
	return compressionNone
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return path.Base(u.Path)
}
