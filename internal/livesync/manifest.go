package livesync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/grafov/m3u8"
)

// ErrManifestNotReady reports a manifest fetch that did not yield a playable
// playlist: the encoder is still warming up after a switch.
var ErrManifestNotReady = errors.New("manifest not ready")

const (
	manifestHeader  = "#EXTM3U"
	maxManifestSize = 1 << 20
)

// HTTPManifestFetcher fetches the preview manifest over HTTP, bypassing any
// cache between it and the encoder.
type HTTPManifestFetcher struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewHTTPManifestFetcher returns a fetcher for manifestURL.
func NewHTTPManifestFetcher(manifestURL string, timeout time.Duration) *HTTPManifestFetcher {
	return &HTTPManifestFetcher{
		url:    manifestURL,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (f *HTTPManifestFetcher) Fetch(ctx context.Context) error {
	u, err := url.Parse(f.url)
	if err != nil {
		return fmt.Errorf("parse manifest url: %w", err)
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(f.now().UnixNano(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifestNotReady, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrManifestNotReady, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifestNotReady, err)
	}
	return ValidateManifest(body)
}

// ValidateManifest reports whether body is a playlist a player can start on:
// non-empty, starting with the manifest header and, for a media playlist,
// listing at least one segment.
func ValidateManifest(body []byte) error {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	body = bytes.TrimLeft(body, " \t\r\n")
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", ErrManifestNotReady)
	}
	if !bytes.HasPrefix(body, []byte(manifestHeader)) {
		return fmt.Errorf("%w: missing %s header", ErrManifestNotReady, manifestHeader)
	}

	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifestNotReady, err)
	}
	switch listType {
	case m3u8.MEDIA:
		if media, ok := p.(*m3u8.MediaPlaylist); ok && media.Count() == 0 {
			return fmt.Errorf("%w: no segments", ErrManifestNotReady)
		}
	case m3u8.MASTER:
		if master, ok := p.(*m3u8.MasterPlaylist); ok && len(master.Variants) == 0 {
			return fmt.Errorf("%w: no variants", ErrManifestNotReady)
		}
	}
	return nil
}
