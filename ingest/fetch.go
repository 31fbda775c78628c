package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ImportRemoteURL retrieves an absolute http(s) image URL and stores the
// result as a local image asset. The remote declared Content-Type is advisory
// only, the payload is sniffed before acceptance.
func (s *Store) ImportRemoteURL(ctx context.Context, remote string) (*Asset, error) {
	u, err := url.Parse(strings.TrimSpace(remote))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("not an absolute http(s) URL %q: %w", remote, ErrFetchFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrFetchFailed)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrFetchFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote returned %s: %w", resp.Status, ErrFetchFailed)
	}

	declared := resp.Header.Get("Content-Type")
	if mt, _, found := strings.Cut(declared, ";"); found {
		declared = mt
	}
	declared = canonicalMIME(declared)
	if declared != "" && !strings.HasPrefix(declared, "image/") {
		return nil, fmt.Errorf("remote declared %s: %w", declared, ErrNotAnImage)
	}

	// Read one byte past the ceiling so oversized bodies are rejected
	// without buffering them whole.
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.ImageMaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrFetchFailed)
	}
	if int64(len(data)) > s.cfg.ImageMaxBytes {
		return nil, fmt.Errorf("remote body over %d limit: %w", s.cfg.ImageMaxBytes, ErrPayloadTooLarge)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("remote body is empty: %w", ErrNotAnImage)
	}

	// Trust only the bytes, remote servers routinely mislabel.
	effective := sniffedImageMIME(data)
	if effective == "" {
		return nil, fmt.Errorf("remote payload is not an image: %w", ErrNotAnImage)
	}

	asset, err := s.store(ctx, &DataURI{MIME: effective, Data: data}, originalNameFromURL(remote), imageMIMEs, s.cfg.ImageMaxBytes)
	if err != nil {
		return nil, err
	}
	return asset, nil
}
