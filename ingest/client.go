package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Client is a Gateway backed by a remote ingestion server. It speaks the same
// wire contract the editor front end uses.
type Client struct {
	base   string
	token  string
	client *http.Client
}

// NewClient targets a running gateway at base (scheme and host, no trailing
// slash needed). token may be empty when the server runs without one.
func NewClient(base, token string) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway URL %q", base)
	}
	return &Client{
		base:   strings.TrimRight(u.String(), "/"),
		token:  token,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *Client) UploadImage(ctx context.Context, payload *DataURI, originalName string) (*Asset, error) {
	return c.upload(ctx, "/api/admin/upload-image", payload, originalName)
}

func (c *Client) UploadMedia(ctx context.Context, payload *DataURI, originalName string) (*Asset, error) {
	return c.upload(ctx, "/api/admin/upload-media", payload, originalName)
}

func (c *Client) ImportRemoteURL(ctx context.Context, remote string) (*Asset, error) {
	return c.post(ctx, "/api/admin/import-image-url", importRequest{URL: remote})
}

func (c *Client) upload(ctx context.Context, endpoint string, payload *DataURI, originalName string) (*Asset, error) {
	if payload == nil || len(payload.Data) == 0 {
		return nil, ErrEmptyPayload
	}
	return c.post(ctx, endpoint, uploadRequest{
		DataURL:  EncodeDataURI(payload.MIME, payload.Data),
		Filename: originalName,
	})
}

func (c *Client) post(ctx context.Context, endpoint string, body any) (*Asset, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrFetchFailed)
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("unable to decode gateway response (%s): %w", resp.Status, err)
	}
	if !out.OK {
		return nil, remoteError(resp.StatusCode, out.Message)
	}
	return &Asset{URL: out.URL, Name: path.Base(out.URL)}, nil
}

// remoteError reverses statusFor so callers can keep branching on the
// sentinel taxonomy regardless of which side of the wire the gateway runs on.
func remoteError(status int, message string) error {
	var sentinel error
	switch status {
	case http.StatusRequestEntityTooLarge:
		sentinel = ErrPayloadTooLarge
	case http.StatusUnsupportedMediaType:
		sentinel = ErrUnsupportedType
	case http.StatusBadRequest:
		sentinel = ErrEmptyPayload
	case http.StatusBadGateway:
		sentinel = ErrFetchFailed
	default:
		return fmt.Errorf("gateway returned %d: %s", status, message)
	}
	return fmt.Errorf("%s: %w", message, sentinel)
}
