package ingest

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// DataURI is a decoded data: URI payload.
type DataURI struct {
	MIME string
	Data []byte
}

// ParseDataURI decodes a data: URI into its MIME type and raw bytes. Both
// base64 and percent-encoded payloads are accepted. A URI with a valid header
// but zero payload bytes yields ErrEmptyPayload.
func ParseDataURI(raw string) (*DataURI, error) {
	raw = strings.TrimSpace(raw)
	const scheme = "data:"
	if !strings.HasPrefix(raw, scheme) {
		return nil, fmt.Errorf("not a data URI: %w", ErrEmptyPayload)
	}
	header, payload, found := strings.Cut(raw[len(scheme):], ",")
	if !found {
		return nil, fmt.Errorf("malformed data URI: %w", ErrEmptyPayload)
	}

	isBase64 := false
	mimeType := "text/plain"
	for i, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		switch {
		case part == "base64":
			isBase64 = true
		case i == 0 && part != "":
			mimeType = strings.ToLower(part)
		}
	}

	var data []byte
	var err error
	if isBase64 {
		// Some producers emit the URL-safe alphabet, accept both.
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawURLEncoding.DecodeString(payload)
		}
		if err != nil {
			return nil, fmt.Errorf("decoding base64 payload: %w", err)
		}
	} else {
		decoded, err := url.QueryUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding percent-encoded payload: %w", err)
		}
		data = []byte(decoded)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	return &DataURI{MIME: mimeType, Data: data}, nil
}

// EncodeDataURI renders data as a base64 data: URI with the given MIME type.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
