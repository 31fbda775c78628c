package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"richedit/config"
)

// imageMIMEs is the allow-list for the image asset class.
var imageMIMEs = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/webp":    true,
	"image/gif":     true,
	"image/svg+xml": true,
}

// videoMIMEs extends the media asset class beyond images.
var videoMIMEs = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/ogg":       true,
	"video/quicktime": true,
}

// Store is the local filesystem Gateway. Files land under cfg.UploadDir and
// are served under cfg.PublicPrefix.
type Store struct {
	cfg    config.IngestConfig
	namer  *Namer
	index  *Index // nil when deduplication is disabled
	client *http.Client
	log    *zap.Logger
}

// NewStore prepares the upload directory and, when configured, the
// deduplication index.
func NewStore(cfg config.IngestConfig, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create upload directory: %w", err)
	}
	namer, err := NewNamer(cfg.NameTemplate)
	if err != nil {
		return nil, err
	}
	var index *Index
	if cfg.IndexPath != "" {
		if index, err = OpenIndex(cfg.IndexPath); err != nil {
			return nil, err
		}
	}
	return &Store{
		cfg:    cfg,
		namer:  namer,
		index:  index,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}, nil
}

// Close releases the deduplication index if one is open.
func (s *Store) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}

// canonicalMIME folds declared type aliases onto the registered form.
func canonicalMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}

// looksLikeSVG is a cheap structural check, filetype cannot sniff text
// formats.
func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// detectMIME resolves the effective type of a payload. For binary formats the
// sniffed type wins over the declared one, a mislabeled payload stores under
// what it actually is.
func detectMIME(data []byte, declared string) string {
	declared = canonicalMIME(declared)
	if declared == "image/svg+xml" && looksLikeSVG(data) {
		return declared
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return canonicalMIME(kind.MIME.Value)
	}
	if looksLikeSVG(data) {
		return "image/svg+xml"
	}
	return declared
}

// sniffedImageMIME identifies an image payload from content alone, returning
// "" when the bytes are not a recognizable image.
func sniffedImageMIME(data []byte) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		if m := canonicalMIME(kind.MIME.Value); imageMIMEs[m] {
			return m
		}
		return ""
	}
	if looksLikeSVG(data) {
		return "image/svg+xml"
	}
	return ""
}

func (s *Store) UploadImage(ctx context.Context, payload *DataURI, originalName string) (*Asset, error) {
	return s.store(ctx, payload, originalName, imageMIMEs, s.cfg.ImageMaxBytes)
}

func (s *Store) UploadMedia(ctx context.Context, payload *DataURI, originalName string) (*Asset, error) {
	allowed := make(map[string]bool, len(imageMIMEs)+len(videoMIMEs))
	for k := range imageMIMEs {
		allowed[k] = true
	}
	for k := range videoMIMEs {
		allowed[k] = true
	}
	return s.store(ctx, payload, originalName, allowed, s.cfg.MediaMaxBytes)
}

// store runs the shared acceptance pipeline: size ceiling, type detection and
// allow-listing, per-format conditioning, deduplication and the final write.
func (s *Store) store(ctx context.Context, payload *DataURI, originalName string, allowed map[string]bool, maxBytes int64) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if payload == nil || len(payload.Data) == 0 {
		return nil, ErrEmptyPayload
	}
	if int64(len(payload.Data)) > maxBytes {
		return nil, fmt.Errorf("%d bytes over %d limit: %w", len(payload.Data), maxBytes, ErrPayloadTooLarge)
	}

	data := payload.Data
	mimeType := detectMIME(data, payload.MIME)
	if !allowed[mimeType] {
		return nil, fmt.Errorf("%s: %w", mimeType, ErrUnsupportedType)
	}

	var err error
	switch {
	case mimeType == "image/svg+xml":
		if data, err = SanitizeSVG(data); err != nil {
			return nil, err
		}
		if s.cfg.RasterizeSVG {
			img, err := RasterizeSVG(data)
			if err != nil {
				return nil, fmt.Errorf("unable to rasterize SVG: %w", err)
			}
			if data, err = encodePNG(img); err != nil {
				return nil, err
			}
			mimeType = "image/png"
		}
	case imageMIMEs[mimeType] && mimeType != "image/gif":
		// GIFs pass through, resizing would drop animation frames.
		if data, mimeType, err = conformRaster(data, s.cfg.MaxDimension, s.cfg.JPEGQuality); err != nil {
			return nil, err
		}
	}

	digest := Digest(data)
	if s.index != nil {
		name, storedMIME, ok, err := s.index.Lookup(digest)
		if err != nil {
			return nil, err
		}
		if ok {
			if _, statErr := os.Stat(filepath.Join(s.cfg.UploadDir, name)); statErr == nil {
				s.log.Debug("Reusing stored asset", zap.String("name", name), zap.String("digest", digest))
				return &Asset{
					URL:    path.Join(s.cfg.PublicPrefix, name),
					Name:   name,
					MIME:   storedMIME,
					Size:   int64(len(data)),
					Reused: true,
				}, nil
			}
			// Index points at a file someone removed, fall through and
			// store again.
		}
	}

	name, err := s.namer.Name(originalName, mimeType)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.cfg.UploadDir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("unable to write asset: %w", err)
	}
	if s.index != nil {
		if err := s.index.Record(digest, name, mimeType, int64(len(data))); err != nil {
			return nil, err
		}
	}
	s.log.Info("Stored asset",
		zap.String("name", name),
		zap.String("mime", mimeType),
		zap.Int("size", len(data)))

	return &Asset{
		URL:  path.Join(s.cfg.PublicPrefix, name),
		Name: name,
		MIME: mimeType,
		Size: int64(len(data)),
	}, nil
}

// originalNameFromURL derives an advisory file name from a remote URL path.
func originalNameFromURL(remote string) string {
	u, err := url.Parse(remote)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
