package ingest

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"richedit/config"
)

// NameValues is the context available to the asset name template.
type NameValues struct {
	// Stamp is milliseconds since epoch at store time.
	Stamp string
	// Slug is the sanitized base of the original file name, or a fresh
	// UUID when no usable name was supplied.
	Slug string
	// Ext is the extension matching the stored MIME type, without a dot.
	Ext string
	// ID is a fresh UUIDv7 for templates that want full uniqueness.
	ID string
}

// Namer renders stored file names from the configured template.
type Namer struct {
	tmpl *template.Template
	now  func() time.Time
}

// NewNamer parses the name template once. Template errors surface here
// rather than on every upload.
func NewNamer(nameTemplate string) (*Namer, error) {
	tmpl, err := template.New(config.NameTemplateFieldName).Funcs(sprig.FuncMap()).Parse(nameTemplate)
	if err != nil {
		return nil, fmt.Errorf("unable to parse template field %s: %w", config.NameTemplateFieldName, err)
	}
	return &Namer{tmpl: tmpl, now: time.Now}, nil
}

// Name produces the stored file name for an asset. originalName may be empty
// or hostile, only its sanitized base ever reaches the result.
func (nm *Namer) Name(originalName, mimeType string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("unable to generate asset id: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	base = slug.Make(config.CleanFileName(base))
	if base == "" {
		base = id.String()
	}

	values := NameValues{
		Stamp: strconv.FormatInt(nm.now().UnixMilli(), 10),
		Slug:  base,
		Ext:   mimeToExt(mimeType),
		ID:    id.String(),
	}
	buf := new(bytes.Buffer)
	if err := nm.tmpl.Execute(buf, values); err != nil {
		return "", fmt.Errorf("unable to expand name template: %w", err)
	}
	name := strings.TrimSpace(buf.String())
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("name template produced unusable name %q", name)
	}
	return name, nil
}

// mimeToExt returns file extension for common media MIME types.
func mimeToExt(mimeType string) string {
	// mime.ExtensionsByType order is platform dependent, known types get a
	// fixed extension
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/svg+xml":
		return "svg"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	case "video/ogg":
		return "ogv"
	case "video/quicktime":
		return "mov"
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
