package ingest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/beevik/etree"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const defaultSVGSize = 1024 // used when the viewBox carries no usable size

// maxRasterDim is the maximum pixel dimension (width or height) allowed when
// rasterizing an SVG. This prevents OOM from malicious SVGs with enormous
// viewBox values which would otherwise allocate multi-gigabyte RGBA buffers.
var maxRasterDim = 8192

// scriptableElements are removed from uploaded SVGs wholesale. Anything able
// to run script or embed foreign markup has no place in stored content.
var scriptableElements = map[string]bool{
	"script":        true,
	"foreignobject": true,
	"animate":       true,
	"set":           true,
}

// SanitizeSVG parses svgData, verifies the root element is svg and strips
// active content: script-capable elements, on* event attributes and
// javascript: URLs. Returns the cleaned document.
func SanitizeSVG(svgData []byte) ([]byte, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		ValidateInput: false,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(svgData); err != nil {
		return nil, fmt.Errorf("unable to parse SVG: %w", err)
	}
	root := doc.Root()
	if root == nil || !strings.EqualFold(root.Tag, "svg") {
		return nil, fmt.Errorf("document root is not svg: %w", ErrUnsupportedType)
	}
	sanitizeElement(root)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("unable to serialize SVG: %w", err)
	}
	return out, nil
}

func sanitizeElement(el *etree.Element) {
	for _, child := range el.ChildElements() {
		if scriptableElements[strings.ToLower(child.Tag)] {
			el.RemoveChild(child)
			continue
		}
		sanitizeElement(child)
	}

	kept := el.Attr[:0]
	for _, a := range el.Attr {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if (key == "href" || key == "xlink:href" || a.FullKey() == "xlink:href") &&
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Value)), "javascript:") {
			continue
		}
		kept = append(kept, a)
	}
	el.Attr = kept
}

// RasterizeSVG renders SVG data to a white-backed PNG-ready RGBA image at its
// intrinsic viewBox size, clamped to maxRasterDim.
func RasterizeSVG(svgData []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, err
	}

	w := int(math.Ceil(icon.ViewBox.W))
	h := int(math.Ceil(icon.ViewBox.H))
	if w <= 0 {
		w = defaultSVGSize
	}
	if h <= 0 {
		h = defaultSVGSize
	}

	// Clamp to maxRasterDim preserving aspect ratio to prevent OOM.
	if w > maxRasterDim || h > maxRasterDim {
		s := min(float64(maxRasterDim)/float64(w), float64(maxRasterDim)/float64(h))
		w = max(int(math.Round(float64(w)*s)), 1)
		h = max(int(math.Round(float64(h)*s)), 1)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}
