package ingest

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodedImage is a raster payload after inspection.
type decodedImage struct {
	img    image.Image
	format string // registered decoder name: jpeg, png, gif, webp, bmp, tiff
}

func decodeImage(data []byte) (*decodedImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode image: %w", err)
	}
	return &decodedImage{img: img, format: format}, nil
}

// conformRaster brings a raster payload within maxDim. When the image already
// fits (or maxDim is 0) the original bytes pass through untouched so that
// animated GIFs and already optimized files are never degraded. Oversized
// images are resized preserving aspect ratio and re-encoded, JPEG stays JPEG
// at the given quality, everything else becomes PNG.
func conformRaster(data []byte, maxDim, jpegQuality int) ([]byte, string, error) {
	dec, err := decodeImage(data)
	if err != nil {
		return nil, "", err
	}
	mimeType := "image/" + dec.format

	bounds := dec.img.Bounds()
	if maxDim <= 0 || (bounds.Dx() <= maxDim && bounds.Dy() <= maxDim) {
		return data, mimeType, nil
	}

	resized := imaging.Fit(dec.img, maxDim, maxDim, imaging.Lanczos)
	buf := new(bytes.Buffer)
	if dec.format == "jpeg" {
		if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", fmt.Errorf("unable to encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(buf, resized); err != nil {
		return nil, "", fmt.Errorf("unable to encode png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// encodePNG renders an in-memory image as PNG bytes.
func encodePNG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("unable to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
