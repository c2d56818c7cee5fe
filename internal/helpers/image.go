// Package helpers holds small stateless utilities shared by the CLI and
// the travel service.
package helpers

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"

	"github.com/TheMichaelB/travelmap/internal/models"
)

// Image compression defaults.
const (
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1080
	DefaultQuality   = 0.8
)

// CompressedImage is an encoded, possibly downscaled image.
type CompressedImage struct {
	Data   []byte
	Format string // "jpeg" or "png"
	Width  int
	Height int
}

// Ext returns the file extension for the encoded format.
func (c *CompressedImage) Ext() string {
	if c.Format == "jpeg" {
		return ".jpg"
	}
	return "." + c.Format
}

// CompressImage decodes r, scales it down to fit maxWidth×maxHeight keeping
// the aspect ratio, and re-encodes it. Images already inside the box are
// re-encoded at their size. JPEG output uses quality (0..1]; PNG ignores it.
// GIF input is written as PNG. Zero arguments select the defaults.
func CompressImage(r io.Reader, maxWidth, maxHeight int, quality float64) (*CompressedImage, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	if quality <= 0 || quality > 1 {
		quality = DefaultQuality
	}

	src, format, err := image.Decode(r)
	if err != nil {
		return nil, &models.Error{Kind: models.KindMedia, Op: "compress image", Message: "image load failed", Err: err}
	}

	bounds := src.Bounds()
	width, height := fitBox(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	var dst image.Image = src
	if width != bounds.Dx() || height != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)
		dst = scaled
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: int(math.Round(quality * 100))})
	case "png", "gif":
		format = "png"
		err = png.Encode(&buf, dst)
	default:
		return nil, &models.Error{Kind: models.KindMedia, Op: "compress image",
			Message: fmt.Sprintf("unsupported format %q", format)}
	}
	if err != nil {
		return nil, &models.Error{Kind: models.KindMedia, Op: "compress image", Message: "compression failed", Err: err}
	}

	return &CompressedImage{
		Data:   buf.Bytes(),
		Format: format,
		Width:  width,
		Height: height,
	}, nil
}

// fitBox scales w×h down by one ratio so both sides fit the box.
func fitBox(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	return max(nw, 1), max(nh, 1)
}
