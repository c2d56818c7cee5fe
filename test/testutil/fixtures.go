package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"time"

	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
)

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	return events.NewTestLogger(events.DebugLevel, "json", io.Discard)
}

// FixedClock returns a clock that advances by step on every call,
// starting at start.
func FixedClock(start time.Time, step time.Duration) func() time.Time {
	current := start.Add(-step)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

// SampleVisit provides a test visit.
func SampleVisit(id string) models.Visit {
	return models.Visit{
		"id":        id,
		"name":      "北京",
		"location":  []interface{}{116.407526, 39.904030},
		"visitDate": "2024-01-15",
		"notes":     "故宫 and the Great Wall",
		"photos":    []interface{}{},
	}
}

// SampleWishlistItem provides a test wishlist entry.
func SampleWishlistItem(id string) models.WishlistItem {
	return models.WishlistItem{
		"id":       id,
		"name":     "Lhasa",
		"location": []interface{}{91.1409, 29.6456},
		"priority": "high",
	}
}

// SampleDocumentJSON is a stored travel document.
const SampleDocumentJSON = `{
  "visits": [
    {
      "id": "visit_1",
      "name": "上海",
      "location": [121.4737, 31.2304],
      "rating": 5,
      "createdAt": "2024-01-01T00:00:00.000Z",
      "updatedAt": "2024-01-01T00:00:00.000Z"
    }
  ],
  "wishlist": [
    {
      "id": "wish_1",
      "name": "Chengdu",
      "createdAt": "2024-01-02T00:00:00.000Z"
    }
  ],
  "settings": {
    "defaultMarkerStyle": "📍",
    "homeLocation": [121.4737, 31.2304]
  }
}`

// SampleJPEG encodes a w×h gradient as JPEG.
func SampleJPEG(w, h int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// SamplePNG encodes a w×h gradient as PNG.
func SamplePNG(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(w, 1)),
				G: uint8(y * 255 / max(h, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}
