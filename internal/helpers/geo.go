package helpers

import (
	"math"
	"strconv"
	"strings"

	"github.com/TheMichaelB/travelmap/internal/models"
)

// EarthRadiusKm is the mean radius used for great-circle distances.
const EarthRadiusKm = 6371

// Distance returns the haversine distance between a and b in kilometres.
func Distance(a, b models.Coordinate) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLng := (b.Lng() - a.Lng()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// CalculateDistance is Distance rounded to two decimals, as a string.
func CalculateDistance(a, b models.Coordinate) string {
	return strconv.FormatFloat(Distance(a, b), 'f', 2, 64)
}

// ImageURL resolves a stored image path against base. Absolute http(s)
// URLs pass through; repeated slashes are collapsed.
func ImageURL(base, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") {
		return path
	}
	if base == "" {
		base = "/"
	}

	joined := base + path
	scheme := ""
	if i := strings.Index(joined, "://"); i >= 0 {
		scheme, joined = joined[:i+3], joined[i+3:]
	}

	var sb strings.Builder
	sb.WriteString(scheme)
	prevSlash := false
	for _, r := range joined {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
