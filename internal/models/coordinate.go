package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Coordinate is a [lng, lat] pair, the order used by the map SDK and the
// persisted document.
type Coordinate [2]float64

// NewCoordinate builds a coordinate from longitude and latitude.
func NewCoordinate(lng, lat float64) Coordinate {
	return Coordinate{lng, lat}
}

func (c Coordinate) Lng() float64 { return c[0] }
func (c Coordinate) Lat() float64 { return c[1] }

// String formats the coordinate as "lng,lat", the form the map web
// service accepts and returns.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c[0], 'f', -1, 64) + "," + strconv.FormatFloat(c[1], 'f', -1, 64)
}

// Validate checks the coordinate is within WGS84 bounds.
func (c Coordinate) Validate() error {
	if c.Lng() < -180 || c.Lng() > 180 {
		return fmt.Errorf("longitude %v out of range", c.Lng())
	}
	if c.Lat() < -90 || c.Lat() > 90 {
		return fmt.Errorf("latitude %v out of range", c.Lat())
	}
	return nil
}

// ParseCoordinate parses "lng,lat".
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: want lng,lat", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	c := Coordinate{lng, lat}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// coordinateFrom converts a decoded JSON value ([]any of numbers) into a
// coordinate.
func coordinateFrom(v any) (Coordinate, bool) {
	switch val := v.(type) {
	case Coordinate:
		return val, true
	case []float64:
		if len(val) == 2 {
			return Coordinate{val[0], val[1]}, true
		}
	case []any:
		if len(val) != 2 {
			return Coordinate{}, false
		}
		lng, ok1 := toFloat(val[0])
		lat, ok2 := toFloat(val[1])
		if ok1 && ok2 {
			return Coordinate{lng, lat}, true
		}
	}
	return Coordinate{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
