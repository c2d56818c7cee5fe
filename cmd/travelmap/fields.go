package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TheMichaelB/travelmap/internal/helpers"
	"github.com/TheMichaelB/travelmap/internal/models"
)

// parseFields turns key=value pairs into record fields. Values that parse
// as JSON (numbers, booleans, arrays, objects) keep their type; anything
// else is a string.
func parseFields(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: want key=value", pair)
		}
		fields[key] = parseValue(raw)
	}
	return fields, nil
}

func parseValue(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}

// coordinateValue is the persisted form of a coordinate.
func coordinateValue(c models.Coordinate) []any {
	return []any{c.Lng(), c.Lat()}
}

func fieldString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// distanceFromHome formats the distance to the home location, or "-".
func distanceFromHome(loc models.Coordinate, ok bool, settings models.Settings) string {
	if !ok {
		return "-"
	}
	return helpers.CalculateDistance(settings.HomeLocation(), loc) + " km"
}
