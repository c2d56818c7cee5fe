package models

import "time"

// Field names shared by every persisted record.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldPhotos    = "photos"

	SettingDefaultMarkerStyle = "defaultMarkerStyle"
	SettingHomeLocation       = "homeLocation"
)

// Defaults for a fresh settings record.
const DefaultMarkerStyle = "📌"

var DefaultHomeLocation = Coordinate{116.407526, 39.904030}

// TimestampLayout matches JavaScript's Date.toISOString output.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t the way record timestamps are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Visit is a place the user has been. Apart from id and the two
// timestamps its fields are free-form and round-trip untouched.
type Visit map[string]any

func (v Visit) ID() string        { return stringField(v, FieldID) }
func (v Visit) CreatedAt() string { return stringField(v, FieldCreatedAt) }
func (v Visit) UpdatedAt() string { return stringField(v, FieldUpdatedAt) }

// Photos returns the stored photo paths.
func (v Visit) Photos() []string {
	raw, ok := v[FieldPhotos].([]any)
	if !ok {
		if paths, ok := v[FieldPhotos].([]string); ok {
			return append([]string(nil), paths...)
		}
		return nil
	}
	paths := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok {
			paths = append(paths, s)
		}
	}
	return paths
}

// Location returns the visit's coordinate when it carries one.
func (v Visit) Location() (Coordinate, bool) {
	return coordinateFrom(v["location"])
}

func (v Visit) Clone() Visit { return Visit(cloneFields(v)) }

// WishlistItem is a place the user wants to go.
type WishlistItem map[string]any

func (w WishlistItem) ID() string        { return stringField(w, FieldID) }
func (w WishlistItem) CreatedAt() string { return stringField(w, FieldCreatedAt) }

func (w WishlistItem) Location() (Coordinate, bool) {
	return coordinateFrom(w["location"])
}

func (w WishlistItem) Clone() WishlistItem { return WishlistItem(cloneFields(w)) }

// Settings is the single mutable preferences record.
type Settings map[string]any

// DefaultSettings returns the settings used before anything is loaded.
func DefaultSettings() Settings {
	return Settings{
		SettingDefaultMarkerStyle: DefaultMarkerStyle,
		SettingHomeLocation:       []any{DefaultHomeLocation.Lng(), DefaultHomeLocation.Lat()},
	}
}

func (s Settings) DefaultMarkerStyle() string {
	if style := stringField(s, SettingDefaultMarkerStyle); style != "" {
		return style
	}
	return DefaultMarkerStyle
}

func (s Settings) HomeLocation() Coordinate {
	if c, ok := coordinateFrom(s[SettingHomeLocation]); ok {
		return c
	}
	return DefaultHomeLocation
}

func (s Settings) Clone() Settings { return Settings(cloneFields(s)) }

// Merge returns a copy of s with patch's top-level keys applied.
func (s Settings) Merge(patch Settings) Settings {
	return Settings(mergeFields(s, patch))
}

// Document is the whole persisted file.
type Document struct {
	Visits   []Visit        `json:"visits"`
	Wishlist []WishlistItem `json:"wishlist"`
	Settings Settings       `json:"settings"`
}

// MergeFields copies base with patch's top-level keys applied.
func MergeFields(base, patch map[string]any) map[string]any {
	return mergeFields(base, patch)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// cloneFields copies m along with any nested maps and slices, so a
// clone's location or photos can be edited in place.
func cloneFields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneFields(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	case []float64:
		return append([]float64(nil), v...)
	default:
		return v
	}
}

func mergeFields(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}
