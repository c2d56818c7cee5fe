package mapview

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
)

// Map defaults.
const (
	DefaultZoom     = 5
	DefaultStyle    = "amap://styles/normal"
	DefaultViewMode = "2D"
	DefaultGlyph    = "📌"
)

// DefaultCenter is Beijing.
var DefaultCenter = models.NewCoordinate(116.397428, 39.90923)

// ErrEmptyContainer is returned by Init without a container id.
var ErrEmptyContainer = errors.New("map container id is required")

var markerTemplate = template.Must(template.New("marker").Parse(
	`<div style="font-size: 24px; cursor: pointer; transform: translate(-50%, -50%);{{if .Color}} color: {{.Color}};{{end}}">{{.Glyph}}</div>`))

// MarkerStyle holds optional marker presentation.
type MarkerStyle struct {
	Color string
}

// Marker is a glyph pinned to the map.
type Marker struct {
	ID       string
	Position models.Coordinate
	Glyph    string
	Style    MarkerStyle

	onClick func(*Marker)
}

// HTML renders the marker's DOM fragment.
func (m *Marker) HTML() template.HTML {
	var buf bytes.Buffer
	_ = markerTemplate.Execute(&buf, struct {
		Glyph string
		Color string
	}{m.Glyph, m.Style.Color})
	return template.HTML(buf.String())
}

// Map is one map instance: camera state plus the markers it owns.
type Map struct {
	loader *Loader
	logger *events.Logger

	mu          sync.Mutex
	sdk         *SDK
	containerID string
	center      models.Coordinate
	zoom        int
	style       string
	viewMode    string
	markers     []*Marker
}

// NewMap creates an uninitialised map backed by loader.
func NewMap(loader *Loader, logger *events.Logger) *Map {
	return &Map{
		loader: loader,
		logger: logger.WithField("component", "map"),
	}
}

// Init loads the SDK and binds the map to containerID with the default
// camera.
func (m *Map) Init(ctx context.Context, containerID string) (*Map, error) {
	if containerID == "" {
		return nil, ErrEmptyContainer
	}

	sdk, err := m.loader.Load(ctx)
	if err != nil {
		m.logger.WithError(err).Error("Map initialisation failed")
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sdk = sdk
	m.containerID = containerID
	m.center = DefaultCenter
	m.zoom = DefaultZoom
	m.style = DefaultStyle
	m.viewMode = DefaultViewMode

	return m, nil
}

// Initialized reports whether Init succeeded.
func (m *Map) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sdk != nil
}

// AddMarker pins glyph at pos. An empty glyph uses DefaultGlyph. It returns
// nil when the map is not initialised.
func (m *Map) AddMarker(pos models.Coordinate, glyph string, onClick func(*Marker), style MarkerStyle) *Marker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sdk == nil {
		return nil
	}

	if glyph == "" {
		glyph = DefaultGlyph
	}

	marker := &Marker{
		ID:       uuid.NewString(),
		Position: pos,
		Glyph:    glyph,
		Style:    style,
		onClick:  onClick,
	}
	m.markers = append(m.markers, marker)

	return marker
}

// RemoveMarker detaches marker. Unknown markers are ignored.
func (m *Map) RemoveMarker(marker *Marker) {
	if marker == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sdk == nil {
		return
	}

	for i, mk := range m.markers {
		if mk == marker {
			m.markers = append(m.markers[:i], m.markers[i+1:]...)
			return
		}
	}
}

// ClearMarkers detaches every marker.
func (m *Map) ClearMarkers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = nil
}

// Markers returns the attached markers in insertion order.
func (m *Map) Markers() []*Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Marker(nil), m.markers...)
}

// Click dispatches the click callback of the marker with id. It reports
// whether an attached marker was found.
func (m *Map) Click(id string) bool {
	m.mu.Lock()
	var target *Marker
	for _, mk := range m.markers {
		if mk.ID == id {
			target = mk
			break
		}
	}
	m.mu.Unlock()

	if target == nil {
		return false
	}
	if target.onClick != nil {
		target.onClick(target)
	}
	return true
}

// SetCenter moves the camera. A zoom of 0 keeps the current zoom.
func (m *Map) SetCenter(pos models.Coordinate, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sdk == nil {
		return
	}

	m.center = pos
	if zoom > 0 {
		m.zoom = zoom
	}
}

// Center returns the camera center.
func (m *Map) Center() models.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center
}

// Zoom returns the camera zoom.
func (m *Map) Zoom() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom
}

// ContainerID returns the container the map is bound to.
func (m *Map) ContainerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.containerID
}

// Static map limits.
const (
	staticMinZoom    = 1
	staticMaxZoom    = 17
	staticMaxMarkers = 10
	staticSize       = "750*400"
)

// StaticURL returns a static map image URL for the current camera and up to
// ten markers. It is empty when the map is not initialised.
func (m *Map) StaticURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sdk == nil {
		return ""
	}

	zoom := m.zoom
	if zoom < staticMinZoom {
		zoom = staticMinZoom
	}
	if zoom > staticMaxZoom {
		zoom = staticMaxZoom
	}

	q := url.Values{}
	q.Set("key", m.sdk.key)
	q.Set("location", m.center.String())
	q.Set("zoom", strconv.Itoa(zoom))
	q.Set("size", staticSize)

	var groups []string
	for i, mk := range m.markers {
		if i == staticMaxMarkers {
			break
		}
		groups = append(groups, "mid,"+staticColor(mk.Style.Color)+",:"+mk.Position.String())
	}
	if len(groups) > 0 {
		q.Set("markers", strings.Join(groups, "|"))
	}

	return m.sdk.baseURL + "/v3/staticmap?" + q.Encode()
}

// staticColor converts "#rrggbb" to the 0xRRGGBB form; anything else uses
// the service default.
func staticColor(c string) string {
	if len(c) != 7 || c[0] != '#' {
		return ""
	}
	if _, err := strconv.ParseUint(c[1:], 16, 32); err != nil {
		return ""
	}
	return "0x" + strings.ToUpper(c[1:])
}
