// Package mapview adapts the AMap web service to the travel tracker: a lazily
// bootstrapped SDK handle, a map instance with marker bookkeeping, and
// geocoding providers with caching and rate limiting.
package mapview

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
	"github.com/TheMichaelB/travelmap/internal/transport"
)

// Plugin names understood by the SDK.
const (
	PluginGeocoder    = "AMap.Geocoder"
	PluginPlaceSearch = "AMap.PlaceSearch"
)

var (
	// ErrMissingKey is returned by Load when no usable map key is configured.
	ErrMissingKey = errors.New("map key not configured")

	// ErrPluginNotLoaded is returned when an operation needs a plugin the
	// SDK was not loaded with.
	ErrPluginNotLoaded = errors.New("map plugin not loaded")
)

// SDK is a loaded handle on the map web service.
type SDK struct {
	key     string
	baseURL string
	plugins map[string]bool
	doer    transport.Doer
	cfg     config.MapConfig
}

// HasPlugin reports whether the SDK was loaded with the named plugin.
func (s *SDK) HasPlugin(name string) bool {
	return s.plugins[strings.ToLower(name)]
}

// Key returns the web service key.
func (s *SDK) Key() string {
	return s.key
}

func (s *SDK) require(op, plugin string) error {
	if s.HasPlugin(plugin) {
		return nil
	}
	return models.NewError(models.KindMedia, op, plugin, ErrPluginNotLoaded)
}

// Loader bootstraps the SDK at most once per process lifetime. A failed
// load is not remembered, so the next call tries again.
type Loader struct {
	cfg    config.MapConfig
	doer   transport.Doer
	logger *events.Logger

	mu    sync.Mutex
	sdk   *SDK
	loads int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDoer replaces the HTTP client used for map web service calls.
func WithDoer(doer transport.Doer) LoaderOption {
	return func(l *Loader) {
		l.doer = doer
	}
}

// NewLoader creates a loader for cfg. Without WithDoer it talks to
// cfg.BaseURL over a client that never retries.
func NewLoader(cfg *config.MapConfig, logger *events.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{
		cfg:    *cfg,
		logger: logger.WithField("component", "map_loader"),
	}
	l.cfg.Plugins = append([]string(nil), cfg.Plugins...)

	for _, opt := range opts {
		opt(l)
	}

	if l.doer == nil {
		l.doer = transport.NewHTTPClient(&config.APIConfig{
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: 0,
			UserAgent:  "travelmap/1.0",
		}, logger)
	}

	return l
}

// Loaded reports whether a previous Load succeeded.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sdk != nil
}

// Loads returns how many bootstrap attempts ran.
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// Load returns the shared SDK, bootstrapping it on first use.
func (l *Loader) Load(ctx context.Context) (*SDK, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sdk != nil {
		return l.sdk, nil
	}

	l.loads++

	if !l.cfg.HasMapKey() {
		return nil, models.NewError(models.KindMedia, "load map sdk", "", ErrMissingKey)
	}

	sdk := &SDK{
		key:     l.cfg.Key,
		baseURL: strings.TrimRight(l.cfg.BaseURL, "/"),
		plugins: make(map[string]bool, len(l.cfg.Plugins)),
		doer:    l.doer,
		cfg:     l.cfg,
	}
	for _, p := range l.cfg.Plugins {
		sdk.plugins[strings.ToLower(strings.TrimSpace(p))] = true
	}

	if l.cfg.VerifyKey {
		if err := l.verify(ctx, sdk); err != nil {
			l.logger.WithError(err).Warn("Map SDK load failed")
			return nil, err
		}
	}

	l.sdk = sdk
	l.logger.WithFields(map[string]interface{}{
		"plugins":  strings.Join(l.cfg.Plugins, ","),
		"verified": l.cfg.VerifyKey,
	}).Debug("Map SDK loaded")

	return sdk, nil
}

// verify calls the IP location endpoint, the cheapest call that checks
// the key.
func (l *Loader) verify(ctx context.Context, sdk *SDK) error {
	req := transport.NewRequest(http.MethodGet, "/v3/ip").
		WithQuery("key", sdk.key).
		WithQuery("output", "JSON")

	var status amapStatus
	if err := sdk.call(ctx, "load map sdk", req, &status); err != nil {
		return models.NewError(models.KindMedia, "load map sdk", "", err)
	}
	return nil
}
