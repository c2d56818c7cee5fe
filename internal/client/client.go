package client

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/contents"
	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/mapview"
	"github.com/TheMichaelB/travelmap/internal/services/travel"
	"github.com/TheMichaelB/travelmap/internal/snapshot"
	"github.com/TheMichaelB/travelmap/internal/transport"
)

// Client provides the high-level API for travel map operations.
type Client struct {
	Travel    *travel.Service
	Files     contents.Store
	Geocoder  mapview.Geocoder
	Maps      *mapview.Loader
	Snapshots snapshot.Store

	config  *config.Config
	logger  *events.Logger
	offline bool
	closers []func() error
}

// Option configures a Client.
type Option func(*options)

type options struct {
	offline bool
	store   contents.Store
	mapDoer transport.Doer
}

// WithOffline keeps the document in a local directory instead of GitHub.
func WithOffline(offline bool) Option {
	return func(o *options) { o.offline = offline }
}

// WithStore uses store for document and image files.
func WithStore(store contents.Store) Option {
	return func(o *options) { o.store = store }
}

// WithMapDoer replaces the HTTP client of the map web service.
func WithMapDoer(doer transport.Doer) Option {
	return func(o *options) { o.mapDoer = doer }
}

// New wires the services described by cfg.
func New(cfg *config.Config, logger *events.Logger, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	c := &Client{
		config:  cfg,
		logger:  logger,
		offline: o.offline,
	}

	store, err := c.newStore(o)
	if err != nil {
		return nil, err
	}
	c.Files = store

	snapshots, err := snapshot.NewJSONStore(cfg.Storage.SnapshotDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}
	c.Snapshots = snapshots
	c.closers = append(c.closers, snapshots.Close)

	c.Travel = travel.NewService(store, logger,
		travel.WithDataPath(cfg.GitHub.DataPath),
		travel.WithSnapshots(snapshots),
	)

	var loaderOpts []mapview.LoaderOption
	if o.mapDoer != nil {
		loaderOpts = append(loaderOpts, mapview.WithDoer(o.mapDoer))
	}
	c.Maps = mapview.NewLoader(&cfg.Map, logger, loaderOpts...)

	geocoder, err := mapview.NewProvider(&cfg.Map, c.Maps, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	if cfg.Map.CacheTTL > 0 && cfg.Storage.CacheDB != "" {
		cached, err := mapview.NewCachedGeocoder(cfg.Storage.CacheDB, cfg.Map.CacheTTL, geocoder, logger)
		if err != nil {
			logger.WithError(err).Warn("Geocode cache unavailable, continuing without it")
		} else {
			geocoder = cached
			c.closers = append(c.closers, cached.Close)
		}
	}
	c.Geocoder = geocoder

	return c, nil
}

func (c *Client) newStore(o options) (contents.Store, error) {
	if o.store != nil {
		return o.store, nil
	}

	if o.offline {
		dir := filepath.Join(c.config.Storage.DataDir, "repo")
		store, err := contents.NewDirStore(dir, c.config.GitHub.ImageDir, c.logger)
		if err != nil {
			return nil, fmt.Errorf("create offline store: %w", err)
		}
		c.logger.WithField("dir", dir).Debug("Using offline store")
		return store, nil
	}

	if c.config.GitHub.Owner == "" {
		return nil, errors.New("github.owner is required (or run with --offline)")
	}

	httpClient := transport.NewHTTPClient(&c.config.API, c.logger)
	if c.config.GitHub.Token != "" {
		httpClient.SetToken(c.config.GitHub.Token)
	}

	return contents.NewClient(httpClient, &c.config.GitHub, c.logger), nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config {
	return c.config
}

// Offline reports whether documents are kept locally.
func (c *Client) Offline() bool {
	return c.offline
}

// NewMap creates an uninitialised map sharing the client's SDK loader.
func (c *Client) NewMap() *mapview.Map {
	return mapview.NewMap(c.Maps, c.logger)
}

// SearchCity searches places and swallows failures.
func (c *Client) SearchCity(ctx context.Context, keyword string) []mapview.Place {
	return mapview.SearchCity(ctx, c.Geocoder, keyword, c.logger)
}

// Status summarises the session.
type Status struct {
	Offline      bool   `json:"offline"`
	Repository   string `json:"repository"`
	DataPath     string `json:"data_path"`
	SHA          string `json:"sha,omitempty"`
	Visits       int    `json:"visits"`
	Wishlist     int    `json:"wishlist"`
	Snapshot     string `json:"snapshot,omitempty"`
	MapProvider  string `json:"map_provider"`
	MapKey       bool   `json:"map_key"`
	CacheHits    int64  `json:"cache_hits"`
	CacheMisses  int64  `json:"cache_misses"`
	LastAPIError string `json:"last_api_error,omitempty"`
}

// Status reports the current session state without network calls.
func (c *Client) Status() *Status {
	st := &Status{
		Offline:     c.offline,
		Repository:  fmt.Sprintf("%s/%s@%s", c.config.GitHub.Owner, c.config.GitHub.Repo, c.config.GitHub.Branch),
		DataPath:    c.Travel.DataPath(),
		SHA:         c.Travel.SHA(),
		Visits:      len(c.Travel.Visits()),
		Wishlist:    len(c.Travel.Wishlist()),
		MapProvider: c.config.Map.Provider,
		MapKey:      c.config.Map.HasMapKey(),
	}

	if snap, err := c.Snapshots.Load(c.Travel.DataPath()); err == nil {
		st.Snapshot = snap.SyncedAt.Format("2006-01-02 15:04:05")
	}

	if cached, ok := c.Geocoder.(*mapview.CachedGeocoder); ok {
		st.CacheHits, st.CacheMisses = cached.Stats()
	}

	if api, ok := c.Files.(*contents.Client); ok {
		if err := api.LastError(); err != nil {
			st.LastAPIError = err.Error()
		}
	}

	return st
}

// Close releases the snapshot store and geocode cache.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
