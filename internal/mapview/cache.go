package mapview

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
)

const (
	cacheKindGeocode = "geocode"
	cacheKindSearch  = "search"
)

// CachedGeocoder memoises successful provider answers in SQLite. Failures
// are never cached.
type CachedGeocoder struct {
	inner  Geocoder
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	logger *events.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheOption configures a CachedGeocoder.
type CacheOption func(*CachedGeocoder)

// WithCacheClock overrides the clock used for expiry.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *CachedGeocoder) {
		c.now = now
	}
}

// NewCachedGeocoder opens (or creates) the cache database at dbPath.
// Entries older than ttl are refetched; ttl <= 0 keeps them forever.
func NewCachedGeocoder(dbPath string, ttl time.Duration, inner Geocoder, logger *events.Logger, opts ...CacheOption) (*CachedGeocoder, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	c := &CachedGeocoder{
		inner:  inner,
		db:     db,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.WithField("component", "geocode_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return c, nil
}

func (c *CachedGeocoder) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS geocode_cache (
        kind TEXT NOT NULL,
        query TEXT NOT NULL,
        json TEXT NOT NULL,
        fetched_at INTEGER NOT NULL,
        PRIMARY KEY (kind, query)
    );

    CREATE INDEX IF NOT EXISTS idx_geocode_cache_fetched_at ON geocode_cache(fetched_at);
    `

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Geocode answers from the cache or the wrapped provider.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (models.Coordinate, error) {
	var coord models.Coordinate
	if c.lookup(ctx, cacheKindGeocode, address, &coord) {
		return coord, nil
	}

	coord, err := c.inner.Geocode(ctx, address)
	if err != nil {
		return models.Coordinate{}, err
	}

	c.store(ctx, cacheKindGeocode, address, coord)
	return coord, nil
}

// SearchPlace answers from the cache or the wrapped provider.
func (c *CachedGeocoder) SearchPlace(ctx context.Context, keyword string) ([]Place, error) {
	var places []Place
	if c.lookup(ctx, cacheKindSearch, keyword, &places) {
		if places == nil {
			places = []Place{}
		}
		return places, nil
	}

	places, err := c.inner.SearchPlace(ctx, keyword)
	if err != nil {
		return nil, err
	}

	c.store(ctx, cacheKindSearch, keyword, places)
	return places, nil
}

// Stats returns cache hits and misses since creation.
func (c *CachedGeocoder) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge removes expired entries and returns how many were deleted.
func (c *CachedGeocoder) Purge(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM geocode_cache WHERE fetched_at < ?`,
		c.now().Add(-c.ttl).Unix())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (c *CachedGeocoder) Close() error {
	return c.db.Close()
}

// lookup decodes a fresh entry into v. Cache read errors count as misses.
func (c *CachedGeocoder) lookup(ctx context.Context, kind, query string, v interface{}) bool {
	key := cacheKey(query)

	var raw string
	var fetchedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT json, fetched_at FROM geocode_cache WHERE kind = ? AND query = ?`,
		kind, key).Scan(&raw, &fetchedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.WithError(err).Warn("Geocode cache read failed")
		}
		c.misses.Add(1)
		return false
	}

	if c.ttl > 0 && c.now().Sub(time.Unix(fetchedAt, 0)) > c.ttl {
		c.misses.Add(1)
		return false
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.logger.WithError(err).WithField("query", key).Warn("Discarding corrupt cache entry")
		c.misses.Add(1)
		return false
	}

	c.hits.Add(1)
	return true
}

func (c *CachedGeocoder) store(ctx context.Context, kind, query string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO geocode_cache(kind, query, json, fetched_at) VALUES(?, ?, ?, ?)`,
		kind, cacheKey(query), string(data), c.now().Unix())
	if err != nil {
		c.logger.WithError(err).Warn("Geocode cache write failed")
	}
}

func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
