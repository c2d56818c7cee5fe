package mapview

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/muesli/gominatim"

	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
)

// gominatim keeps its server address in a package variable, so it is set
// once for the process.
var (
	nominatimOnce   sync.Once
	nominatimServer string
)

type searchFunc func(q string, limit int) ([]gominatim.SearchResult, error)

func gominatimSearch(q string, limit int) ([]gominatim.SearchResult, error) {
	query := gominatim.SearchQuery{
		Q:     q,
		Limit: limit,
	}
	return query.Get()
}

// Nominatim geocodes against an OpenStreetMap Nominatim server. It needs
// no key.
type Nominatim struct {
	pageSize int
	search   searchFunc
	logger   *events.Logger
}

// NewNominatim creates a Nominatim provider. The first server passed in the
// process wins.
func NewNominatim(server string, pageSize int, logger *events.Logger) *Nominatim {
	nominatimOnce.Do(func() {
		nominatimServer = server
		gominatim.SetServer(server)
	})
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Nominatim{
		pageSize: pageSize,
		search:   gominatimSearch,
		logger:   logger.WithField("component", "nominatim"),
	}
}

// Geocode resolves address to the best match.
func (n *Nominatim) Geocode(ctx context.Context, address string) (models.Coordinate, error) {
	results, err := n.query(ctx, address, 1)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %w", ErrGeocodeFailed, err)
	}

	for _, r := range results {
		if coord, err := parseLatLon(r.Lat, r.Lon); err == nil {
			return coord, nil
		}
	}

	return models.Coordinate{}, fmt.Errorf("%w: no result for %q", ErrGeocodeFailed, address)
}

// SearchPlace returns up to one page of matches.
func (n *Nominatim) SearchPlace(ctx context.Context, keyword string) ([]Place, error) {
	results, err := n.query(ctx, keyword, n.pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		coord, err := parseLatLon(r.Lat, r.Lon)
		if err != nil {
			continue
		}
		name, district, _ := strings.Cut(r.DisplayName, ",")
		places = append(places, Place{
			Name:     strings.TrimSpace(name),
			District: strings.TrimSpace(district),
			Location: coord,
		})
		if len(places) == n.pageSize {
			break
		}
	}

	return places, nil
}

// query runs the blocking gominatim call off the caller's goroutine so ctx
// can abandon it.
func (n *Nominatim) query(ctx context.Context, q string, limit int) ([]gominatim.SearchResult, error) {
	type result struct {
		res []gominatim.SearchResult
		err error
	}

	done := make(chan result, 1)
	go func() {
		res, err := n.search(q, limit)
		done <- result{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			n.logger.WithError(r.err).WithField("query", q).Warn("Nominatim search error")
			return nil, models.NewError(models.KindRemote, "nominatim search", nominatimServer, r.err)
		}
		return r.res, nil
	}
}

func parseLatLon(lat, lon string) (models.Coordinate, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("parse lat %q: %w", lat, err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("parse lon %q: %w", lon, err)
	}
	c := models.NewCoordinate(lo, la)
	if err := c.Validate(); err != nil {
		return models.Coordinate{}, err
	}
	return c, nil
}
