package mapview

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
)

// DefaultPageSize is the number of places a search returns.
const DefaultPageSize = 10

// Place is one place search hit.
type Place struct {
	Name     string            `json:"name"`
	District string            `json:"district"`
	Location models.Coordinate `json:"location"`
}

// Geocoder resolves addresses and searches places.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinate, error)
	SearchPlace(ctx context.Context, keyword string) ([]Place, error)
}

// NewProvider returns the rate limited geocoder selected by cfg.Provider.
func NewProvider(cfg *config.MapConfig, loader *Loader, logger *events.Logger) (Geocoder, error) {
	var g Geocoder
	switch cfg.Provider {
	case config.ProviderAMap, "":
		g = NewAMap(loader, logger)
	case config.ProviderNominatim:
		g = NewNominatim(cfg.NominatimServer, cfg.PageSize, logger)
	default:
		return nil, fmt.Errorf("unknown map provider: %s", cfg.Provider)
	}

	return NewRateLimited(g, cfg.RequestsPerSecond), nil
}

// SearchCity is SearchPlace for UI pickers: failures are logged and yield
// an empty list.
func SearchCity(ctx context.Context, g Geocoder, keyword string, logger *events.Logger) []Place {
	places, err := g.SearchPlace(ctx, keyword)
	if err != nil {
		logger.WithError(err).WithField("keyword", keyword).Warn("City search failed")
		return []Place{}
	}
	if places == nil {
		return []Place{}
	}
	return places
}
