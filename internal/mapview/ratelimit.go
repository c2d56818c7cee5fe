package mapview

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/TheMichaelB/travelmap/internal/models"
)

// RateLimited spaces out calls to a provider.
type RateLimited struct {
	inner   Geocoder
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a limiter allowing perSecond calls and a
// burst of one. perSecond <= 0 disables limiting.
func NewRateLimited(inner Geocoder, perSecond float64) *RateLimited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (r *RateLimited) Geocode(ctx context.Context, address string) (models.Coordinate, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return models.Coordinate{}, err
	}
	return r.inner.Geocode(ctx, address)
}

func (r *RateLimited) SearchPlace(ctx context.Context, keyword string) ([]Place, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.SearchPlace(ctx, keyword)
}
