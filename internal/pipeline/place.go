package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// PlaceResolver turns a request's point or place query into a Location.
type PlaceResolver struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewPlaceResolver creates a PlaceResolver. Pass a nil geocoder to disable
// place search and reverse lookup.
func NewPlaceResolver(geocoder domain.Geocoder, logger *slog.Logger) *PlaceResolver {
	return &PlaceResolver{
		geocoder: geocoder,
		logger:   logger,
	}
}

func (r *PlaceResolver) Resolve(ctx context.Context, req domain.LocationRequest) (domain.Location, error) {
	return domain.ResolveLocation(ctx, req, r.geocoder, r.logger)
}
