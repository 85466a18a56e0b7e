package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// Location source values.
const (
	SourceOriginal = "original"
	SourceForward  = "forward"
	SourceReverse  = "reverse"
	SourceFailed   = "failed"
)

// LocationRequest names a point directly, by place query, or both.
type LocationRequest struct {
	Query string
	Point *Point
}

// Location is a resolved point plus the place name shown in export headers.
type Location struct {
	Point  Point  `json:"point"`
	Name   string `json:"name,omitempty"`
	Source string `json:"source"`
}

// ResolveLocation fills in whichever half of a location is missing.
//
// Without a point, the query is forward-geocoded and any failure is fatal
// because there is nothing to extract at. With a point, the place name is
// looked up in reverse; that lookup degrades gracefully and only sets Source
// to "failed". A nil geocoder disables both directions.
func ResolveLocation(ctx context.Context, req LocationRequest, geocoder Geocoder, logger *slog.Logger) (Location, error) {
	if req.Point == nil {
		return forwardLocation(ctx, req.Query, geocoder)
	}

	loc := Location{Point: *req.Point, Source: SourceOriginal}
	if geocoder == nil || !req.Point.Valid() {
		return loc, nil
	}

	place, err := geocoder.Reverse(ctx, req.Point.Lat, req.Point.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", req.Point.Lat,
			"lon", req.Point.Lon,
			"error", err,
		)
		loc.Source = SourceFailed
		return loc, nil
	}
	if place.Found() {
		loc.Name = place.DisplayName
		loc.Source = SourceReverse
	}
	return loc, nil
}

func forwardLocation(ctx context.Context, query string, geocoder Geocoder) (Location, error) {
	switch {
	case query == "":
		return Location{}, fmt.Errorf("%w: no point or place query given", ErrInvalidSelection)
	case geocoder == nil:
		return Location{}, fmt.Errorf("%w: place search is disabled, give a point instead of %q", ErrInvalidSelection, query)
	}

	place, err := geocoder.Search(ctx, query)
	if err != nil {
		return Location{}, fmt.Errorf("search place %q: %w", query, err)
	}
	if !place.Found() {
		return Location{}, fmt.Errorf("%w: no place matches %q", ErrInvalidSelection, query)
	}
	return Location{
		Point:  Point{Lat: place.Lat, Lon: place.Lon},
		Name:   place.DisplayName,
		Source: SourceForward,
	}, nil
}
