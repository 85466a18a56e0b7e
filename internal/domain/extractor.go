package domain

import "context"

// Extractor performs one point extraction against the remote collection.
//
// Implementations filter by the unit's model, scenario and year range and
// return every matching daily observation at the point. They do not retry,
// convert units or deduplicate. A filter that matches nothing yields an empty
// slice and a nil error. Failures are wrapped with ErrTimeout,
// ErrQuotaExceeded, ErrUnavailable or ErrBadRequest.
type Extractor interface {
	Extract(ctx context.Context, point Point, unit QueryUnit) ([]RawObservation, error)
}

// Counter is an optional Extractor capability that counts matching
// observations without fetching band values.
type Counter interface {
	Count(ctx context.Context, point Point, unit QueryUnit) (int, error)
}
