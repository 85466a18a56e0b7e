package domain

import "context"

// Place is a named location returned by a geocoding provider.
type Place struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
}

// Found reports whether the provider matched anything.
func (p Place) Found() bool { return p.DisplayName != "" }

// Geocoder resolves place names for a selection's point.
type Geocoder interface {
	// Search converts a free-text place query to coordinates.
	Search(ctx context.Context, query string) (Place, error)

	// Reverse converts coordinates to a human-readable place name.
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
}
