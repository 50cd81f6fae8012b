package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	CountryCode      string  // ISO 3166-1 alpha-2, upper case
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder fills gaps in the location a space publishes.
type Geocoder interface {
	// ForwardGeocode converts a postal address to coordinates.
	ForwardGeocode(ctx context.Context, address string) (GeocodingResult, error)

	// ReverseGeocode converts coordinates to place details, including the country.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
