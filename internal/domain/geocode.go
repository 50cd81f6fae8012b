package domain

import (
	"context"
	"log/slog"
)

// Values of Location.GeoSource.
const (
	GeoSourcePublished = ""
	GeoSourceForward   = "forward"
	GeoSourceReverse   = "reverse"
	GeoSourceFailed    = "failed"
)

// EnrichLocation fills missing coordinates from the address, or a missing country
// code from the coordinates. Published values are never overwritten. If geocoder
// is nil the status is returned unchanged; on failure GeoSource is set to "failed"
// and the status is otherwise untouched.
func EnrichLocation(ctx context.Context, status SpaceStatus, geocoder Geocoder, logger *slog.Logger) SpaceStatus {
	if geocoder == nil {
		return status
	}
	loc := status.Location

	// Forward geocode: address → coordinates.
	if !loc.HasCoordinates() && loc.Address != "" {
		result, err := geocoder.ForwardGeocode(ctx, loc.Address)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"space", status.Space,
				"address", loc.Address,
				"error", err,
			)
			status.Location.GeoSource = GeoSourceFailed
			return status
		}
		if result.Lat == 0 && result.Lon == 0 {
			return status
		}
		lat, lon := result.Lat, result.Lon
		status.Location.Lat = &lat
		status.Location.Lon = &lon
		if status.Location.CountryCode == "" {
			status.Location.CountryCode = result.CountryCode
		}
		status.Location.GeoSource = GeoSourceForward
		return status
	}

	// Reverse geocode: coordinates → country.
	if loc.HasCoordinates() && loc.CountryCode == "" {
		result, err := geocoder.ReverseGeocode(ctx, *loc.Lat, *loc.Lon)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"space", status.Space,
				"lat", *loc.Lat,
				"lon", *loc.Lon,
				"error", err,
			)
			status.Location.GeoSource = GeoSourceFailed
			return status
		}
		if result.CountryCode != "" {
			status.Location.CountryCode = result.CountryCode
			status.Location.GeoSource = GeoSourceReverse
		}
	}
	return status
}
