package domain

import "context"

// SatelliteProvider supplies reflectance statistics for a region from an
// imagery backend.
type SatelliteProvider interface {
	// Reflectance returns the latest scene statistics covering the region.
	Reflectance(ctx context.Context, region Region) (*SatelliteData, error)
}

// WeatherProvider supplies current surface conditions for a region.
type WeatherProvider interface {
	// Conditions returns the current weather observation nearest the
	// region's center.
	Conditions(ctx context.Context, region Region) (*WeatherData, error)
}

// AirQualityProvider supplies pollutant readings for a region.
type AirQualityProvider interface {
	// Reading returns the reading from the station nearest the region's
	// center.
	Reading(ctx context.Context, region Region) (*AirQualityData, error)
}
