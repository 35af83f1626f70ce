package domain

import (
	"errors"
	"fmt"
	"math"
)

// MaxRegionSizeKm caps the analyzable area. Larger boxes exceed what a single
// reflectance-statistics request can cover upstream.
const MaxRegionSizeKm = 100.0

// Validation sentinels, checked with errors.Is at the HTTP boundary.
var (
	ErrEmptyRegionName    = errors.New("region name is empty")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidRegionSize  = errors.New("invalid region size")
)

// Region identifies the geographic area under analysis: a named center point
// and the side length, in kilometers, of the square around it.
type Region struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	SizeKm float64 `json:"size_km"`
}

// Validate rejects malformed regions before they reach the pipeline. This is
// the only error class the analysis surface ever returns to callers; every
// failure past this point degrades to synthetic data instead.
func (r Region) Validate() error {
	if r.Name == "" {
		return ErrEmptyRegionName
	}
	if math.IsNaN(r.Lat) || math.IsInf(r.Lat, 0) || math.IsNaN(r.Lon) || math.IsInf(r.Lon, 0) {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, r.Lat, r.Lon)
	}
	if r.Lat < -90 || r.Lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinates, r.Lat)
	}
	if r.Lon < -180 || r.Lon > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinates, r.Lon)
	}
	if math.IsNaN(r.SizeKm) || r.SizeKm <= 0 || r.SizeKm > MaxRegionSizeKm {
		return fmt.Errorf("%w: size %v outside (0, %v]", ErrInvalidRegionSize, r.SizeKm, MaxRegionSizeKm)
	}
	return nil
}
