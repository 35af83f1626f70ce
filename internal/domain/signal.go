package domain

import (
	"encoding/json"
	"time"
)

// Duration serializes as integer milliseconds, the unit downstream consumers
// (dashboards, the sink topic schema) expect for execution times.
type Duration time.Duration

// MarshalJSON renders the duration as whole milliseconds.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

// UnmarshalJSON accepts integer milliseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// SourceKind names one upstream signal class. Each kind owns its own circuit
// breaker; an outage in one must not degrade the others.
type SourceKind string

const (
	SourceSatellite  SourceKind = "satellite"
	SourceWeather    SourceKind = "weather"
	SourceAirQuality SourceKind = "air_quality"
	SourceML         SourceKind = "ml"
)

// SourceKinds lists the three snapshot signals in aggregation order.
// SourceML is a kind for breaker bookkeeping only; it never appears in a
// Snapshot.
var SourceKinds = []SourceKind{SourceSatellite, SourceWeather, SourceAirQuality}

// Origin tags how a SourceResult's payload was produced. See the package
// documentation for the taxonomy.
type Origin string

const (
	OriginReal             Origin = "real"
	OriginDisabled         Origin = "disabled"
	OriginCircuitOpen      Origin = "circuit-open"
	OriginFallbackAPIError Origin = "fallback-from-api-error"
)

// Synthetic reports whether the payload was generated rather than measured.
func (o Origin) Synthetic() bool { return o != OriginReal }

// Quality grades how much a payload should be trusted.
type Quality string

const (
	QualityHigh   Quality = "HIGH"
	QualityMedium Quality = "MEDIUM"
	QualityLow    Quality = "LOW"
)

// CloudImpact classifies how strongly cloud cover degrades optical satellite
// observation and elevates fire/stress conditions in the risk model.
type CloudImpact string

const (
	CloudImpactLow    CloudImpact = "LOW"
	CloudImpactMedium CloudImpact = "MEDIUM"
	CloudImpactHigh   CloudImpact = "HIGH"
)

// HealthImpact classifies air quality by its effect on the population.
type HealthImpact string

const (
	HealthImpactMinimal  HealthImpact = "MINIMAL"
	HealthImpactModerate HealthImpact = "MODERATE"
	HealthImpactSevere   HealthImpact = "SEVERE"
)

// SatelliteData holds reflectance-band statistics for the region and the
// vegetation indices derived from them. All bands are mean reflectance in
// [0, 1]; NDVI values are in [-1, 1]; percentages in [0, 100].
type SatelliteData struct {
	NDVI              float64   `json:"ndvi"`
	PreviousNDVI      float64   `json:"ndvi_prev"`
	NDVIChange        float64   `json:"ndvi_change"`
	VegetationLossPct float64   `json:"vegetation_loss_pct"`
	RedBand           float64   `json:"red_band"`
	NIRBand           float64   `json:"nir_band"`
	BlueBand          float64   `json:"blue_band"`
	GreenBand         float64   `json:"green_band"`
	CloudCoverPct     float64   `json:"cloud_cover_pct"`
	SceneID           string    `json:"scene_id,omitempty"`
	CapturedAt        time.Time `json:"captured_at,omitempty"`
}

// WeatherData holds current conditions at the region's center.
type WeatherData struct {
	TemperatureC    float64     `json:"temperature_c"`
	HumidityPct     float64     `json:"humidity_pct"`
	WindSpeedMS     float64     `json:"wind_speed_ms"`
	PrecipitationMM float64     `json:"precipitation_mm"`
	CloudCoverPct   float64     `json:"cloud_cover_pct"`
	CloudImpact     CloudImpact `json:"cloud_impact"`
	Station         string      `json:"station,omitempty"`
}

// AirQualityData holds pollutant concentrations (µg/m³) and the composite AQI.
type AirQualityData struct {
	AQI          int          `json:"aqi"`
	PM25         float64      `json:"pm25"`
	PM10         float64      `json:"pm10"`
	O3           float64      `json:"o3"`
	NO2          float64      `json:"no2"`
	HealthImpact HealthImpact `json:"health_impact"`
}

// SourceResult is the normalized outcome of one source fetch. Exactly one
// payload pointer is set, matching Kind. Results are created fresh per fetch
// and never mutated after being returned.
type SourceResult struct {
	Kind       SourceKind      `json:"kind"`
	Origin     Origin          `json:"origin"`
	Quality    Quality         `json:"quality"`
	Satellite  *SatelliteData  `json:"satellite,omitempty"`
	Weather    *WeatherData    `json:"weather,omitempty"`
	AirQuality *AirQualityData `json:"air_quality,omitempty"`
	FetchedAt  time.Time       `json:"fetched_at"`
}

// Synthetic reports whether this result carries generated data.
func (r SourceResult) Synthetic() bool { return r.Origin.Synthetic() }

// Snapshot aggregates the three source results for one analysis request.
// Built once by the aggregator and read-only afterwards.
type Snapshot struct {
	Region        Region       `json:"region"`
	Satellite     SourceResult `json:"satellite"`
	Weather       SourceResult `json:"weather"`
	AirQuality    SourceResult `json:"air_quality"`
	ExecutionTime Duration     `json:"execution_time_ms"`
	TakenAt       time.Time    `json:"taken_at"`
}

// NewSnapshot assembles a snapshot, stamping it with the package clock.
func NewSnapshot(region Region, sat, wx, aq SourceResult, execution time.Duration) Snapshot {
	return Snapshot{
		Region:        region,
		Satellite:     sat,
		Weather:       wx,
		AirQuality:    aq,
		ExecutionTime: Duration(execution),
		TakenAt:       clock.Now(),
	}
}

// RealSourceCount returns how many of the three signals carry measured data.
func (s Snapshot) RealSourceCount() int {
	n := 0
	for _, r := range []SourceResult{s.Satellite, s.Weather, s.AirQuality} {
		if !r.Synthetic() {
			n++
		}
	}
	return n
}

// DeriveCloudImpact maps cloud cover percentage to its risk classification.
// Above 70% optical observation is effectively blind; 30–70% materially
// degrades NDVI reliability.
func DeriveCloudImpact(cloudCoverPct float64) CloudImpact {
	switch {
	case cloudCoverPct >= 70:
		return CloudImpactHigh
	case cloudCoverPct >= 30:
		return CloudImpactMedium
	default:
		return CloudImpactLow
	}
}

// DeriveHealthImpact maps AQI to its population-impact classification using
// the EPA breakpoints: ≤100 good-to-moderate, 101–150 unhealthy for
// sensitive groups, >150 unhealthy for everyone.
func DeriveHealthImpact(aqi int) HealthImpact {
	switch {
	case aqi > 150:
		return HealthImpactSevere
	case aqi > 100:
		return HealthImpactModerate
	default:
		return HealthImpactMinimal
	}
}
