package risk

import (
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/canopy-watch/internal/domain"
)

// Factor weights for the composite blend. Vegetation dominates: NDVI loss is
// the direct deforestation signal, weather and air quality corroborate.
const (
	vegetationWeight = 0.6
	weatherWeight    = 0.2
	airQualityWeight = 0.2
)

// Confidence contribution per source. A synthetic source counts at half the
// reliability of a measured one.
const (
	satelliteConfidence  = 0.4
	weatherConfidence    = 0.3
	airQualityConfidence = 0.3
	syntheticReliability = 0.5
)

// Confidence is blended 70/30 with the region's previous confidence so one
// degraded fetch does not whipsaw the reported number.
const (
	freshWeight    = 0.7
	previousWeight = 0.3
)

// Composite score thresholds for the risk level.
const (
	highThreshold   = 0.5
	mediumThreshold = 0.3
)

// Scorer derives a risk assessment from a snapshot. Scoring itself is pure;
// the scorer only remembers each region's last confidence for temporal
// smoothing, bounded by an LRU so an unbounded region stream cannot grow it.
type Scorer struct {
	history *lru.Cache[string, float64]
	logger  *slog.Logger
}

// NewScorer creates a Scorer remembering confidence for up to historySize
// regions.
func NewScorer(historySize int, logger *slog.Logger) (*Scorer, error) {
	history, err := lru.New[string, float64](historySize)
	if err != nil {
		return nil, fmt.Errorf("create confidence history: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{history: history, logger: logger}, nil
}

// Score computes the weighted composite risk and smoothed confidence for the
// snapshot.
func (s *Scorer) Score(snapshot domain.Snapshot) domain.RiskAssessment {
	factors := domain.RiskFactors{
		Vegetation: vegetationRisk(snapshot.Satellite.Satellite),
		Weather:    weatherRisk(snapshot.Weather.Weather),
		AirQuality: airQualityRisk(snapshot.AirQuality.AirQuality),
	}

	composite := clamp01(vegetationWeight*factors.Vegetation +
		weatherWeight*factors.Weather +
		airQualityWeight*factors.AirQuality)
	level := levelFor(composite)
	confidence := s.smooth(snapshot.Region.Name, freshConfidence(snapshot))

	s.logger.Debug("risk scored",
		"region", snapshot.Region.Name,
		"composite", composite,
		"level", level,
		"confidence", confidence,
		"real_sources", snapshot.RealSourceCount(),
	)

	return domain.RiskAssessment{
		CompositeScore: composite,
		Level:          level,
		Factors:        factors,
		Confidence:     confidence,
	}
}

// smooth blends the fresh confidence with the region's previous one and
// records the result as the new baseline. Blending equal values is the
// identity, so that case skips the arithmetic and repeated identical
// snapshots score bit-identically.
func (s *Scorer) smooth(region string, fresh float64) float64 {
	confidence := fresh
	if previous, ok := s.history.Get(region); ok && previous != fresh {
		confidence = freshWeight*fresh + previousWeight*previous
	}
	s.history.Add(region, confidence)
	return confidence
}

func freshConfidence(snapshot domain.Snapshot) float64 {
	return satelliteConfidence*reliability(snapshot.Satellite) +
		weatherConfidence*reliability(snapshot.Weather) +
		airQualityConfidence*reliability(snapshot.AirQuality)
}

func reliability(result domain.SourceResult) float64 {
	if result.Synthetic() {
		return syntheticReliability
	}
	return 1
}

func vegetationRisk(sat *domain.SatelliteData) float64 {
	if sat == nil {
		return 0
	}
	return clamp01(sat.VegetationLossPct / 100)
}

func weatherRisk(wx *domain.WeatherData) float64 {
	if wx == nil {
		return 0
	}
	switch wx.CloudImpact {
	case domain.CloudImpactHigh:
		return 0.3
	case domain.CloudImpactMedium:
		return 0.15
	default:
		return 0
	}
}

func airQualityRisk(aq *domain.AirQualityData) float64 {
	if aq == nil {
		return 0
	}
	switch aq.HealthImpact {
	case domain.HealthImpactSevere:
		return 0.3
	case domain.HealthImpactModerate:
		return 0.15
	default:
		return 0
	}
}

func levelFor(composite float64) domain.RiskLevel {
	switch {
	case composite > highThreshold:
		return domain.RiskHigh
	case composite > mediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
