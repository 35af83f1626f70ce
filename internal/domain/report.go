package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the categorical risk classification of a region.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskFactors itemizes each signal's contribution before weighting.
type RiskFactors struct {
	Vegetation float64 `json:"vegetation"`
	Weather    float64 `json:"weather"`
	AirQuality float64 `json:"air_quality"`
}

// RiskAssessment is the scored view of one Snapshot. Recomputed per request,
// never cached or mutated.
type RiskAssessment struct {
	CompositeScore float64     `json:"composite_score"`
	Level          RiskLevel   `json:"level"`
	Factors        RiskFactors `json:"factors"`
	Confidence     float64     `json:"confidence"`
}

// MLStatus tags whether ML insights came from the model server or were
// substituted locally.
type MLStatus string

const (
	MLStatusConnected MLStatus = "connected"
	MLStatusSynthetic MLStatus = "synthetic"
)

// MLInsights carries the model server's predictions, or the synthetic
// ensemble derived from the risk assessment when the server is unreachable.
// The shape is identical either way; Status is the only discriminator.
type MLInsights struct {
	Status                   MLStatus `json:"status"`
	DeforestationProbability float64  `json:"deforestation_probability"`
	NDVIForecast             float64  `json:"ndvi_forecast"`
	ChangeDetected           bool     `json:"change_detected"`
	ChangeConfidence         float64  `json:"change_confidence"`
	RiskLabel                string   `json:"risk_label"`
	ModelConfidence          float64  `json:"model_confidence"`
}

// Report is the externally visible product of one analysis: the snapshot,
// its risk assessment, and ML insights. Success is always true; upstream
// failures surface as synthetic origins and reduced confidence, not errors.
type Report struct {
	ID          string         `json:"id"`
	Region      Region         `json:"region"`
	Snapshot    Snapshot       `json:"snapshot"`
	Risk        RiskAssessment `json:"risk"`
	ML          MLInsights     `json:"ml"`
	Success     bool           `json:"success"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// NewReport assembles the final report, assigning it a fresh ID and stamping
// it with the package clock.
func NewReport(snapshot Snapshot, risk RiskAssessment, ml MLInsights) Report {
	return Report{
		ID:          uuid.NewString(),
		Region:      snapshot.Region,
		Snapshot:    snapshot,
		Risk:        risk,
		ML:          ml,
		Success:     true,
		GeneratedAt: clock.Now(),
	}
}

// DegradedSources lists the kinds whose data is synthetic, for log fields and
// report headers. Empty means a fully real snapshot.
func (r Report) DegradedSources() []SourceKind {
	var kinds []SourceKind
	for _, res := range []SourceResult{r.Snapshot.Satellite, r.Snapshot.Weather, r.Snapshot.AirQuality} {
		if res.Synthetic() {
			kinds = append(kinds, res.Kind)
		}
	}
	return kinds
}
