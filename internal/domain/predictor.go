package domain

import "context"

// Prediction contains the model outputs returned by the prediction service
// for one snapshot.
type Prediction struct {
	NDVIForecast     float64
	ChangeDetected   bool
	ChangeConfidence float64 // 0.0–1.0 change-model confidence
	RiskLevel        int     // 0=Low, 1=Medium, 2=High
	RiskLabel        string
	Confidence       float64 // 0.0–1.0 risk-model confidence
}

// Predictor produces model-backed deforestation insights from a snapshot.
type Predictor interface {
	// PredictAll runs every model head against the snapshot's features.
	PredictAll(ctx context.Context, snapshot Snapshot) (Prediction, error)

	// Health reports whether the prediction service is reachable and has
	// its models loaded.
	Health(ctx context.Context) error
}
