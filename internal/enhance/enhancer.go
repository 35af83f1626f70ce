package enhance

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/canopy-watch/internal/domain"
	"github.com/couchcryptid/canopy-watch/internal/observability"
	"github.com/couchcryptid/canopy-watch/internal/resilience"
)

// Ensemble probabilities per assessed risk level, used whenever the model
// server cannot answer. The connected path maps the model's own risk level
// through the same table so the probability scale stays comparable across
// statuses.
const (
	highProbability   = 0.85
	mediumProbability = 0.55
	lowProbability    = 0.25
)

// Options configures the enhancer. Breaker and Retrier default when nil; the
// retrier must be built around the same breaker.
type Options struct {
	Enabled bool
	Breaker *resilience.Breaker
	Retrier *resilience.Retrier
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Enhancer augments a risk assessment with model predictions. Enhance never
// fails: when the model server is disabled, circuit-broken, or down, it
// substitutes a deterministic ensemble derived from the assessment and tags
// the insights accordingly.
type Enhancer struct {
	predictor domain.Predictor
	enabled   bool
	breaker   *resilience.Breaker
	retrier   *resilience.Retrier
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New creates an Enhancer around predictor.
func New(predictor domain.Predictor, opts Options) *Enhancer {
	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.BreakerConfig{})
	}
	retrier := opts.Retrier
	if retrier == nil {
		retrier = resilience.NewRetrier(resilience.RetrierConfig{Breaker: breaker, Logger: opts.Logger})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{
		predictor: predictor,
		enabled:   opts.Enabled,
		breaker:   breaker,
		retrier:   retrier,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// Breaker exposes the ML circuit breaker for status reporting and operator
// resets.
func (e *Enhancer) Breaker() *resilience.Breaker { return e.breaker }

// Enhance returns model insights for the assessment. The result always
// carries a status tag telling whether the model server answered or the
// ensemble substituted for it.
func (e *Enhancer) Enhance(ctx context.Context, assessment domain.RiskAssessment, snapshot domain.Snapshot) domain.MLInsights {
	insights := e.enhance(ctx, assessment, snapshot)

	e.metrics.MLPredictionsTotal.WithLabelValues(string(insights.Status)).Inc()
	e.metrics.BreakerState.WithLabelValues(string(domain.SourceML)).Set(observability.BreakerStateValue(e.breaker.Status().State))

	return insights
}

func (e *Enhancer) enhance(ctx context.Context, assessment domain.RiskAssessment, snapshot domain.Snapshot) domain.MLInsights {
	if !e.enabled || e.predictor == nil {
		return e.ensemble(assessment, snapshot)
	}

	if !e.breaker.Allow() {
		e.logger.Warn("ml circuit open, serving ensemble insights", "region", snapshot.Region.Name)
		return e.ensemble(assessment, snapshot)
	}

	var pred domain.Prediction
	err := e.retrier.Do(ctx, "ml prediction", func(ctx context.Context) error {
		start := time.Now()
		p, callErr := e.predictor.PredictAll(ctx, snapshot)
		e.metrics.MLRequestDuration.Observe(time.Since(start).Seconds())
		if callErr != nil {
			return callErr
		}
		pred = p
		return nil
	})
	if err != nil {
		e.logger.Error("ml prediction failed, serving ensemble insights",
			"region", snapshot.Region.Name,
			"error", err,
		)
		return e.ensemble(assessment, snapshot)
	}

	return domain.MLInsights{
		Status:                   domain.MLStatusConnected,
		DeforestationProbability: probabilityForModelLevel(pred.RiskLevel),
		NDVIForecast:             pred.NDVIForecast,
		ChangeDetected:           pred.ChangeDetected,
		ChangeConfidence:         pred.ChangeConfidence,
		RiskLabel:                pred.RiskLabel,
		ModelConfidence:          pred.Confidence,
	}
}

// ensemble derives insights from the local assessment alone. Probability and
// change flags follow the assessed level; the NDVI forecast extrapolates the
// snapshot's observed trend.
func (e *Enhancer) ensemble(assessment domain.RiskAssessment, snapshot domain.Snapshot) domain.MLInsights {
	probability := probabilityForLevel(assessment.Level)
	return domain.MLInsights{
		Status:                   domain.MLStatusSynthetic,
		DeforestationProbability: probability,
		NDVIForecast:             forecastNDVI(snapshot.Satellite.Satellite),
		ChangeDetected:           assessment.Level != domain.RiskLow,
		ChangeConfidence:         probability,
		RiskLabel:                labelForLevel(assessment.Level),
		ModelConfidence:          assessment.Confidence,
	}
}

func probabilityForLevel(level domain.RiskLevel) float64 {
	switch level {
	case domain.RiskHigh:
		return highProbability
	case domain.RiskMedium:
		return mediumProbability
	default:
		return lowProbability
	}
}

// probabilityForModelLevel maps the classifier's 0/1/2 risk level onto the
// shared probability table.
func probabilityForModelLevel(level int) float64 {
	switch level {
	case 2:
		return highProbability
	case 1:
		return mediumProbability
	default:
		return lowProbability
	}
}

// labelForLevel renders the level in the model server's label vocabulary.
func labelForLevel(level domain.RiskLevel) string {
	switch level {
	case domain.RiskHigh:
		return "High"
	case domain.RiskMedium:
		return "Medium"
	default:
		return "Low"
	}
}

// forecastNDVI extrapolates the observed NDVI trend one period forward,
// bounded to the valid index range.
func forecastNDVI(sat *domain.SatelliteData) float64 {
	if sat == nil {
		return 0
	}
	forecast := sat.NDVI + sat.NDVIChange
	if forecast > 1 {
		return 1
	}
	if forecast < -1 {
		return -1
	}
	return forecast
}
