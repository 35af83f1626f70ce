package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/canopy-watch/internal/resilience"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// analysis service.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec // labels: level={LOW,MEDIUM,HIGH}
	AnalysisDuration prometheus.Histogram

	// Source fetch metrics.
	FetchesTotal  *prometheus.CounterVec   // labels: source={satellite,weather,air_quality}, origin={real,disabled,circuit-open,fallback-from-api-error}
	FetchDuration *prometheus.HistogramVec // labels: source={satellite,weather,air_quality}

	// Circuit breaker state by upstream kind: 0=CLOSED, 1=HALF_OPEN, 2=OPEN.
	BreakerState *prometheus.GaugeVec // labels: kind={satellite,weather,air_quality,ml}

	// ML prediction metrics.
	MLPredictionsTotal *prometheus.CounterVec // labels: status={connected,synthetic}
	MLRequestDuration  prometheus.Histogram

	// Report sink metrics.
	ReportsPublished    prometheus.Counter
	ReportPublishErrors prometheus.Counter

	// Scheduled monitoring metrics.
	MonitorRunning   prometheus.Gauge
	WatchlistRegions prometheus.Gauge
}

// BreakerStateValue maps a breaker state onto the circuit_breaker_state
// gauge scale.
func BreakerStateValue(s resilience.State) float64 {
	switch s {
	case resilience.StateHalfOpen:
		return 1
	case resilience.StateOpen:
		return 2
	default:
		return 0
	}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "analyses_total",
			Help:      "Completed region analyses by resulting risk level.",
		}, []string{"level"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "canopy",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete fetch-score-enhance-assemble run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "source_fetches_total",
			Help:      "Source fetches by kind and data origin.",
		}, []string{"source", "origin"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "canopy",
			Name:      "source_fetch_duration_seconds",
			Help:      "Wall-clock duration of one source fetch including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "canopy",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per upstream kind: 0=CLOSED, 1=HALF_OPEN, 2=OPEN.",
		}, []string{"kind"}),
		MLPredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "ml_predictions_total",
			Help:      "ML enhancement outcomes by status.",
		}, []string{"status"}),
		MLRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "canopy",
			Name:      "ml_request_duration_seconds",
			Help:      "Duration of external model server prediction calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "reports_published_total",
			Help:      "Total reports written to the report topic.",
		}),
		ReportPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "report_publish_errors_total",
			Help:      "Total failed report topic writes.",
		}),
		MonitorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "canopy",
			Name:      "monitor_running",
			Help:      "1 when the scheduled watchlist monitor is active, 0 when stopped.",
		}),
		WatchlistRegions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "canopy",
			Name:      "watchlist_regions",
			Help:      "Number of regions under scheduled monitoring.",
		}),
	}

	prometheus.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.FetchesTotal,
		m.FetchDuration,
		m.BreakerState,
		m.MLPredictionsTotal,
		m.MLRequestDuration,
		m.ReportsPublished,
		m.ReportPublishErrors,
		m.MonitorRunning,
		m.WatchlistRegions,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AnalysesTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "canopy", Name: "analyses_total"}, []string{"level"}),
		AnalysisDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "canopy", Name: "analysis_duration_seconds"}),
		FetchesTotal:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "canopy", Name: "source_fetches_total"}, []string{"source", "origin"}),
		FetchDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "canopy", Name: "source_fetch_duration_seconds"}, []string{"source"}),
		BreakerState:        prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "canopy", Name: "circuit_breaker_state"}, []string{"kind"}),
		MLPredictionsTotal:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "canopy", Name: "ml_predictions_total"}, []string{"status"}),
		MLRequestDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "canopy", Name: "ml_request_duration_seconds"}),
		ReportsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "canopy", Name: "reports_published_total"}),
		ReportPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "canopy", Name: "report_publish_errors_total"}),
		MonitorRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "canopy", Name: "monitor_running"}),
		WatchlistRegions:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "canopy", Name: "watchlist_regions"}),
	}
}
