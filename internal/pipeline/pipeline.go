package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/canopy-watch/internal/domain"
	"github.com/couchcryptid/canopy-watch/internal/enhance"
	"github.com/couchcryptid/canopy-watch/internal/fetch"
	"github.com/couchcryptid/canopy-watch/internal/observability"
	"github.com/couchcryptid/canopy-watch/internal/resilience"
	"github.com/couchcryptid/canopy-watch/internal/risk"
)

const (
	defaultAnalysisTimeout = 45 * time.Second
	defaultLatestSize      = 256
)

// ReportPublisher delivers completed reports to downstream consumers.
type ReportPublisher interface {
	Publish(ctx context.Context, report domain.Report) error
}

// Options configures the analysis pipeline. Publisher may be nil when no
// report sink is wired.
type Options struct {
	Publisher       ReportPublisher
	AnalysisTimeout time.Duration
	LatestSize      int
	Metrics         *observability.Metrics
	Logger          *slog.Logger
}

// Pipeline orchestrates one analysis run: fetch the three sources, score the
// snapshot, enhance with model insights, assemble the report. Every stage
// absorbs its own upstream failures, so Analyze only fails on invalid input.
type Pipeline struct {
	aggregator *fetch.Aggregator
	scorer     *risk.Scorer
	enhancer   *enhance.Enhancer
	publisher  ReportPublisher
	latest     *lru.Cache[string, domain.Report]
	timeout    time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
	ready      atomic.Bool
}

// New creates a Pipeline over the given stages.
func New(aggregator *fetch.Aggregator, scorer *risk.Scorer, enhancer *enhance.Enhancer, opts Options) (*Pipeline, error) {
	size := opts.LatestSize
	if size <= 0 {
		size = defaultLatestSize
	}
	latest, err := lru.New[string, domain.Report](size)
	if err != nil {
		return nil, fmt.Errorf("create report store: %w", err)
	}

	timeout := opts.AnalysisTimeout
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		aggregator: aggregator,
		scorer:     scorer,
		enhancer:   enhancer,
		publisher:  opts.Publisher,
		latest:     latest,
		timeout:    timeout,
		metrics:    opts.Metrics,
		logger:     logger,
	}, nil
}

// CheckReadiness returns nil once at least one analysis has completed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no analysis has completed yet")
	}
	return nil
}

// Analyze runs the full fetch-score-enhance-assemble sequence for one
// region. The only error it returns is input validation; any upstream
// degradation is recorded inside the report instead.
func (p *Pipeline) Analyze(ctx context.Context, region domain.Region) (domain.Report, error) {
	if err := region.Validate(); err != nil {
		return domain.Report{}, fmt.Errorf("invalid region: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	snapshot := p.aggregator.Snapshot(ctx, region)
	assessment := p.scorer.Score(snapshot)
	insights := p.enhancer.Enhance(ctx, assessment, snapshot)
	report := domain.NewReport(snapshot, assessment, insights)

	p.metrics.AnalysesTotal.WithLabelValues(string(assessment.Level)).Inc()
	p.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	p.latest.Add(region.Name, report)
	p.ready.Store(true)

	p.logger.Info("analysis complete",
		"region", region.Name,
		"report_id", report.ID,
		"level", assessment.Level,
		"composite", assessment.CompositeScore,
		"confidence", assessment.Confidence,
		"real_sources", snapshot.RealSourceCount(),
		"ml_status", insights.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	p.publish(ctx, report)
	return report, nil
}

// AnalyzeBatch fans out one analysis per region and returns the reports in
// input order. All regions are validated up front; past that point regions
// fail independently only by degrading, never by erroring.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, regions []domain.Region) ([]domain.Report, error) {
	for i, region := range regions {
		if err := region.Validate(); err != nil {
			return nil, fmt.Errorf("region %d (%q): %w", i, region.Name, err)
		}
	}

	reports := make([]domain.Report, len(regions))
	var wg sync.WaitGroup
	for i, region := range regions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := p.Analyze(ctx, region)
			if err != nil {
				// Regions were validated above; log and leave the slot zeroed.
				p.logger.Error("batch analysis failed", "region", region.Name, "error", err)
				return
			}
			reports[i] = report
		}()
	}
	wg.Wait()

	return reports, nil
}

// Latest returns the most recent report for the region, if one is retained.
func (p *Pipeline) Latest(regionName string) (domain.Report, bool) {
	return p.latest.Get(regionName)
}

// Breakers returns the circuit breakers keyed by upstream kind: the three
// sources plus the model server.
func (p *Pipeline) Breakers() map[domain.SourceKind]*resilience.Breaker {
	breakers := make(map[domain.SourceKind]*resilience.Breaker, 4)
	for kind, f := range p.aggregator.Fetchers() {
		breakers[kind] = f.Breaker()
	}
	breakers[domain.SourceML] = p.enhancer.Breaker()
	return breakers
}

// BreakerStatus reports every breaker's state for the operator surface.
func (p *Pipeline) BreakerStatus() map[domain.SourceKind]resilience.Status {
	statuses := make(map[domain.SourceKind]resilience.Status, 4)
	for kind, breaker := range p.Breakers() {
		statuses[kind] = breaker.Status()
	}
	return statuses
}

// ResetBreaker force-closes the breaker for the given upstream kind.
func (p *Pipeline) ResetBreaker(kind domain.SourceKind) error {
	breaker, ok := p.Breakers()[kind]
	if !ok {
		return fmt.Errorf("unknown breaker kind %q", kind)
	}
	breaker.Reset()
	p.metrics.BreakerState.WithLabelValues(string(kind)).Set(observability.BreakerStateValue(resilience.StateClosed))
	p.logger.Info("circuit breaker reset", "kind", kind)
	return nil
}

func (p *Pipeline) publish(ctx context.Context, report domain.Report) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, report); err != nil {
		p.metrics.ReportPublishErrors.Inc()
		p.logger.Error("report publish failed",
			"region", report.Region.Name,
			"report_id", report.ID,
			"error", err,
		)
		return
	}
	p.metrics.ReportsPublished.Inc()
}
