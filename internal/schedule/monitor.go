package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/canopy-watch/internal/domain"
	"github.com/couchcryptid/canopy-watch/internal/observability"
)

// defaultSweepTimeout bounds one full watchlist pass. Generous because a
// sweep over a degraded stack pays retry backoff for every region.
const defaultSweepTimeout = 10 * time.Minute

// BatchAnalyzer runs one analysis per region and returns the reports.
type BatchAnalyzer interface {
	AnalyzeBatch(ctx context.Context, regions []domain.Region) ([]domain.Report, error)
}

// Entry names one region to watch. Schedule, when set, overrides
// Options.Schedule for this region alone.
type Entry struct {
	Region   domain.Region
	Schedule string
}

// Options configures the Monitor. Schedule is the default cadence for
// entries without their own; both accept standard cron expressions and
// descriptors like "@hourly" or "@every 30m".
type Options struct {
	Schedule     string
	SweepTimeout time.Duration
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// Monitor re-analyzes the watchlist regions on cron schedules, one job per
// distinct cadence. Sweep results flow through the same pipeline as
// on-demand requests, so they land in the same latest-report store, report
// topic, and metrics.
type Monitor struct {
	analyzer BatchAnalyzer
	regions  []domain.Region
	cron     *cron.Cron
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewMonitor validates the schedules and prepares one sweep job per distinct
// cadence. Nothing runs until Start.
func NewMonitor(analyzer BatchAnalyzer, entries []Entry, opts Options) (*Monitor, error) {
	timeout := opts.SweepTimeout
	if timeout <= 0 {
		timeout = defaultSweepTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		analyzer: analyzer,
		cron:     cron.New(),
		timeout:  timeout,
		metrics:  opts.Metrics,
		logger:   logger,
	}

	groups := make(map[string][]domain.Region)
	for _, e := range entries {
		schedule := e.Schedule
		if schedule == "" {
			schedule = opts.Schedule
		}
		groups[schedule] = append(groups[schedule], e.Region)
		m.regions = append(m.regions, e.Region)
	}
	for schedule, regions := range groups {
		if _, err := m.cron.AddFunc(schedule, func() { m.sweep(regions) }); err != nil {
			return nil, fmt.Errorf("invalid monitor schedule %q: %w", schedule, err)
		}
	}
	return m, nil
}

// Start begins scheduled sweeps and kicks off a full sweep immediately, so
// every watched region has a report without waiting out its first interval.
func (m *Monitor) Start() {
	m.metrics.MonitorRunning.Set(1)
	m.metrics.WatchlistRegions.Set(float64(len(m.regions)))
	m.cron.Start()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sweep(m.regions)
	}()

	m.logger.Info("watchlist monitor started", "regions", len(m.regions))
}

// Stop halts scheduling and waits for any running sweep to finish.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
	m.wg.Wait()
	m.metrics.MonitorRunning.Set(0)
	m.logger.Info("watchlist monitor stopped")
}

// sweep runs one pass over the given regions.
func (m *Monitor) sweep(regions []domain.Region) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	reports, err := m.analyzer.AnalyzeBatch(ctx, regions)
	if err != nil {
		// Watchlist entries are validated at load; reaching this means the
		// list changed underneath us or the sweep deadline fired.
		m.logger.Error("watchlist sweep failed", "error", err)
		return
	}

	degraded := 0
	for _, report := range reports {
		if len(report.DegradedSources()) > 0 {
			degraded++
		}
	}
	m.logger.Info("watchlist sweep complete",
		"regions", len(reports),
		"degraded", degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
