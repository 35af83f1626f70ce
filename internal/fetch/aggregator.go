package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/canopy-watch/internal/domain"
)

// Aggregator joins the three source fetchers into one snapshot per request.
type Aggregator struct {
	satellite  *Fetcher
	weather    *Fetcher
	airQuality *Fetcher
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator over the three source fetchers.
func NewAggregator(satellite, weather, airQuality *Fetcher, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		satellite:  satellite,
		weather:    weather,
		airQuality: airQuality,
		logger:     logger,
	}
}

// Fetchers returns the aggregator's fetchers keyed by kind, for breaker
// status reporting.
func (a *Aggregator) Fetchers() map[domain.SourceKind]*Fetcher {
	return map[domain.SourceKind]*Fetcher{
		domain.SourceSatellite:  a.satellite,
		domain.SourceWeather:    a.weather,
		domain.SourceAirQuality: a.airQuality,
	}
}

// Snapshot fetches all three sources concurrently and joins them. It never
// fails; each degraded source arrives tagged in its result, and the snapshot
// records the wall-clock cost of the join.
func (a *Aggregator) Snapshot(ctx context.Context, region domain.Region) domain.Snapshot {
	start := time.Now()

	var sat, wx, aq domain.SourceResult
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		sat = a.satellite.Fetch(ctx, region)
	}()
	go func() {
		defer wg.Done()
		wx = a.weather.Fetch(ctx, region)
	}()
	go func() {
		defer wg.Done()
		aq = a.airQuality.Fetch(ctx, region)
	}()
	wg.Wait()

	snapshot := domain.NewSnapshot(region, sat, wx, aq, time.Since(start))
	a.logger.Debug("snapshot assembled",
		"region", region.Name,
		"real_sources", snapshot.RealSourceCount(),
		"duration_ms", time.Duration(snapshot.ExecutionTime).Milliseconds(),
	)
	return snapshot
}
