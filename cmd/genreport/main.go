// Command genreport generates analysis report fixtures from a watchlist
// file. It runs the actual analysis pipeline with every upstream source
// disabled, so the fixture reports carry the same generated payloads, scores,
// and insights the service produces in fully degraded mode.
//
// Usage:
//
//	go run ./cmd/genreport \
//	  -watchlist config/watchlist.yaml \
//	  -out data/fixtures/reports.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/canopy-watch/internal/config"
	"github.com/couchcryptid/canopy-watch/internal/domain"
	"github.com/couchcryptid/canopy-watch/internal/enhance"
	"github.com/couchcryptid/canopy-watch/internal/fetch"
	"github.com/couchcryptid/canopy-watch/internal/observability"
	"github.com/couchcryptid/canopy-watch/internal/pipeline"
	"github.com/couchcryptid/canopy-watch/internal/risk"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	watchlist := flag.String("watchlist", "", "path to the watchlist YAML file")
	out := flag.String("out", "", "output path for the report JSON fixture")
	flag.Parse()

	if *watchlist == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -watchlist, -out")
	}

	// Set a fixed clock for reproducible snapshot and report timestamps.
	// Report IDs are freshly drawn per run; the payloads and scores are
	// coordinate-seeded and stay stable.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	watched, err := config.LoadWatchlist(*watchlist)
	if err != nil {
		return err
	}
	regions := config.Regions(watched)
	log.Printf("watchlist: %d regions", len(regions))

	p, err := degradedPipeline()
	if err != nil {
		return err
	}

	reports, err := p.AnalyzeBatch(context.Background(), regions)
	if err != nil {
		return fmt.Errorf("analyzing watchlist: %w", err)
	}

	if err := writeJSON(*out, reports); err != nil {
		return fmt.Errorf("writing report fixture: %w", err)
	}
	log.Printf("wrote report fixture: %s", *out)

	printStats(reports)
	return nil
}

// degradedPipeline assembles the analysis pipeline with every source and the
// model server disabled, the exact configuration the service degrades to when
// no upstream is reachable.
func degradedPipeline() (*pipeline.Pipeline, error) {
	logger := observability.NewLogger("text", "warn")
	metrics := observability.NewMetrics()

	disabled := fetch.Options{Metrics: metrics, Logger: logger}
	aggregator := fetch.NewAggregator(
		fetch.NewSatellite(nil, disabled),
		fetch.NewWeather(nil, disabled),
		fetch.NewAirQuality(nil, disabled),
		logger,
	)

	scorer, err := risk.NewScorer(1024, logger)
	if err != nil {
		return nil, err
	}

	enhancer := enhance.New(nil, enhance.Options{Metrics: metrics, Logger: logger})

	return pipeline.New(aggregator, scorer, enhancer, pipeline.Options{
		Metrics: metrics,
		Logger:  logger,
	})
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(reports []domain.Report) {
	levelCounts := map[domain.RiskLevel]int{}
	var confidenceSum, compositeMin, compositeMax float64
	compositeMin = 1
	for i := range reports {
		r := &reports[i]
		levelCounts[r.Risk.Level]++
		confidenceSum += r.Risk.Confidence
		if r.Risk.CompositeScore < compositeMin {
			compositeMin = r.Risk.CompositeScore
		}
		if r.Risk.CompositeScore > compositeMax {
			compositeMax = r.Risk.CompositeScore
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(reports))
	fmt.Printf("By level: LOW=%d, MEDIUM=%d, HIGH=%d\n",
		levelCounts[domain.RiskLow], levelCounts[domain.RiskMedium], levelCounts[domain.RiskHigh])
	fmt.Printf("Composite range: %g .. %g\n", compositeMin, compositeMax)
	if len(reports) > 0 {
		fmt.Printf("Mean confidence: %.3f\n", confidenceSum/float64(len(reports)))
	}

	printFirstReport(reports)
}

func printFirstReport(reports []domain.Report) {
	if len(reports) == 0 {
		return
	}
	r := &reports[0]
	sat := r.Snapshot.Satellite.Satellite
	aq := r.Snapshot.AirQuality.AirQuality

	fmt.Printf("\nFirst report:\n")
	fmt.Printf("  Region: %s (%g, %g, %g km)\n", r.Region.Name, r.Region.Lat, r.Region.Lon, r.Region.SizeKm)
	fmt.Printf("  Composite: %g, Level: %s\n", r.Risk.CompositeScore, r.Risk.Level)
	fmt.Printf("  Factors: vegetation=%g, weather=%g, air_quality=%g\n",
		r.Risk.Factors.Vegetation, r.Risk.Factors.Weather, r.Risk.Factors.AirQuality)
	fmt.Printf("  Confidence: %g\n", r.Risk.Confidence)
	if sat != nil {
		fmt.Printf("  NDVI: %g (change %g, loss %g%%)\n", sat.NDVI, sat.NDVIChange, sat.VegetationLossPct)
	}
	if aq != nil {
		fmt.Printf("  AQI: %d (%s)\n", aq.AQI, aq.HealthImpact)
	}
	fmt.Printf("  ML: status=%s, probability=%g, label=%s\n",
		r.ML.Status, r.ML.DeforestationProbability, r.ML.RiskLabel)
	fmt.Printf("  GeneratedAt: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("  Degraded sources: %d\n", len(r.DegradedSources()))
}
