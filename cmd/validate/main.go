// Command validate performs configuration and data integrity checks for a
// canopy-watch deployment: environment configuration, watchlist contents,
// generated-payload determinism, and risk scoring alignment against known
// snapshots.
//
// Usage:
//
//	go run ./cmd/validate -watchlist config/watchlist.yaml
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/canopy-watch/internal/config"
	"github.com/couchcryptid/canopy-watch/internal/domain"
	"github.com/couchcryptid/canopy-watch/internal/risk"
	"github.com/couchcryptid/canopy-watch/internal/synthetic"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	watchlist := flag.String("watchlist", "", "path to the watchlist YAML file")
	flag.Parse()

	if *watchlist == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*watchlist); code != 0 {
		os.Exit(code)
	}
}

func run(watchlistPath string) int {
	fmt.Println("=== Canopy Watch Deployment Validation ===")
	fmt.Println()

	watched, err := config.LoadWatchlist(watchlistPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load watchlist: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateEnvironment(),
		validateWatchlist(watched),
		validateDeterminism(config.Regions(watched)),
		validateScoring(),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Checked: %d watchlist regions, %d scoring cases\n", len(watched), len(scoringCases))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Environment Configuration ──
// Validates that the service configuration loads and is internally consistent.

func validateEnvironment() *phase {
	p := &phase{name: "Phase 1: Environment Configuration"}

	cfg, err := config.Load()
	if err != nil {
		p.errorf("load config: %v", err)
		return p
	}

	fmt.Printf("  Sources: satellite=%t weather=%t air_quality=%t ml=%t kafka=%t monitor=%t\n",
		cfg.Satellite.Enabled, cfg.Weather.Enabled, cfg.AirQuality.Enabled,
		cfg.MLEnabled, cfg.KafkaEnabled, cfg.MonitorEnabled())

	if cfg.MLEnabled && cfg.MLURL == "" {
		p.errorf("ML_ENABLED is true but ML_API_URL is not set")
	}
	if cfg.MonitorEnabled() {
		if _, err := os.Stat(cfg.WatchlistPath); err != nil {
			p.errorf("WATCHLIST_PATH %q: %v", cfg.WatchlistPath, err)
		}
	}
	if !cfg.Satellite.Enabled && !cfg.Weather.Enabled && !cfg.AirQuality.Enabled {
		fmt.Println("  Note: all sources disabled; every report will carry generated data")
	}
	return p
}

// ── Phase 2: Watchlist Integrity ──
// Validates the monitored regions beyond what the loader already enforces.

func validateWatchlist(watched []config.WatchedRegion) *phase {
	p := &phase{name: "Phase 2: Watchlist Integrity"}

	// The generated-data seed depends only on |lat·lon|, so two regions with
	// the same product draw identical payload streams in degraded mode.
	seeds := map[float64]string{}
	for _, w := range watched {
		r := w.Region
		seed := math.Abs(r.Lat * r.Lon)
		if prev, ok := seeds[seed]; ok {
			p.errorf("regions %q and %q share the generation seed (|lat*lon|=%g)", prev, r.Name, seed)
		} else {
			seeds[seed] = r.Name
		}

		if strings.TrimSpace(r.Name) != r.Name {
			p.errorf("region %q has leading or trailing whitespace; latest-report lookups will miss it", r.Name)
		}

		if w.Schedule != "" {
			if _, err := cron.ParseStandard(w.Schedule); err != nil {
				p.errorf("region %q: schedule %q: %v", r.Name, w.Schedule, err)
			}
		}
	}
	return p
}

// ── Phase 3: Generated Data Determinism ──
// Validates that repeated generation for a region is identical and that every
// field stays inside the range real measurements occupy.

func validateDeterminism(regions []domain.Region) *phase {
	p := &phase{name: "Phase 3: Generated Data Determinism"}
	for _, r := range regions {
		checkSatellite(p, r)
		checkWeather(p, r)
		checkAirQuality(p, r)
	}
	return p
}

func checkSatellite(p *phase, region domain.Region) {
	first, second := synthetic.Satellite(region), synthetic.Satellite(region)
	if *first != *second {
		p.errorf("%s: satellite payload not reproducible", region.Name)
	}
	if first.NDVI < -1 || first.NDVI > 1 {
		p.errorf("%s: NDVI %g outside [-1, 1]", region.Name, first.NDVI)
	}
	if first.PreviousNDVI < -1 || first.PreviousNDVI > 1 {
		p.errorf("%s: previous NDVI %g outside [-1, 1]", region.Name, first.PreviousNDVI)
	}
	if first.VegetationLossPct < 0 || first.VegetationLossPct > 100 {
		p.errorf("%s: vegetation loss %g%% outside [0, 100]", region.Name, first.VegetationLossPct)
	}
	if first.CloudCoverPct < 0 || first.CloudCoverPct > 100 {
		p.errorf("%s: cloud cover %g%% outside [0, 100]", region.Name, first.CloudCoverPct)
	}
	if first.RedBand < 0 || first.NIRBand < 0 || first.BlueBand < 0 || first.GreenBand < 0 {
		p.errorf("%s: negative reflectance band", region.Name)
	}
}

func checkWeather(p *phase, region domain.Region) {
	first, second := synthetic.Weather(region), synthetic.Weather(region)
	if *first != *second {
		p.errorf("%s: weather payload not reproducible", region.Name)
	}
	if first.TemperatureC < -60 || first.TemperatureC > 60 {
		p.errorf("%s: temperature %g outside [-60, 60]", region.Name, first.TemperatureC)
	}
	if first.HumidityPct < 0 || first.HumidityPct > 100 {
		p.errorf("%s: humidity %g%% outside [0, 100]", region.Name, first.HumidityPct)
	}
	if first.WindSpeedMS < 0 || first.PrecipitationMM < 0 {
		p.errorf("%s: negative wind or precipitation", region.Name)
	}
	if first.CloudCoverPct < 0 || first.CloudCoverPct > 100 {
		p.errorf("%s: cloud cover %g%% outside [0, 100]", region.Name, first.CloudCoverPct)
	}
	if first.CloudImpact != domain.DeriveCloudImpact(first.CloudCoverPct) {
		p.errorf("%s: cloud impact %s does not match cover %g%%", region.Name, first.CloudImpact, first.CloudCoverPct)
	}
}

func checkAirQuality(p *phase, region domain.Region) {
	first, second := synthetic.AirQuality(region), synthetic.AirQuality(region)
	if *first != *second {
		p.errorf("%s: air quality payload not reproducible", region.Name)
	}
	if first.AQI <= 0 {
		p.errorf("%s: AQI %d is not positive", region.Name, first.AQI)
	}
	if first.PM25 < 0 || first.PM10 < 0 || first.O3 < 0 || first.NO2 < 0 {
		p.errorf("%s: negative pollutant concentration", region.Name)
	}
	if first.PM10 < first.PM25 {
		p.errorf("%s: PM10 %g below PM2.5 %g", region.Name, first.PM10, first.PM25)
	}
	if first.HealthImpact != domain.DeriveHealthImpact(first.AQI) {
		p.errorf("%s: health impact %s does not match AQI %d", region.Name, first.HealthImpact, first.AQI)
	}
}

// ── Phase 4: Risk Scoring Alignment ──
// Validates the scorer against snapshots with known composites and levels.

type scoringCase struct {
	name      string
	lossPct   float64
	cloud     domain.CloudImpact
	health    domain.HealthImpact
	composite float64
	level     domain.RiskLevel
}

var scoringCases = []scoringCase{
	{"clear skies, minimal pollution", 42.5, domain.CloudImpactLow, domain.HealthImpactMinimal, 0.255, domain.RiskLow},
	{"corroborated but mild loss", 15.8, domain.CloudImpactMedium, domain.HealthImpactModerate, 0.1548, domain.RiskLow},
	{"eroding canopy", 55, domain.CloudImpactLow, domain.HealthImpactMinimal, 0.33, domain.RiskMedium},
	{"severe on every signal", 80, domain.CloudImpactHigh, domain.HealthImpactSevere, 0.6, domain.RiskHigh},
}

func validateScoring() *phase {
	p := &phase{name: "Phase 4: Risk Scoring Alignment"}

	scorer, err := risk.NewScorer(len(scoringCases), nil)
	if err != nil {
		p.errorf("create scorer: %v", err)
		return p
	}

	for _, c := range scoringCases {
		got := scorer.Score(snapshotFor(c, domain.OriginReal))
		if !floatEq(got.CompositeScore, c.composite) {
			p.errorf("%s: composite: expected %g, got %g", c.name, c.composite, got.CompositeScore)
		}
		if got.Level != c.level {
			p.errorf("%s: level: expected %s, got %s", c.name, c.level, got.Level)
		}
		if !floatEq(got.Confidence, 1) {
			p.errorf("%s: all-real confidence: expected 1, got %g", c.name, got.Confidence)
		}
	}

	// Degrading every source halves each reliability contribution, and the
	// smoother blends it with the retained value: 0.7*0.5 + 0.3*1.0.
	c := scoringCases[0]
	got := scorer.Score(snapshotFor(c, domain.OriginDisabled))
	if !floatEq(got.Confidence, 0.65) {
		p.errorf("%s: smoothed degraded confidence: expected 0.65, got %g", c.name, got.Confidence)
	}
	return p
}

func snapshotFor(c scoringCase, origin domain.Origin) domain.Snapshot {
	return domain.Snapshot{
		Region: domain.Region{Name: c.name, Lat: 1, Lon: 1, SizeKm: 10},
		Satellite: domain.SourceResult{
			Kind:      domain.SourceSatellite,
			Origin:    origin,
			Satellite: &domain.SatelliteData{VegetationLossPct: c.lossPct},
		},
		Weather: domain.SourceResult{
			Kind:    domain.SourceWeather,
			Origin:  origin,
			Weather: &domain.WeatherData{CloudImpact: c.cloud},
		},
		AirQuality: domain.SourceResult{
			Kind:       domain.SourceAirQuality,
			Origin:     origin,
			AirQuality: &domain.AirQualityData{HealthImpact: c.health},
		},
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
