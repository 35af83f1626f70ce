package fetch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/canopy-watch/internal/domain"
	"github.com/couchcryptid/canopy-watch/internal/fetch"
	"github.com/couchcryptid/canopy-watch/internal/observability"
	"github.com/couchcryptid/canopy-watch/internal/resilience"
	"github.com/couchcryptid/canopy-watch/internal/synthetic"
)

var errUpstream = errors.New("upstream unavailable")

// --- mocks ---

type stubSatellite struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	data  *domain.SatelliteData
}

func (s *stubSatellite) Reflectance(_ context.Context, _ domain.Region) (*domain.SatelliteData, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

type stubWeather struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	data  *domain.WeatherData
}

func (s *stubWeather) Conditions(_ context.Context, _ domain.Region) (*domain.WeatherData, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

type stubAirQuality struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	data  *domain.AirQualityData
}

func (s *stubAirQuality) Reading(_ context.Context, _ domain.Region) (*domain.AirQualityData, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegion() domain.Region {
	return domain.Region{Name: "amazon-basin", Lat: -3.4653, Lon: -62.2159, SizeKm: 25}
}

// testOptions builds enabled fetcher options with a fast retrier sharing the
// given breaker. A nil breaker gets a default one.
func testOptions(breaker *resilience.Breaker) fetch.Options {
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.BreakerConfig{})
	}
	return fetch.Options{
		Enabled: true,
		Breaker: breaker,
		Retrier: resilience.NewRetrier(resilience.RetrierConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Breaker:     breaker,
			Logger:      discardLogger(),
		}),
		Metrics: newTestMetrics(),
		Logger:  discardLogger(),
	}
}

// --- tests ---

func TestFetcher_RealData(t *testing.T) {
	stub := &stubSatellite{data: &domain.SatelliteData{NDVI: 0.52, PreviousNDVI: 0.64, VegetationLossPct: 18.75}}
	f := fetch.NewSatellite(stub, testOptions(nil))

	result := f.Fetch(context.Background(), testRegion())

	assert.Equal(t, domain.SourceSatellite, result.Kind)
	assert.Equal(t, domain.OriginReal, result.Origin)
	assert.Equal(t, domain.QualityHigh, result.Quality)
	assert.False(t, result.Synthetic())
	require.NotNil(t, result.Satellite)
	assert.Equal(t, 0.52, result.Satellite.NDVI)
	assert.WithinDuration(t, time.Now(), result.FetchedAt, time.Second)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestFetcher_RealQualityByKind(t *testing.T) {
	wx := fetch.NewWeather(&stubWeather{data: &domain.WeatherData{TemperatureC: 26.4}}, testOptions(nil))
	aq := fetch.NewAirQuality(&stubAirQuality{data: &domain.AirQualityData{AQI: 42}}, testOptions(nil))

	assert.Equal(t, domain.QualityMedium, wx.Fetch(context.Background(), testRegion()).Quality)
	assert.Equal(t, domain.QualityMedium, aq.Fetch(context.Background(), testRegion()).Quality)
}

func TestFetcher_Disabled(t *testing.T) {
	stub := &stubSatellite{data: &domain.SatelliteData{NDVI: 0.52}}
	opts := testOptions(nil)
	opts.Enabled = false
	f := fetch.NewSatellite(stub, opts)

	result := f.Fetch(context.Background(), testRegion())

	assert.Equal(t, domain.OriginDisabled, result.Origin)
	assert.Equal(t, domain.QualityLow, result.Quality)
	assert.True(t, result.Synthetic())
	assert.Equal(t, synthetic.Satellite(testRegion()), result.Satellite)
	assert.Equal(t, int32(0), stub.calls.Load(), "disabled fetcher must not call upstream")
}

func TestFetcher_FallbackAfterExhaustedRetries(t *testing.T) {
	stub := &stubWeather{err: errUpstream}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{})
	f := fetch.NewWeather(stub, testOptions(breaker))

	result := f.Fetch(context.Background(), testRegion())

	assert.Equal(t, domain.OriginFallbackAPIError, result.Origin)
	assert.Equal(t, domain.QualityLow, result.Quality)
	require.NotNil(t, result.Weather)
	assert.Equal(t, synthetic.Weather(testRegion()), result.Weather)
	assert.Equal(t, int32(3), stub.calls.Load(), "should exhaust all attempts")
	assert.Equal(t, 1, breaker.Status().FailureCount, "one exhausted bout is one breaker failure")
}

func TestFetcher_CircuitOpen(t *testing.T) {
	stub := &stubAirQuality{data: &domain.AirQualityData{AQI: 42}}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 1})
	breaker.RecordFailure()
	f := fetch.NewAirQuality(stub, testOptions(breaker))

	result := f.Fetch(context.Background(), testRegion())

	assert.Equal(t, domain.OriginCircuitOpen, result.Origin)
	assert.Equal(t, domain.QualityLow, result.Quality)
	require.NotNil(t, result.AirQuality)
	assert.Equal(t, int32(0), stub.calls.Load(), "open circuit must short-circuit upstream")
}

func TestFetcher_BreakerOpensAfterRepeatedOutage(t *testing.T) {
	stub := &stubSatellite{err: errUpstream}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 2})
	f := fetch.NewSatellite(stub, testOptions(breaker))

	assert.Equal(t, domain.OriginFallbackAPIError, f.Fetch(context.Background(), testRegion()).Origin)
	assert.Equal(t, domain.OriginFallbackAPIError, f.Fetch(context.Background(), testRegion()).Origin)
	assert.Equal(t, resilience.StateOpen, breaker.Status().State)

	// The breaker now blocks the third fetch before any upstream call.
	assert.Equal(t, domain.OriginCircuitOpen, f.Fetch(context.Background(), testRegion()).Origin)
	assert.Equal(t, int32(6), stub.calls.Load())
}

func TestFetcher_SyntheticDeterminism(t *testing.T) {
	opts := testOptions(nil)
	opts.Enabled = false
	f := fetch.NewAirQuality(&stubAirQuality{}, opts)

	first := f.Fetch(context.Background(), testRegion())
	second := f.Fetch(context.Background(), testRegion())
	assert.Equal(t, first.AirQuality, second.AirQuality)
}

func TestAggregator_AllReal(t *testing.T) {
	agg := fetch.NewAggregator(
		fetch.NewSatellite(&stubSatellite{data: &domain.SatelliteData{NDVI: 0.52}}, testOptions(nil)),
		fetch.NewWeather(&stubWeather{data: &domain.WeatherData{TemperatureC: 26.4}}, testOptions(nil)),
		fetch.NewAirQuality(&stubAirQuality{data: &domain.AirQualityData{AQI: 42}}, testOptions(nil)),
		discardLogger(),
	)

	snapshot := agg.Snapshot(context.Background(), testRegion())

	assert.Equal(t, testRegion(), snapshot.Region)
	assert.Equal(t, domain.SourceSatellite, snapshot.Satellite.Kind)
	assert.Equal(t, domain.SourceWeather, snapshot.Weather.Kind)
	assert.Equal(t, domain.SourceAirQuality, snapshot.AirQuality.Kind)
	assert.Equal(t, 3, snapshot.RealSourceCount())
	assert.False(t, snapshot.TakenAt.IsZero())
	assert.GreaterOrEqual(t, time.Duration(snapshot.ExecutionTime), time.Duration(0))
}

func TestAggregator_PartialDegradation(t *testing.T) {
	agg := fetch.NewAggregator(
		fetch.NewSatellite(&stubSatellite{err: errUpstream}, testOptions(nil)),
		fetch.NewWeather(&stubWeather{data: &domain.WeatherData{TemperatureC: 26.4}}, testOptions(nil)),
		fetch.NewAirQuality(&stubAirQuality{data: &domain.AirQualityData{AQI: 42}}, testOptions(nil)),
		discardLogger(),
	)

	snapshot := agg.Snapshot(context.Background(), testRegion())

	assert.Equal(t, domain.OriginFallbackAPIError, snapshot.Satellite.Origin)
	require.NotNil(t, snapshot.Satellite.Satellite, "degraded source still carries a payload")
	assert.Equal(t, domain.OriginReal, snapshot.Weather.Origin)
	assert.Equal(t, domain.OriginReal, snapshot.AirQuality.Origin)
	assert.Equal(t, 2, snapshot.RealSourceCount())
}

func TestAggregator_FetchesConcurrently(t *testing.T) {
	const delay = 50 * time.Millisecond
	agg := fetch.NewAggregator(
		fetch.NewSatellite(&stubSatellite{delay: delay, data: &domain.SatelliteData{}}, testOptions(nil)),
		fetch.NewWeather(&stubWeather{delay: delay, data: &domain.WeatherData{}}, testOptions(nil)),
		fetch.NewAirQuality(&stubAirQuality{delay: delay, data: &domain.AirQualityData{}}, testOptions(nil)),
		discardLogger(),
	)

	start := time.Now()
	snapshot := agg.Snapshot(context.Background(), testRegion())
	elapsed := time.Since(start)

	// Sequential fetches would take at least 150ms.
	assert.Less(t, elapsed, 120*time.Millisecond, "sources should be fetched in parallel")
	assert.Equal(t, 3, snapshot.RealSourceCount())
}

func TestAggregator_Fetchers(t *testing.T) {
	agg := fetch.NewAggregator(
		fetch.NewSatellite(&stubSatellite{}, testOptions(nil)),
		fetch.NewWeather(&stubWeather{}, testOptions(nil)),
		fetch.NewAirQuality(&stubAirQuality{}, testOptions(nil)),
		discardLogger(),
	)

	fetchers := agg.Fetchers()
	require.Len(t, fetchers, 3)
	for kind, f := range fetchers {
		assert.Equal(t, kind, f.Kind())
		assert.NotNil(t, f.Breaker())
	}
}
