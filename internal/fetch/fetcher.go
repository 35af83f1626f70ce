package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/canopy-watch/internal/domain"
	"github.com/couchcryptid/canopy-watch/internal/observability"
	"github.com/couchcryptid/canopy-watch/internal/resilience"
	"github.com/couchcryptid/canopy-watch/internal/synthetic"
)

// payload carries the source-specific struct between the provider call and
// result assembly. Exactly one field is set.
type payload struct {
	satellite  *domain.SatelliteData
	weather    *domain.WeatherData
	airQuality *domain.AirQualityData
}

// Options configures one source fetcher. Breaker and Retrier default when
// nil; the retrier must be built around the same breaker so that its
// verdicts gate this fetcher.
type Options struct {
	Enabled bool
	Breaker *resilience.Breaker
	Retrier *resilience.Retrier
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Fetcher wraps one upstream source behind retry, circuit breaking, and
// generated fallback. Fetch never fails: any upstream problem degrades to a
// generated payload tagged with how it degraded.
type Fetcher struct {
	kind        domain.SourceKind
	realQuality domain.Quality
	enabled     bool
	call        func(ctx context.Context, region domain.Region) (payload, error)
	generate    func(region domain.Region) payload
	breaker     *resilience.Breaker
	retrier     *resilience.Retrier
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewSatellite builds the satellite fetcher around provider. Real results
// carry HIGH quality; satellite statistics are the directly measured signal
// the composite leans on.
func NewSatellite(provider domain.SatelliteProvider, opts Options) *Fetcher {
	return newFetcher(domain.SourceSatellite, domain.QualityHigh, opts,
		func(ctx context.Context, region domain.Region) (payload, error) {
			data, err := provider.Reflectance(ctx, region)
			if err != nil {
				return payload{}, err
			}
			return payload{satellite: data}, nil
		},
		func(region domain.Region) payload {
			return payload{satellite: synthetic.Satellite(region)}
		},
	)
}

// NewWeather builds the weather fetcher around provider. Real results carry
// MEDIUM quality; station observations approximate the region center.
func NewWeather(provider domain.WeatherProvider, opts Options) *Fetcher {
	return newFetcher(domain.SourceWeather, domain.QualityMedium, opts,
		func(ctx context.Context, region domain.Region) (payload, error) {
			data, err := provider.Conditions(ctx, region)
			if err != nil {
				return payload{}, err
			}
			return payload{weather: data}, nil
		},
		func(region domain.Region) payload {
			return payload{weather: synthetic.Weather(region)}
		},
	)
}

// NewAirQuality builds the air quality fetcher around provider. Real results
// carry MEDIUM quality, same as weather.
func NewAirQuality(provider domain.AirQualityProvider, opts Options) *Fetcher {
	return newFetcher(domain.SourceAirQuality, domain.QualityMedium, opts,
		func(ctx context.Context, region domain.Region) (payload, error) {
			data, err := provider.Reading(ctx, region)
			if err != nil {
				return payload{}, err
			}
			return payload{airQuality: data}, nil
		},
		func(region domain.Region) payload {
			return payload{airQuality: synthetic.AirQuality(region)}
		},
	)
}

func newFetcher(kind domain.SourceKind, realQuality domain.Quality, opts Options,
	call func(context.Context, domain.Region) (payload, error),
	generate func(domain.Region) payload,
) *Fetcher {
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
	return &Fetcher{
		kind:        kind,
		realQuality: realQuality,
		enabled:     opts.Enabled,
		call:        call,
		generate:    generate,
		breaker:     breaker,
		retrier:     retrier,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Kind returns the source kind this fetcher serves.
func (f *Fetcher) Kind() domain.SourceKind { return f.kind }

// Breaker exposes the fetcher's circuit breaker for status reporting and
// operator resets.
func (f *Fetcher) Breaker() *resilience.Breaker { return f.breaker }

// Fetch returns the source result for the region. It always returns a usable
// result; origin and quality tags record any degradation.
func (f *Fetcher) Fetch(ctx context.Context, region domain.Region) domain.SourceResult {
	start := time.Now()
	result := f.fetch(ctx, region)

	f.metrics.FetchDuration.WithLabelValues(string(f.kind)).Observe(time.Since(start).Seconds())
	f.metrics.FetchesTotal.WithLabelValues(string(f.kind), string(result.Origin)).Inc()
	f.metrics.BreakerState.WithLabelValues(string(f.kind)).Set(observability.BreakerStateValue(f.breaker.Status().State))

	return result
}

func (f *Fetcher) fetch(ctx context.Context, region domain.Region) domain.SourceResult {
	if !f.enabled {
		return f.generated(region, domain.OriginDisabled)
	}

	if !f.breaker.Allow() {
		f.logger.Warn("circuit open, serving generated data",
			"source", f.kind,
			"region", region.Name,
		)
		return f.generated(region, domain.OriginCircuitOpen)
	}

	var p payload
	err := f.retrier.Do(ctx, string(f.kind)+" fetch", func(ctx context.Context) error {
		var callErr error
		p, callErr = f.call(ctx, region)
		return callErr
	})
	if err != nil {
		f.logger.Error("source fetch failed, serving generated data",
			"source", f.kind,
			"region", region.Name,
			"error", err,
		)
		return f.generated(region, domain.OriginFallbackAPIError)
	}

	return f.assemble(p, domain.OriginReal, f.realQuality)
}

func (f *Fetcher) generated(region domain.Region, origin domain.Origin) domain.SourceResult {
	return f.assemble(f.generate(region), origin, domain.QualityLow)
}

func (f *Fetcher) assemble(p payload, origin domain.Origin, quality domain.Quality) domain.SourceResult {
	return domain.SourceResult{
		Kind:       f.kind,
		Origin:     origin,
		Quality:    quality,
		Satellite:  p.satellite,
		Weather:    p.weather,
		AirQuality: p.airQuality,
		FetchedAt:  time.Now(),
	}
}
