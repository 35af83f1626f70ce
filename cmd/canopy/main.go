package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/canopy-watch/internal/adapter/airquality"
	httpadapter "github.com/couchcryptid/canopy-watch/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/canopy-watch/internal/adapter/kafka"
	"github.com/couchcryptid/canopy-watch/internal/adapter/mlserver"
	"github.com/couchcryptid/canopy-watch/internal/adapter/satellite"
	"github.com/couchcryptid/canopy-watch/internal/adapter/weather"
	"github.com/couchcryptid/canopy-watch/internal/config"
	"github.com/couchcryptid/canopy-watch/internal/enhance"
	"github.com/couchcryptid/canopy-watch/internal/fetch"
	"github.com/couchcryptid/canopy-watch/internal/observability"
	"github.com/couchcryptid/canopy-watch/internal/pipeline"
	"github.com/couchcryptid/canopy-watch/internal/resilience"
	"github.com/couchcryptid/canopy-watch/internal/risk"
	"github.com/couchcryptid/canopy-watch/internal/schedule"
)

func main() {
	// .env is a development convenience; absence is the normal case.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogFormat, cfg.LogLevel)
	metrics := observability.NewMetrics()

	// One breaker per upstream kind so an outage in one source never blocks
	// the others; each retrier reports its bout outcomes to its own breaker.
	newBreaker := func() *resilience.Breaker {
		return resilience.NewBreaker(resilience.BreakerConfig{
			FailureThreshold: cfg.BreakerFailureThreshold,
			ResetTimeout:     cfg.BreakerResetTimeout,
		})
	}
	newRetrier := func(b *resilience.Breaker) *resilience.Retrier {
		return resilience.NewRetrier(resilience.RetrierConfig{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Breaker:     b,
			Logger:      logger,
		})
	}
	newFetchOptions := func(enabled bool) fetch.Options {
		breaker := newBreaker()
		return fetch.Options{
			Enabled: enabled,
			Breaker: breaker,
			Retrier: newRetrier(breaker),
			Metrics: metrics,
			Logger:  logger,
		}
	}

	aggregator := fetch.NewAggregator(
		fetch.NewSatellite(
			satellite.NewClient(cfg.Satellite.APIKey, cfg.Satellite.URL, cfg.SourceTimeout, logger),
			newFetchOptions(cfg.Satellite.Enabled),
		),
		fetch.NewWeather(
			weather.NewClient(cfg.Weather.APIKey, cfg.Weather.URL, cfg.SourceTimeout, logger),
			newFetchOptions(cfg.Weather.Enabled),
		),
		fetch.NewAirQuality(
			airquality.NewClient(cfg.AirQuality.APIKey, cfg.AirQuality.URL, cfg.SourceTimeout, logger),
			newFetchOptions(cfg.AirQuality.Enabled),
		),
		logger,
	)
	logger.Info("source fetchers ready",
		"satellite_enabled", cfg.Satellite.Enabled,
		"weather_enabled", cfg.Weather.Enabled,
		"air_quality_enabled", cfg.AirQuality.Enabled,
	)

	scorer, err := risk.NewScorer(cfg.HistoryCacheSize, logger)
	if err != nil {
		logger.Error("failed to create scorer", "error", err)
		os.Exit(1)
	}

	mlClient := mlserver.NewClient(cfg.MLURL, cfg.MLTimeout, logger)
	if cfg.MLEnabled {
		probeCtx, cancel := context.WithTimeout(context.Background(), cfg.MLTimeout)
		if err := mlClient.Health(probeCtx); err != nil {
			logger.Warn("model server health check failed, predictions will use the local ensemble until it recovers", "error", err)
		} else {
			logger.Info("model server healthy")
		}
		cancel()
	} else {
		logger.Info("ml enhancement disabled")
	}
	mlBreaker := newBreaker()
	enhancer := enhance.New(mlClient, enhance.Options{
		Enabled: cfg.MLEnabled,
		Breaker: mlBreaker,
		Retrier: newRetrier(mlBreaker),
		Metrics: metrics,
		Logger:  logger,
	})

	// Report sink (feature-flagged via KAFKA_ENABLED).
	var publisher pipeline.ReportPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("report publishing enabled", "topic", cfg.KafkaReportTopic)
	} else {
		logger.Info("report publishing disabled")
	}

	p, err := pipeline.New(aggregator, scorer, enhancer, pipeline.Options{
		Publisher:       publisher,
		AnalysisTimeout: cfg.AnalysisTimeout,
		LatestSize:      cfg.HistoryCacheSize,
		Metrics:         metrics,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to create pipeline", "error", err)
		os.Exit(1)
	}

	// Scheduled monitoring (feature-flagged via WATCHLIST_PATH).
	var monitor *schedule.Monitor
	if cfg.MonitorEnabled() {
		watched, err := config.LoadWatchlist(cfg.WatchlistPath)
		if err != nil {
			logger.Error("failed to load watchlist", "path", cfg.WatchlistPath, "error", err)
			os.Exit(1)
		}
		entries := make([]schedule.Entry, len(watched))
		for i, w := range watched {
			entries[i] = schedule.Entry{Region: w.Region, Schedule: w.Schedule}
		}
		monitor, err = schedule.NewMonitor(p, entries, schedule.Options{
			Schedule: cfg.MonitorSchedule,
			Metrics:  metrics,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("failed to create monitor", "error", err)
			os.Exit(1)
		}
		monitor.Start()
		logger.Info("watchlist monitoring enabled", "regions", len(watched), "schedule", cfg.MonitorSchedule)
	} else {
		logger.Info("watchlist monitoring disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if monitor != nil {
		monitor.Stop()
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
