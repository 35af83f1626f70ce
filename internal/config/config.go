package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SourceConfig holds the settings for one upstream data source. An empty URL
// means the client's built-in base URL is used.
type SourceConfig struct {
	URL     string
	APIKey  string
	Enabled bool
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream data sources. A source with an API key is enabled unless
	// explicitly switched off; disabled sources serve synthetic data.
	Satellite  SourceConfig
	Weather    SourceConfig
	AirQuality SourceConfig

	// External model server. Setting ML_API_URL implies enabled.
	MLURL     string
	MLEnabled bool
	MLTimeout time.Duration

	// Per-attempt timeout for source API calls, and the retry envelope
	// shared by all fetchers.
	SourceTimeout    time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	// Circuit breaker settings shared by all upstream kinds.
	BreakerFailureThreshold int
	BreakerResetTimeout     time.Duration

	// Overall deadline for one analysis run.
	AnalysisTimeout time.Duration

	// Report sink. Disabled by default; reports are still served over HTTP.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaReportTopic string

	// Scheduled monitoring. An empty watchlist path disables the monitor.
	WatchlistPath   string
	MonitorSchedule string

	// Capacity of the per-region history cache used for confidence
	// smoothing and latest-report lookups.
	HistoryCacheSize int
}

// MonitorEnabled reports whether scheduled watchlist monitoring is on.
func (c *Config) MonitorEnabled() bool {
	return c.WatchlistPath != ""
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationVar("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := parseDurationVar("SOURCE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	mlTimeout, err := parseDurationVar("ML_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	retryBaseDelay, err := parseDurationVar("RETRY_BASE_DELAY", "1s")
	if err != nil {
		return nil, err
	}
	breakerResetTimeout, err := parseDurationVar("BREAKER_RESET_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	analysisTimeout, err := parseDurationVar("ANALYSIS_TIMEOUT", "45s")
	if err != nil {
		return nil, err
	}

	retryMaxAttempts, err := parseIntVar("RETRY_MAX_ATTEMPTS", 3, 1, 10)
	if err != nil {
		return nil, err
	}
	breakerThreshold, err := parseIntVar("BREAKER_FAILURE_THRESHOLD", 5, 1, 100)
	if err != nil {
		return nil, err
	}
	historyCacheSize, err := parseIntVar("HISTORY_CACHE_SIZE", 1024, 1, 1_000_000)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := parseBoolVar("KAFKA_ENABLED", false)

	mlURL := os.Getenv("ML_API_URL")
	mlEnabled := parseBoolVar("ML_ENABLED", mlURL != "")

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Satellite:  loadSource("SATELLITE"),
		Weather:    loadSource("WEATHER"),
		AirQuality: loadSource("AIR_QUALITY"),

		MLURL:     mlURL,
		MLEnabled: mlEnabled,
		MLTimeout: mlTimeout,

		SourceTimeout:    sourceTimeout,
		RetryMaxAttempts: retryMaxAttempts,
		RetryBaseDelay:   retryBaseDelay,

		BreakerFailureThreshold: breakerThreshold,
		BreakerResetTimeout:     breakerResetTimeout,

		AnalysisTimeout: analysisTimeout,

		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReportTopic: envOrDefault("KAFKA_REPORT_TOPIC", "canopy-reports"),

		WatchlistPath:   os.Getenv("WATCHLIST_PATH"),
		MonitorSchedule: envOrDefault("MONITOR_SCHEDULE", "@hourly"),

		HistoryCacheSize: historyCacheSize,
	}

	if cfg.Satellite.Enabled && cfg.Satellite.APIKey == "" {
		return nil, fmt.Errorf("SATELLITE_ENABLED is true but SATELLITE_API_KEY is not set")
	}
	if cfg.Weather.Enabled && cfg.Weather.APIKey == "" {
		return nil, fmt.Errorf("WEATHER_ENABLED is true but WEATHER_API_KEY is not set")
	}
	if cfg.AirQuality.Enabled && cfg.AirQuality.APIKey == "" {
		return nil, fmt.Errorf("AIR_QUALITY_ENABLED is true but AIR_QUALITY_API_KEY is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaReportTopic == "" {
		return nil, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_REPORT_TOPIC is not set")
	}

	return cfg, nil
}

// loadSource reads one source's URL, key, and enabled flag. A set API key
// implies enabled; an explicit <PREFIX>_ENABLED always wins.
func loadSource(prefix string) SourceConfig {
	key := os.Getenv(prefix + "_API_KEY")
	return SourceConfig{
		URL:     os.Getenv(prefix + "_API_URL"),
		APIKey:  key,
		Enabled: parseBoolVar(prefix+"_ENABLED", key != ""),
	}
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func parseBoolVar(name string, def bool) bool {
	if v := os.Getenv(name); v != "" {
		return v == "true"
	}
	return def
}

func parseDurationVar(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", name)
	}
	return d, nil
}

func parseIntVar(name string, def, min, max int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", name, min, max)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
