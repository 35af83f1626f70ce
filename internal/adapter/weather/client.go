package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/canopy-watch/internal/domain"
)

const defaultBaseURL = "https://api.openweathermap.org"

// Client implements domain.WeatherProvider using the OpenWeatherMap current
// weather API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a weather client. An empty baseURL selects the hosted
// OpenWeatherMap endpoint.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Conditions returns the current weather observation nearest the region's
// center.
func (c *Client) Conditions(ctx context.Context, region domain.Region) (*domain.WeatherData, error) {
	params := url.Values{
		"lat":   {fmt.Sprintf("%.6f", region.Lat)},
		"lon":   {fmt.Sprintf("%.6f", region.Lon)},
		"units": {"metric"},
		"appid": {c.apiKey},
	}
	fullURL := fmt.Sprintf("%s/data/2.5/weather?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("conditions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openweathermap API error: status %d: %s", resp.StatusCode, body)
	}

	var obs response
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &domain.WeatherData{
		TemperatureC:    obs.Main.Temp,
		HumidityPct:     obs.Main.Humidity,
		WindSpeedMS:     obs.Wind.Speed,
		PrecipitationMM: obs.Rain.OneHour,
		CloudCoverPct:   obs.Clouds.All,
		CloudImpact:     domain.DeriveCloudImpact(obs.Clouds.All),
		Station:         obs.Name,
	}, nil
}

// OpenWeatherMap response types. units=metric yields °C and m/s; rain.1h is
// absent in dry conditions and decodes to zero.

type response struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Name string `json:"name"`
}
