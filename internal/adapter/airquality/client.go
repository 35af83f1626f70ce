package airquality

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

const defaultBaseURL = "https://api.waqi.info"

// Client implements domain.AirQualityProvider using the WAQI geolocated
// feed API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an air quality client. An empty baseURL selects the
// hosted WAQI endpoint.
func NewClient(token, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Reading returns the reading from the station nearest the region's center.
func (c *Client) Reading(ctx context.Context, region domain.Region) (*domain.AirQualityData, error) {
	params := url.Values{"token": {c.token}}
	fullURL := fmt.Sprintf("%s/feed/geo:%.6f;%.6f/?%s", c.baseURL, region.Lat, region.Lon, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reading request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("waqi API error: status %d: %s", resp.StatusCode, body)
	}

	// WAQI always answers 200; errors arrive as status != "ok" with a
	// string payload in data, so data is decoded in a second pass.
	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Status != "ok" {
		return nil, fmt.Errorf("waqi API error: status %q: %s", envelope.Status, envelope.Data)
	}

	var feed feedData
	if err := json.Unmarshal(envelope.Data, &feed); err != nil {
		return nil, fmt.Errorf("decode feed data: %w", err)
	}

	return &domain.AirQualityData{
		AQI:          feed.AQI,
		PM25:         feed.IAQI.PM25.V,
		PM10:         feed.IAQI.PM10.V,
		O3:           feed.IAQI.O3.V,
		NO2:          feed.IAQI.NO2.V,
		HealthImpact: domain.DeriveHealthImpact(feed.AQI),
	}, nil
}

// WAQI response types. iaqi entries are per-pollutant and optional; a
// station that does not measure a pollutant simply omits its key.

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type feedData struct {
	AQI  int `json:"aqi"`
	IAQI struct {
		PM25 reading `json:"pm25"`
		PM10 reading `json:"pm10"`
		O3   reading `json:"o3"`
		NO2  reading `json:"no2"`
	} `json:"iaqi"`
}

type reading struct {
	V float64 `json:"v"`
}
