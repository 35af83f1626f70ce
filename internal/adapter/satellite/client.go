package satellite

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

const defaultBaseURL = "https://services.sentinel-hub.com"

// Client implements domain.SatelliteProvider using the Sentinel Hub
// statistics API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a satellite statistics client. An empty baseURL selects
// the hosted Sentinel Hub endpoint.
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

// Reflectance returns the latest scene statistics covering the region.
func (c *Client) Reflectance(ctx context.Context, region domain.Region) (*domain.SatelliteData, error) {
	params := url.Values{
		"lat":     {fmt.Sprintf("%.6f", region.Lat)},
		"lon":     {fmt.Sprintf("%.6f", region.Lon)},
		"size_km": {fmt.Sprintf("%.1f", region.SizeKm)},
	}
	fullURL := fmt.Sprintf("%s/api/v1/ndvi/statistics?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reflectance request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sentinel API error: status %d: %s", resp.StatusCode, body)
	}

	var stats response
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &domain.SatelliteData{
		NDVI:              stats.NDVI.Current,
		PreviousNDVI:      stats.NDVI.Previous,
		NDVIChange:        stats.NDVI.Current - stats.NDVI.Previous,
		VegetationLossPct: lossPercent(stats.NDVI.Current, stats.NDVI.Previous),
		RedBand:           stats.Bands.Red,
		NIRBand:           stats.Bands.NIR,
		BlueBand:          stats.Bands.Blue,
		GreenBand:         stats.Bands.Green,
		CloudCoverPct:     stats.CloudCoverPct,
		SceneID:           stats.SceneID,
		CapturedAt:        stats.CapturedAt,
	}, nil
}

// lossPercent derives canopy loss from the NDVI drop between the two most
// recent composites. A rising or zero-baseline NDVI reads as no loss.
func lossPercent(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	loss := (previous - current) / previous * 100
	if loss < 0 {
		return 0
	}
	return loss
}

// Sentinel Hub statistics response types.

type response struct {
	SceneID       string    `json:"scene_id"`
	CapturedAt    time.Time `json:"captured_at"`
	CloudCoverPct float64   `json:"cloud_cover_pct"`
	Bands         bands     `json:"bands"`
	NDVI          ndvi      `json:"ndvi"`
}

type bands struct {
	Red   float64 `json:"red"`
	NIR   float64 `json:"nir"`
	Blue  float64 `json:"blue"`
	Green float64 `json:"green"`
}

type ndvi struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
}
