package mlserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/canopy-watch/internal/domain"
)

const defaultBaseURL = "http://localhost:5001"

// Client implements domain.Predictor against the model server's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a model server client. An empty baseURL selects a
// local model server on its default port.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// PredictAll runs every model head against the snapshot's features.
func (c *Client) PredictAll(ctx context.Context, snapshot domain.Snapshot) (domain.Prediction, error) {
	sat := snapshot.Satellite.Satellite
	wx := snapshot.Weather.Weather
	if sat == nil {
		return domain.Prediction{}, fmt.Errorf("snapshot for %q has no satellite payload", snapshot.Region.Name)
	}
	if wx == nil {
		return domain.Prediction{}, fmt.Errorf("snapshot for %q has no weather payload", snapshot.Region.Name)
	}

	body, err := json.Marshal(features{
		NDVI:       sat.NDVI,
		NDVIPrev:   sat.PreviousNDVI,
		NDVIChange: sat.NDVIChange,
		RedBand:    sat.RedBand,
		NIRBand:    sat.NIRBand,
		BlueBand:   sat.BlueBand,
		GreenBand:  sat.GreenBand,
		// The models were trained on cloud cover as a 0–1 fraction.
		CloudCover:  sat.CloudCoverPct / 100,
		Temperature: wx.TemperatureC,
		Humidity:    wx.HumidityPct,
	})
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict/all", bytes.NewReader(body))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return domain.Prediction{}, fmt.Errorf("model server error: status %d: %s", resp.StatusCode, raw)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.Prediction{}, fmt.Errorf("decode response: %w", err)
	}
	if !pr.Success {
		return domain.Prediction{}, fmt.Errorf("model server error: %s", pr.Error)
	}

	return domain.Prediction{
		NDVIForecast:     pr.Predictions.NDVIForecast,
		ChangeDetected:   pr.Predictions.ChangeDetection.IsChange,
		ChangeConfidence: pr.Predictions.ChangeDetection.Confidence,
		RiskLevel:        pr.Predictions.RiskAssessment.RiskLevel,
		RiskLabel:        pr.Predictions.RiskAssessment.RiskLabel,
		Confidence:       pr.Predictions.RiskAssessment.Confidence,
	}, nil
}

// Health reports whether the model server is reachable and has its models
// loaded.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model server unhealthy: status %d: %s", resp.StatusCode, raw)
	}

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if h.Status != "healthy" {
		return fmt.Errorf("model server unhealthy: status %q", h.Status)
	}
	return nil
}

// Model server request and response types.

type features struct {
	NDVI        float64 `json:"ndvi"`
	NDVIPrev    float64 `json:"ndvi_prev"`
	NDVIChange  float64 `json:"ndvi_change"`
	RedBand     float64 `json:"red_band"`
	NIRBand     float64 `json:"nir_band"`
	BlueBand    float64 `json:"blue_band"`
	GreenBand   float64 `json:"green_band"`
	CloudCover  float64 `json:"cloud_cover"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

type predictResponse struct {
	Success     bool        `json:"success"`
	Error       string      `json:"error"`
	Predictions predictions `json:"predictions"`
}

type predictions struct {
	NDVIForecast    float64 `json:"ndvi_forecast"`
	ChangeDetection struct {
		IsChange   bool    `json:"is_change"`
		Confidence float64 `json:"confidence"`
	} `json:"change_detection"`
	RiskAssessment struct {
		RiskLevel  int     `json:"risk_level"`
		RiskLabel  string  `json:"risk_label"`
		Confidence float64 `json:"confidence"`
	} `json:"risk_assessment"`
}

type healthResponse struct {
	Status string `json:"status"`
}
