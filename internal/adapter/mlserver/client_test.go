package mlserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/canopy-watch/internal/domain"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Region: domain.Region{Name: "amazon-basin", Lat: -3.4653, Lon: -62.2159, SizeKm: 25},
		Satellite: domain.SourceResult{
			Kind:   domain.SourceSatellite,
			Origin: domain.OriginReal,
			Satellite: &domain.SatelliteData{
				NDVI:          0.52,
				PreviousNDVI:  0.64,
				NDVIChange:    -0.12,
				RedBand:       0.118,
				NIRBand:       0.498,
				BlueBand:      0.067,
				GreenBand:     0.132,
				CloudCoverPct: 12.5,
			},
		},
		Weather: domain.SourceResult{
			Kind:   domain.SourceWeather,
			Origin: domain.OriginReal,
			Weather: &domain.WeatherData{
				TemperatureC: 26.4,
				HumidityPct:  81,
			},
		},
	}
}

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_PredictAll_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict/all", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))

		var got map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, 0.52, got["ndvi"])
		assert.Equal(t, 0.64, got["ndvi_prev"])
		assert.Equal(t, -0.12, got["ndvi_change"])
		assert.Equal(t, 0.498, got["nir_band"])
		assert.Equal(t, 0.125, got["cloud_cover"])
		assert.Equal(t, 26.4, got["temperature"])
		assert.Equal(t, float64(81), got["humidity"])

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{
			"success": true,
			"timestamp": "2025-07-14T09:00:00",
			"predictions": {
				"ndvi_forecast": 0.47,
				"change_detection": {"is_change": true, "confidence": 0.88},
				"risk_assessment": {"risk_level": 2, "risk_label": "High", "confidence": 0.91}
			}
		}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	pred, err := c.PredictAll(context.Background(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, 0.47, pred.NDVIForecast)
	assert.True(t, pred.ChangeDetected)
	assert.Equal(t, 0.88, pred.ChangeConfidence)
	assert.Equal(t, 2, pred.RiskLevel)
	assert.Equal(t, "High", pred.RiskLabel)
	assert.Equal(t, 0.91, pred.Confidence)
}

func TestClient_PredictAll_ModelFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success": false, "error": "Risk level prediction failed"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.PredictAll(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "Risk level prediction failed")
}

func TestClient_PredictAll_MissingPayloads(t *testing.T) {
	c := testClient("http://127.0.0.1:1")

	snapshot := testSnapshot()
	snapshot.Satellite.Satellite = nil
	_, err := c.PredictAll(context.Background(), snapshot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "satellite payload")

	snapshot = testSnapshot()
	snapshot.Weather.Weather = nil
	_, err = c.PredictAll(context.Background(), snapshot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weather payload")
}

func TestClient_PredictAll_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Internal Server Error"))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.PredictAll(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Health_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status": "healthy", "service": "ML Model Server", "models": ["ndvi_predictor", "change_detector", "risk_classifier"]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	require.NoError(t, c.Health(context.Background()))
}

func TestClient_Health_Degraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status": "loading"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	err := c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading")
}

func TestClient_Health_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	err := c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, defaultBaseURL, c.baseURL)
}
