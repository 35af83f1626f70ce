package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/canopy-watch/internal/adapter/http"
	"github.com/couchcryptid/canopy-watch/internal/domain"
	"github.com/couchcryptid/canopy-watch/internal/resilience"
)

type mockAnalyzer struct {
	readyErr   error
	analyzeErr error
	latest     map[string]domain.Report
	statuses   map[domain.SourceKind]resilience.Status
	resetErr   error
	resets     []domain.SourceKind
	analyzed   []domain.Region
}

func (m *mockAnalyzer) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockAnalyzer) Analyze(_ context.Context, region domain.Region) (domain.Report, error) {
	if m.analyzeErr != nil {
		return domain.Report{}, m.analyzeErr
	}
	m.analyzed = append(m.analyzed, region)
	return domain.Report{
		ID:          "report-" + region.Name,
		Region:      region,
		Risk:        domain.RiskAssessment{Level: domain.RiskLow, Confidence: 0.9},
		Success:     true,
		GeneratedAt: time.Now(),
	}, nil
}

func (m *mockAnalyzer) AnalyzeBatch(ctx context.Context, regions []domain.Region) ([]domain.Report, error) {
	reports := make([]domain.Report, len(regions))
	for i, region := range regions {
		report, err := m.Analyze(ctx, region)
		if err != nil {
			return nil, err
		}
		reports[i] = report
	}
	return reports, nil
}

func (m *mockAnalyzer) Latest(name string) (domain.Report, bool) {
	report, ok := m.latest[name]
	return report, ok
}

func (m *mockAnalyzer) BreakerStatus() map[domain.SourceKind]resilience.Status {
	return m.statuses
}

func (m *mockAnalyzer) ResetBreaker(kind domain.SourceKind) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resets = append(m.resets, kind)
	return nil
}

func newTestServer(analyzer *mockAnalyzer) *httpadapter.Server {
	return httpadapter.NewServer(":0", analyzer, slog.Default())
}

func doRequest(srv *httpadapter.Server, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockAnalyzer{})
	rec := doRequest(srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockAnalyzer{})
	rec := doRequest(srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockAnalyzer{readyErr: fmt.Errorf("not ready yet")})
	rec := doRequest(srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockAnalyzer{})
	rec := doRequest(srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAnalyzeReturnsReport(t *testing.T) {
	analyzer := &mockAnalyzer{}
	srv := newTestServer(analyzer)

	rec := doRequest(srv, http.MethodPost, "/api/v1/analyze",
		`{"name":"amazon-basin","lat":-3.4653,"lon":-62.2159,"size_km":25}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var report domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "report-amazon-basin", report.ID)
	assert.True(t, report.Success)

	require.Len(t, analyzer.analyzed, 1)
	assert.Equal(t, domain.Region{Name: "amazon-basin", Lat: -3.4653, Lon: -62.2159, SizeKm: 25}, analyzer.analyzed[0])
}

func TestAnalyzeDefaultsRegionSize(t *testing.T) {
	analyzer := &mockAnalyzer{}
	srv := newTestServer(analyzer)

	rec := doRequest(srv, http.MethodPost, "/api/v1/analyze",
		`{"name":"congo-basin","lat":-0.7264,"lon":23.6558}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, analyzer.analyzed, 1)
	assert.Equal(t, 10.0, analyzer.analyzed[0].SizeKm)
}

func TestAnalyzeRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(&mockAnalyzer{})

	rec := doRequest(srv, http.MethodPost, "/api/v1/analyze", `{"name": not-json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestAnalyzeRejectsInvalidRegion(t *testing.T) {
	analyzer := &mockAnalyzer{}
	srv := newTestServer(analyzer)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty name", `{"name":"","lat":0,"lon":0,"size_km":10}`, "region name is empty"},
		{"latitude out of range", `{"name":"tilt","lat":91,"lon":0,"size_km":10}`, "invalid coordinates"},
		{"longitude out of range", `{"name":"spin","lat":0,"lon":181,"size_km":10}`, "invalid coordinates"},
		{"oversized region", `{"name":"huge","lat":0,"lon":10,"size_km":500}`, "invalid region size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPost, "/api/v1/analyze", tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
	assert.Empty(t, analyzer.analyzed, "invalid regions must never reach the pipeline")
}

func TestAnalyzeBatchReturnsReports(t *testing.T) {
	analyzer := &mockAnalyzer{}
	srv := newTestServer(analyzer)

	rec := doRequest(srv, http.MethodPost, "/api/v1/analyze/batch",
		`{"regions":[
			{"name":"amazon-basin","lat":-3.4653,"lon":-62.2159,"size_km":25},
			{"name":"congo-basin","lat":-0.7264,"lon":23.6558,"size_km":40}
		]}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count   int             `json:"count"`
		Reports []domain.Report `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Reports, 2)
	assert.Equal(t, "amazon-basin", body.Reports[0].Region.Name)
	assert.Equal(t, "congo-basin", body.Reports[1].Region.Name)
}

func TestAnalyzeBatchRejectsEmptyList(t *testing.T) {
	srv := newTestServer(&mockAnalyzer{})

	rec := doRequest(srv, http.MethodPost, "/api/v1/analyze/batch", `{"regions":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "regions is empty")
}

func TestAnalyzeBatchRejectsInvalidRegion(t *testing.T) {
	analyzer := &mockAnalyzer{}
	srv := newTestServer(analyzer)

	rec := doRequest(srv, http.MethodPost, "/api/v1/analyze/batch",
		`{"regions":[
			{"name":"amazon-basin","lat":-3.4653,"lon":-62.2159,"size_km":25},
			{"name":"tilt","lat":95,"lon":0,"size_km":10}
		]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "tilt")
	assert.Empty(t, analyzer.analyzed, "batch must be rejected before any analysis runs")
}

func TestLatestReturnsRetainedReport(t *testing.T) {
	analyzer := &mockAnalyzer{latest: map[string]domain.Report{
		"amazon-basin": {ID: "report-7", Success: true},
	}}
	srv := newTestServer(analyzer)

	rec := doRequest(srv, http.MethodGet, "/api/v1/regions/amazon-basin/latest", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var report domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "report-7", report.ID)
}

func TestLatestReturns404WhenUnknown(t *testing.T) {
	srv := newTestServer(&mockAnalyzer{})

	rec := doRequest(srv, http.MethodGet, "/api/v1/regions/nowhere/latest", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "nowhere")
}

func TestBreakersReportsEveryKind(t *testing.T) {
	analyzer := &mockAnalyzer{statuses: map[domain.SourceKind]resilience.Status{
		domain.SourceSatellite:  {State: resilience.StateOpen, FailureCount: 5},
		domain.SourceWeather:    {State: resilience.StateClosed},
		domain.SourceAirQuality: {State: resilience.StateClosed},
		domain.SourceML:         {State: resilience.StateHalfOpen},
	}}
	srv := newTestServer(analyzer)

	rec := doRequest(srv, http.MethodGet, "/api/v1/breakers", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]resilience.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 4)
	assert.Equal(t, resilience.StateOpen, body["satellite"].State)
	assert.Equal(t, 5, body["satellite"].FailureCount)
	assert.Equal(t, resilience.StateHalfOpen, body["ml"].State)
}

func TestBreakerReset(t *testing.T) {
	analyzer := &mockAnalyzer{statuses: map[domain.SourceKind]resilience.Status{
		domain.SourceSatellite: {State: resilience.StateClosed},
	}}
	srv := newTestServer(analyzer)

	rec := doRequest(srv, http.MethodPost, "/api/v1/breakers/satellite/reset", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []domain.SourceKind{domain.SourceSatellite}, analyzer.resets)
	assert.Contains(t, rec.Body.String(), "CLOSED")
}

func TestBreakerResetUnknownKind(t *testing.T) {
	srv := newTestServer(&mockAnalyzer{resetErr: fmt.Errorf(`unknown breaker kind "bogus"`)})

	rec := doRequest(srv, http.MethodPost, "/api/v1/breakers/bogus/reset", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "bogus")
}
