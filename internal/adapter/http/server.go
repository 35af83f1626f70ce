package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/canopy-watch/internal/domain"
	"github.com/couchcryptid/canopy-watch/internal/resilience"
)

// defaultSizeKm applies to analysis requests that omit size_km, matching the
// watchlist default.
const defaultSizeKm = 10.0

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Analyzer is the pipeline surface the HTTP API serves: on-demand analyses
// plus the operator's breaker diagnostics.
type Analyzer interface {
	ReadinessChecker
	Analyze(ctx context.Context, region domain.Region) (domain.Report, error)
	AnalyzeBatch(ctx context.Context, regions []domain.Region) ([]domain.Report, error)
	Latest(regionName string) (domain.Report, bool)
	BreakerStatus() map[domain.SourceKind]resilience.Status
	ResetBreaker(kind domain.SourceKind) error
}

// Server exposes the analysis API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	analyzer   Analyzer
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, analyzer Analyzer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		analyzer: analyzer,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(analyzer))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/v1/analyze/batch", s.handleAnalyzeBatch)
	mux.HandleFunc("GET /api/v1/regions/{name}/latest", s.handleLatest)
	mux.HandleFunc("GET /api/v1/breakers", s.handleBreakers)
	mux.HandleFunc("POST /api/v1/breakers/{kind}/reset", s.handleBreakerReset)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// regionRequest is the wire shape of one region in analyze requests.
type regionRequest struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	SizeKm float64 `json:"size_km"`
}

func (r regionRequest) region() domain.Region {
	size := r.SizeKm
	if size == 0 {
		size = defaultSizeKm
	}
	return domain.Region{Name: r.Name, Lat: r.Lat, Lon: r.Lon, SizeKm: size}
}

type batchRequest struct {
	Regions []regionRequest `json:"regions"`
}

type batchResponse struct {
	Count   int             `json:"count"`
	Reports []domain.Report `json:"reports"`
}

// handleAnalyze runs one analysis synchronously. Input validation is the only
// caller-visible failure; a degraded upstream still produces a 200 report.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req regionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	region := req.region()
	if err := region.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.analyzer.Analyze(r.Context(), region)
	if err != nil {
		s.logger.Error("analysis failed", "region", region.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAnalyzeBatch fans out one analysis per region. The whole batch is
// validated before any analysis starts.
func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Regions) == 0 {
		writeError(w, http.StatusBadRequest, "regions is empty")
		return
	}

	regions := make([]domain.Region, len(req.Regions))
	for i, rr := range req.Regions {
		regions[i] = rr.region()
		if err := regions[i].Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "region "+regions[i].Name+": "+err.Error())
			return
		}
	}

	reports, err := s.analyzer.AnalyzeBatch(r.Context(), regions)
	if err != nil {
		s.logger.Error("batch analysis failed", "regions", len(regions), "error", err)
		writeError(w, http.StatusInternalServerError, "batch analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Count: len(reports), Reports: reports})
}

// handleLatest serves the most recent retained report for a region.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	report, ok := s.analyzer.Latest(name)
	if !ok {
		writeError(w, http.StatusNotFound, "no report for region "+name)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleBreakers reports every circuit breaker's status, keyed by upstream
// kind.
func (s *Server) handleBreakers(w http.ResponseWriter, _ *http.Request) {
	statuses := s.analyzer.BreakerStatus()
	out := make(map[string]resilience.Status, len(statuses))
	for kind, status := range statuses {
		out[string(kind)] = status
	}
	writeJSON(w, http.StatusOK, out)
}

// handleBreakerReset force-closes one breaker for manual recovery.
func (s *Server) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	kind := domain.SourceKind(r.PathValue("kind"))
	if err := s.analyzer.ResetBreaker(kind); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Info("breaker reset via api", "kind", kind)
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":   kind,
		"status": s.analyzer.BreakerStatus()[kind],
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
