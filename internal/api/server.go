package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/internal/aggregator"
	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

// SeriesProvider answers time-series queries
type SeriesProvider interface {
	Series(ctx context.Context, coin string, width aggregator.BucketWidth, frame aggregator.Timeframe) ([]models.SeriesPoint, error)
	Coins(ctx context.Context) ([]string, error)
}

// HealthChecker reports dependency health
type HealthChecker interface {
	Health() error
}

// Server exposes the sentiment query API plus liveness and readiness probes
type Server struct {
	server      *http.Server
	provider    SeriesProvider
	broadcaster *Broadcaster
	checks      map[string]HealthChecker
	ready       bool
	readyMu     sync.RWMutex
	startTime   time.Time
}

// HealthStatus represents process health
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ReadinessStatus represents system readiness
type ReadinessStatus struct {
	Ready     bool              `json:"ready"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// NewServer creates the API server. checks maps dependency names to their
// health probes; a nil broadcaster disables the websocket endpoint.
func NewServer(port string, provider SeriesProvider, broadcaster *Broadcaster, checks map[string]HealthChecker) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         ":" + port,
			Handler:      withCORS(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		provider:    provider,
		broadcaster: broadcaster,
		checks:      checks,
		ready:       false,
		startTime:   time.Now(),
	}

	mux.HandleFunc("/api/sentiment-timeseries", s.handleTimeseries)
	mux.HandleFunc("/api/coins", s.handleCoins)

	// Health endpoints for K8s probes
	mux.HandleFunc("/health", s.handleHealth)    // Liveness probe
	mux.HandleFunc("/ready", s.handleReadiness)  // Readiness probe
	mux.HandleFunc("/healthz", s.handleHealth)   // Alias
	mux.HandleFunc("/readyz", s.handleReadiness) // Alias

	if broadcaster != nil {
		mux.HandleFunc("/ws", broadcaster.Handler())
	}

	return s
}

// Start starts the API server
func (s *Server) Start() error {
	logger.Info("api server starting",
		zap.String("addr", s.server.Addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping api server...")
	return s.server.Shutdown(ctx)
}

// SetReady marks the service as ready
func (s *Server) SetReady(ready bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready = ready
}

// handleTimeseries serves GET /api/sentiment-timeseries.
// Query params: coin (required), timeframe (24h|7d|30d|60d, default 7d),
// interval (hour|day|week|month, default day).
func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	coin := strings.TrimSpace(r.URL.Query().Get("coin"))
	if coin == "" {
		writeError(w, http.StatusBadRequest, "coin parameter is required")
		return
	}

	frame := aggregator.ParseTimeframe(r.URL.Query().Get("timeframe"))
	width := aggregator.ParseBucketWidth(r.URL.Query().Get("interval"))

	series, err := s.provider.Series(r.Context(), coin, width, frame)
	if err != nil {
		logger.Error("timeseries query failed",
			zap.String("coin", coin),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	resp := models.SeriesResponse{
		Coin:   coin,
		Frame:  string(frame),
		Series: series,
	}

	if len(series) == 0 {
		resp.Series = []models.SeriesPoint{}
		resp.Message = fmt.Sprintf("No data available for %s in the last %s.", coin, frame)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCoins serves GET /api/coins
func (s *Server) handleCoins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	coins, err := s.provider.Coins(r.Context())
	if err != nil {
		logger.Error("coins query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	if coins == nil {
		coins = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"coins": coins})
}

// handleHealth handles liveness probe - /health
// Returns 200 if process is alive (even if dependencies are down)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}

	if r.URL.Query().Get("verbose") == "true" {
		status.Checks = s.runChecks()
	}

	writeJSON(w, http.StatusOK, status)
}

// handleReadiness handles readiness probe - /ready
// Returns 200 only if startup finished and dependencies are healthy
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.readyMu.RLock()
	ready := s.ready
	s.readyMu.RUnlock()

	checks := s.runChecks()

	allHealthy := true
	for _, v := range checks {
		if v != "healthy" {
			allHealthy = false
			break
		}
	}

	isReady := ready && allHealthy

	status := ReadinessStatus{
		Ready:     isReady,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	code := http.StatusOK
	if !isReady {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, status)
}

func (s *Server) runChecks() map[string]string {
	checks := make(map[string]string, len(s.checks))
	for name, checker := range s.checks {
		if err := checker.Health(); err != nil {
			checks[name] = "unhealthy: " + err.Error()
		} else {
			checks[name] = "healthy"
		}
	}
	return checks
}

// withCORS allows the dashboard frontend to query from another origin
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
