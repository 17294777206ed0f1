// Package api provides the HTTP server for cbledger.
// Handlers validate primitive input and delegate to the app services; every
// rule about balances lives below this package.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fueleu/cbledger/internal/app/banking"
	"github.com/fueleu/cbledger/internal/app/compliance"
	"github.com/fueleu/cbledger/internal/app/pooling"
	"github.com/fueleu/cbledger/internal/domain"
	"github.com/fueleu/cbledger/internal/infra/logging"
	"github.com/fueleu/cbledger/internal/infra/observability"
)

// Version is reported by /api/version.
var Version = "0.1.0"

// MinYear is the earliest reporting year accepted by the API.
const MinYear = 2000

// Deps are the services the server exposes.
type Deps struct {
	Compliance *compliance.Service
	Banking    *banking.Service
	Pooling    *pooling.Service
	Routes     domain.RouteStore
	Tracer     *observability.Tracer
	Logger     *zap.Logger
}

// Server is the cbledger HTTP API server.
type Server struct {
	compliance     *compliance.Service
	banking        *banking.Service
	pooling        *pooling.Service
	routes         domain.RouteStore
	tracer         *observability.Tracer
	logger         *zap.Logger
	metricsEnabled bool
	corsOrigin     string
	now            func() time.Time
}

// NewServer creates a new API server.
func NewServer(d Deps) *Server {
	return &Server{
		compliance: d.Compliance,
		banking:    d.Banking,
		pooling:    d.Pooling,
		routes:     d.Routes,
		tracer:     d.Tracer,
		logger:     logging.OrNop(d.Logger).Named("http"),
		corsOrigin: "*",
		now:        time.Now,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetCORSOrigin sets Access-Control-Allow-Origin. Empty disables CORS headers.
func (s *Server) SetCORSOrigin(origin string) { s.corsOrigin = origin }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": s.now().UTC().Format(time.RFC3339),
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/routes", func(r chi.Router) {
			r.Get("/", s.handleListRoutes)
			r.Post("/", s.handleCreateRoute)
			r.Get("/comparison", s.handleComparison)
			r.Post("/{routeId}/baseline", s.handleSetBaseline)
		})

		r.Route("/compliance", func(r chi.Router) {
			r.Get("/cb", s.handleComputeCBQuery)
			r.Post("/cb", s.handleComputeCB)
			r.Get("/adjusted-cb", s.handleAdjustedCB)
		})

		r.Route("/banking", func(r chi.Router) {
			r.Get("/records", s.handleBankRecords)
			r.Post("/bank", s.handleBank)
			r.Post("/apply", s.handleApply)
		})

		r.Route("/pools", func(r chi.Router) {
			r.Get("/", s.handleListPools)
			r.Post("/", s.handleCreatePool)
			r.Post("/preview", s.handlePreviewPool)
			r.Get("/{id}", s.handleGetPool)
		})

		r.Get("/debug/spans", s.handleSpans)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// handleSpans returns the most recent ledger operation spans.
func (s *Server) handleSpans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "validation")
			return
		}
		limit = n
	}
	spans := s.tracer.Spans(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spans": spans,
		"count": len(spans),
	})
}

// ─── Middleware ─────────────────────────────────────────────────────────────

// accessLog logs each request and records its latency under the chi route
// pattern, so path parameters do not explode label cardinality.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		if reqID != "" {
			r = r.WithContext(observability.WithTraceID(r.Context(), reqID))
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		observability.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(elapsed.Seconds())
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("request_id", reqID),
		)
	})
}

// cors adds CORS headers for browser clients.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Request Helpers ────────────────────────────────────────────────────────

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return domain.Validationf("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

// parseYear parses a year query value. Empty yields 0 when optional.
func parseYear(raw string, required bool) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return 0, domain.Validationf("year is required")
		}
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf("year must be a valid integer (>= %d)", MinYear)
	}
	return year, checkYear(year)
}

func checkYear(year int) error {
	if year < MinYear {
		return domain.Validationf("year must be a valid integer (>= %d)", MinYear)
	}
	return nil
}

// parseFloat parses an optional numeric query value.
func parseFloat(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.Validationf("%s must be numeric", name)
	}
	return &v, nil
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    kind,
		},
	})
}

// writeDomainError maps err's domain kind to an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	kind := domain.KindOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeError(w, status, msg, kind)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrBanking),
		errors.Is(err, domain.ErrPooling),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
