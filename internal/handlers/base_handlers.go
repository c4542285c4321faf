package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"lil-report/internal/theme"
	"lil-report/pkg/ingest"
	"lil-report/pkg/llm"
	"lil-report/pkg/metrics"
	"lil-report/pkg/report"
)

// Handler is the main handler struct containing shared dependencies
type Handler struct {
	service  *report.Service
	version  string
	renderer *theme.Renderer
}

// ErrorResponse is the JSON body of every failed API call
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Constructor functions
func New(service *report.Service) *Handler {
	return NewWithVersion(service, "dev")
}

func NewWithVersion(service *report.Service, version string) *Handler {
	renderer, err := theme.NewRenderer()
	if err != nil {
		log.Printf("Failed to create theme renderer: %v", err)
		renderer = nil
	}
	return &Handler{service: service, version: version, renderer: renderer}
}

// Routes registers every endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/parse", h.Parse())
	mux.HandleFunc("/api/reports", h.Reports())
	mux.HandleFunc("/api/reports/", h.Report())
	mux.HandleFunc("/api/formats", h.Formats())
	mux.HandleFunc("/api/health", h.Health())
	mux.HandleFunc("/api/metrics", h.Metrics())
	mux.HandleFunc("/reports/", h.ReportView())
	mux.HandleFunc("/", h.Static())
	return mux
}

// LoggingMiddleware logs HTTP requests with details and records Prometheus metrics
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrappedWriter := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		log.Printf("[%s] %s %s - User-Agent: %s",
			r.Method, r.URL.Path, r.RemoteAddr, r.UserAgent())

		next.ServeHTTP(wrappedWriter, r)

		duration := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, endpointLabel(r.URL.Path), wrappedWriter.statusCode, duration)

		log.Printf("[%s] %s %s - %d - %v",
			r.Method, r.URL.Path, r.RemoteAddr, wrappedWriter.statusCode, duration)
	})
}

// RecoverMiddleware turns a handler panic into a 500 JSON error
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("[%s] %s panic: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// endpointLabel keeps metric cardinality bounded by collapsing report ids
func endpointLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/reports/"):
		return "/api/reports/{id}"
	case strings.HasPrefix(path, "/reports/"):
		return "/reports/{id}"
	default:
		return path
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Utility functions
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message string) {
	writeErrorResponse(w, status, errType, message)
}

func writeErrorResponse(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := ErrorResponse{
		Error:   errType,
		Message: message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeGenerateError maps report generation failures onto HTTP statuses
func (h *Handler) writeGenerateError(w http.ResponseWriter, err error) {
	status, errType := classifyError(err)
	h.writeError(w, status, errType, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, report.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, llm.ErrAuthentication):
		return http.StatusBadGateway, "llm_auth_failed"
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, "llm_rate_limited"
	case errors.Is(err, llm.ErrInvalidRequest):
		return http.StatusRequestEntityTooLarge, "llm_request_invalid"
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout, "llm_timeout"
	default:
		return http.StatusInternalServerError, "report_failed"
	}
}

func (h *Handler) limits() ingest.Limits {
	return h.service.Handler().Limits()
}
