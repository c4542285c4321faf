package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lil-report/pkg/charts"
	"lil-report/pkg/ingest"
	"lil-report/pkg/llm"
	"lil-report/pkg/report"
)

const (
	// multipart framing allowance on top of the file size cap
	formOverhead = 1 << 20

	// report requests may carry several base64 encoded files
	maxReportBody = 64 << 20
)

// ParseResponse is the result of POST /api/parse. Content and Text carry the
// same string; Structured is the first extracted table, if any.
type ParseResponse struct {
	Success    bool            `json:"success"`
	Content    string          `json:"content"`
	Text       string          `json:"text"`
	Structured *ingest.Table   `json:"structured,omitempty"`
	Tables     []ingest.Table  `json:"tables"`
	Metadata   ingest.Metadata `json:"metadata"`
	Summary    string          `json:"summary"`
	Error      string          `json:"error,omitempty"`
}

// GenerateResponse is the result of POST /api/reports
type GenerateResponse struct {
	ID      string             `json:"id"`
	Content string             `json:"content"`
	Charts  []charts.ChartSpec `json:"charts"`
	Model   string             `json:"model"`
	Usage   llm.Usage          `json:"usage"`
}

// ListResponse is the result of GET /api/reports
type ListResponse struct {
	Reports []report.Report `json:"reports"`
	Count   int             `json:"count"`
}

// FormatInfo describes one supported input format
type FormatInfo struct {
	Format     ingest.Format `json:"format"`
	Extensions []string      `json:"extensions"`
}

// Parse handles single file extraction at /api/parse
func (h *Handler) Parse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}

		maxBytes := h.limits().MaxUploadBytes
		r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes)+formOverhead)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.writeError(w, http.StatusBadRequest, "file too large",
					fmt.Sprintf("uploads are limited to %d bytes", maxBytes))
				return
			}
			h.writeError(w, http.StatusBadRequest, "failed to parse form", err.Error())
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "file is required", err.Error())
			return
		}
		defer file.Close()

		if header.Size > int64(maxBytes) {
			h.writeError(w, http.StatusBadRequest, "file too large",
				fmt.Sprintf("%s is %d bytes; uploads are limited to %d bytes", header.Filename, header.Size, maxBytes))
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "failed to read file", err.Error())
			return
		}

		mimeType := r.FormValue("mimeType")
		if mimeType == "" {
			mimeType = header.Header.Get("Content-Type")
		}

		log.Printf("Parsing upload %s (%d bytes, %s)", header.Filename, len(data), mimeType)
		result := h.service.Parse(ingest.Upload{Name: header.Filename, MimeType: mimeType, Data: data})

		h.writeJSON(w, http.StatusOK, newParseResponse(result))
	}
}

func newParseResponse(result ingest.ParsedResult) ParseResponse {
	resp := ParseResponse{
		Success:  !result.Failed(),
		Content:  result.Text,
		Text:     result.Text,
		Tables:   result.Tables,
		Metadata: result.Metadata,
		Summary:  result.Summary,
		Error:    result.Error,
	}
	if resp.Tables == nil {
		resp.Tables = []ingest.Table{}
	}
	if len(resp.Tables) > 0 {
		resp.Structured = &resp.Tables[0]
	}
	return resp
}

// Reports handles POST (generate) and GET (list) at /api/reports
func (h *Handler) Reports() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.handleGenerate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		}
	}
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReportBody)

	var req report.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Failed to decode report request: %v", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	log.Printf("Generating report for user %q: %d file(s), graphs=%t, extended=%t",
		req.UserID, len(req.Files), req.IncludeGraphs, req.ExtendedAnalysis)

	rep, err := h.service.Generate(r.Context(), req)
	if err != nil {
		log.Printf("Report generation failed: %v", err)
		h.writeGenerateError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, GenerateResponse{
		ID:      rep.ID,
		Content: rep.Content,
		Charts:  rep.Charts,
		Model:   rep.Model,
		Usage:   rep.Usage,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := report.DefaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	reports, err := h.service.List(r.Context(), r.URL.Query().Get("userId"), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list reports", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, ListResponse{Reports: reports, Count: len(reports)})
}

// Report handles GET /api/reports/{id}
func (h *Handler) Report() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}

		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/reports/"), "/")
		if id == "" {
			h.writeError(w, http.StatusBadRequest, "report ID required", "")
			return
		}

		rep, err := h.service.Get(r.Context(), id)
		if errors.Is(err, report.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "report not found", id)
			return
		}
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "failed to load report", err.Error())
			return
		}

		h.writeJSON(w, http.StatusOK, rep)
	}
}

// Formats lists supported formats at /api/formats
func (h *Handler) Formats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}

		formats := make([]FormatInfo, 0)
		for format, exts := range h.service.Handler().GetSupportedFormats() {
			formats = append(formats, FormatInfo{Format: format, Extensions: exts})
		}
		sort.Slice(formats, func(i, j int) bool { return formats[i].Format < formats[j].Format })

		limits := h.limits()
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"formats":        formats,
			"maxUploadBytes": limits.MaxUploadBytes,
			"maxFileChars":   limits.MaxFileChars,
			"maxTableRows":   limits.MaxTableRows,
		})
	}
}

// Health handles health check requests at /api/health
func (h *Handler) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}

		status := map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"version":   h.version,
		}
		if count, err := h.service.Store().Count(r.Context()); err == nil {
			status["reports"] = count
			status["storage"] = h.service.Store().Driver()
		} else {
			log.Printf("Health check could not reach report store: %v", err)
			status["status"] = "degraded"
		}

		provider, model := h.service.Model()
		llmStatus := map[string]interface{}{"provider": provider, "model": model, "status": "not checked"}
		if checked, err := h.service.CheckModel(r.Context()); checked {
			if err != nil {
				log.Printf("Health check could not reach model %s/%s: %v", provider, model, err)
				llmStatus["status"] = "unavailable"
				llmStatus["error"] = err.Error()
				status["status"] = "degraded"
			} else {
				llmStatus["status"] = "available"
			}
		}
		status["llm"] = llmStatus

		h.writeJSON(w, http.StatusOK, status)
	}
}

// Metrics handles metrics requests at /api/metrics
func (h *Handler) Metrics() http.HandlerFunc {
	return promhttp.Handler().ServeHTTP
}
