package handlers

import (
	"errors"
	"fmt"
	"html"
	"html/template"
	"log"
	"net/http"
	"strings"

	"lil-report/internal/theme"
	"lil-report/pkg/report"
)

const recentReports = 20

// Static serves the home page at /
func (h *Handler) Static() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		reports, err := h.service.List(r.Context(), "", recentReports)
		if err != nil {
			log.Printf("Failed to list reports for home page: %v", err)
		}

		if h.renderer != nil {
			data := &theme.TemplateData{
				Title:   "Home",
				Version: h.version,
				Data:    reports,
			}

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := h.renderer.RenderPage(w, "home.html", data); err != nil {
				log.Printf("Template rendering error: %v", err)
			}
			return
		}

		h.fallbackPage(w, "Lil-Report", `<p>Use <code>POST /api/reports</code> to generate a report.</p>`)
	}
}

// ReportView renders a stored report as a standalone page at /reports/{id}
func (h *Handler) ReportView() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}

		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/reports/"), "/")
		if id == "" {
			h.writeError(w, http.StatusBadRequest, "report ID required", "")
			return
		}

		rep, err := h.service.Get(r.Context(), id)
		if errors.Is(err, report.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "failed to load report", err.Error())
			return
		}

		if h.renderer != nil {
			data := &theme.TemplateData{
				Title:   rep.Query,
				Version: h.version,
				// #nosec G203 - content passes the report sanitizer first
				Content: template.HTML(report.SanitizeHTML(rep.Content)),
				Data:    rep,
			}

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := h.renderer.RenderPage(w, "report.html", data); err != nil {
				log.Printf("Template rendering error: %v", err)
			}
			return
		}

		h.fallbackPage(w, html.EscapeString(rep.Query), report.SanitizeHTML(rep.Content))
	}
}

// fallbackPage serves a bare page when templates failed to load
func (h *Handler) fallbackPage(w http.ResponseWriter, title, body string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
</head>
<body>
    <h1>%s</h1>
    %s
</body>
</html>`, title, title, body)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(page)); err != nil {
		log.Printf("Failed to write HTML response: %v", err)
	}
}
