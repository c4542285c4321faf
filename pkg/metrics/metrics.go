package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Success labels for metrics
const (
	SuccessTrue  = "true"
	SuccessFalse = "false"
)

var (
	// HTTP request metrics
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lilreport_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status_code"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lilreport_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status_code"})

	// Document parsing metrics
	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lilreport_parse_duration_seconds",
		Help:    "Duration of single-file parsing in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"format", "success"})

	ParseRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lilreport_parse_requests_total",
		Help: "Total number of parsed files",
	}, []string{"format", "success"})

	ParsedCharacters = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lilreport_parsed_characters",
		Help:    "Characters extracted per file before truncation",
		Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
	}, []string{"format"})

	TruncatedFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lilreport_truncated_files_total",
		Help: "Total number of files whose text was cut at the size cap",
	}, []string{"format"})

	// Report generation metrics
	ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lilreport_report_duration_seconds",
		Help:    "Duration of report generation in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60, 120, 180},
	}, []string{"success"})

	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lilreport_reports_total",
		Help: "Total number of report generation requests",
	}, []string{"success"})

	ContextCharacters = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lilreport_context_characters",
		Help:    "Size of the normalized document context sent to the model",
		Buckets: []float64{0, 1000, 5000, 10000, 25000, 50000, 100000, 150000},
	}, []string{})

	// LLM metrics
	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lilreport_llm_duration_seconds",
		Help:    "Duration of language model calls in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60, 120, 180},
	}, []string{"provider", "model", "outcome"})

	LLMTokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lilreport_llm_tokens_used_total",
		Help: "Total LLM tokens reported by the provider",
	}, []string{"provider", "model", "direction"}) // direction: input/output

	// Chart extraction metrics
	ChartsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lilreport_charts_total",
		Help: "Chart blocks found in model output",
	}, []string{"result"}) // result: ok/invalid

	// Storage metrics
	ReportsStored = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lilreport_reports_stored",
		Help: "Number of reports in the store",
	}, []string{"driver"})
)

// Helper functions for recording metrics with timing
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := prometheus.Labels{
		"method":      method,
		"endpoint":    endpoint,
		"status_code": strconv.Itoa(statusCode),
	}
	HTTPRequestDuration.With(status).Observe(duration.Seconds())
	HTTPRequestsTotal.With(status).Inc()
}

func RecordParse(format string, duration time.Duration, success bool, characters int, truncated bool) {
	successLabel := successValue(success)

	ParseDuration.WithLabelValues(format, successLabel).Observe(duration.Seconds())
	ParseRequestsTotal.WithLabelValues(format, successLabel).Inc()
	ParsedCharacters.WithLabelValues(format).Observe(float64(characters))
	if truncated {
		TruncatedFilesTotal.WithLabelValues(format).Inc()
	}
}

func RecordReport(duration time.Duration, success bool, contextChars int) {
	successLabel := successValue(success)

	ReportDuration.WithLabelValues(successLabel).Observe(duration.Seconds())
	ReportsTotal.WithLabelValues(successLabel).Inc()
	if success {
		ContextCharacters.WithLabelValues().Observe(float64(contextChars))
	}
}

func RecordLLMRequest(provider, model, outcome string, duration time.Duration, inputTokens, outputTokens int) {
	LLMRequestDuration.WithLabelValues(provider, model, outcome).Observe(duration.Seconds())
	if inputTokens > 0 {
		LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

func RecordCharts(ok, invalid int) {
	if ok > 0 {
		ChartsExtracted.WithLabelValues("ok").Add(float64(ok))
	}
	if invalid > 0 {
		ChartsExtracted.WithLabelValues("invalid").Add(float64(invalid))
	}
}

func UpdateReportCount(driver string, count int) {
	ReportsStored.WithLabelValues(driver).Set(float64(count))
}

func successValue(success bool) string {
	if success {
		return SuccessTrue
	}
	return SuccessFalse
}
