package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"lil-report/pkg/charts"
	"lil-report/pkg/ingest"
	"lil-report/pkg/llm"
	"lil-report/pkg/metrics"
	"lil-report/pkg/prompt"
)

// ErrInvalidRequest marks requests rejected before any work is done
var ErrInvalidRequest = errors.New("invalid report request")

// FileContent is one file attached to a report request. Content holds text
// the client already parsed; Data holds raw bytes parsed here when Content
// is empty.
type FileContent struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`
	Summary string `json:"summary,omitempty"`
	Data    []byte `json:"data,omitempty"`
}

// GenerateRequest is everything needed to produce one report
type GenerateRequest struct {
	Query            string                `json:"query"`
	Company          prompt.CompanyContext `json:"company"`
	IncludeGraphs    bool                  `json:"includeGraphs"`
	ExtendedAnalysis bool                  `json:"extendedAnalysis"`
	History          []prompt.HistoryEntry `json:"history,omitempty"`
	Files            []FileContent         `json:"files,omitempty"`
	UserID           string                `json:"userId,omitempty"`
	CompanyID        string                `json:"companyId,omitempty"`
}

// Options tunes report generation
type Options struct {
	Timeout         time.Duration
	ExtendedTimeout time.Duration
	HistoryWindow   int
	MaxTokens       int
	Temperature     float64
}

func DefaultOptions() Options {
	return Options{
		Timeout:         60 * time.Second,
		ExtendedTimeout: 180 * time.Second,
		HistoryWindow:   prompt.DefaultHistoryWindow,
		MaxTokens:       llm.DefaultMaxTokens,
		Temperature:     llm.DefaultTemperature,
	}
}

const modelCheckTimeout = 5 * time.Second

// Service runs the parse, prompt, model and post-process pipeline
type Service struct {
	handler    *ingest.DocumentHandler
	normalizer *ingest.Normalizer
	client     llm.Client
	store      Store
	opts       Options
}

func NewService(handler *ingest.DocumentHandler, normalizer *ingest.Normalizer, client llm.Client, store Store, opts Options) *Service {
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.ExtendedTimeout <= 0 {
		opts.ExtendedTimeout = defaults.ExtendedTimeout
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaults.HistoryWindow
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}

	return &Service{
		handler:    handler,
		normalizer: normalizer,
		client:     client,
		store:      store,
		opts:       opts,
	}
}

// Model returns the provider and model reports are generated with
func (s *Service) Model() (provider, model string) {
	return s.client.Provider(), s.client.Model()
}

// CheckModel tests the model backend when the client supports it. checked is
// false for clients with no cheap connectivity test.
func (s *Service) CheckModel(ctx context.Context) (checked bool, err error) {
	tester, ok := s.client.(llm.ConnectionTester)
	if !ok {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()
	return true, tester.TestConnection(ctx)
}

// Parse extracts one uploaded file
func (s *Service) Parse(upload ingest.Upload) ingest.ParsedResult {
	return s.handler.Parse(upload)
}

// Handler returns the document handler used for parsing
func (s *Service) Handler() *ingest.DocumentHandler {
	return s.handler
}

// Store returns the report store
func (s *Service) Store() Store {
	return s.store
}

// Generate produces, persists and returns a report
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Report, error) {
	start := time.Now()
	contextChars := 0
	success := false
	defer func() {
		metrics.RecordReport(time.Since(start), success, contextChars)
	}()

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}

	files, err := s.resolveFiles(ctx, req.Files)
	if err != nil {
		return nil, err
	}
	documentContext := s.normalizer.Normalize(files)
	contextChars = len([]rune(documentContext))

	llmReq := prompt.Build(prompt.Input{
		Company:       req.Company,
		Context:       documentContext,
		Query:         req.Query,
		IncludeGraphs: req.IncludeGraphs,
		History:       req.History,
		HistoryWindow: s.opts.HistoryWindow,
		MaxTokens:     s.opts.MaxTokens,
		Temperature:   s.opts.Temperature,
	})

	resp, err := s.complete(ctx, llmReq, req.ExtendedAnalysis)
	if err != nil {
		return nil, err
	}

	extracted := charts.Extract(resp.Text)
	metrics.RecordCharts(len(extracted.Charts), extracted.Failed)
	if extracted.Failed > 0 {
		log.Printf("Report for user %q: %d chart block(s) could not be parsed", req.UserID, extracted.Failed)
	}

	model := resp.Model
	if model == "" {
		model = s.client.Model()
	}
	report := &Report{
		ID:        uuid.NewString(),
		Query:     req.Query,
		Content:   SanitizeHTML(extracted.Content),
		Charts:    extracted.Charts,
		CompanyID: req.CompanyID,
		UserID:    req.UserID,
		Model:     model,
		Usage:     resp.Usage,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	if count, err := s.store.Count(ctx); err == nil {
		metrics.UpdateReportCount(s.store.Driver(), count)
	}

	success = true
	log.Printf("Generated report %s (%d file(s), %d chart(s), %d/%d tokens) in %v",
		report.ID, len(files), len(report.Charts), resp.Usage.InputTokens, resp.Usage.OutputTokens, time.Since(start))
	return report, nil
}

// complete calls the model under the request deadline. A deadline hit is
// always reported as llm.ErrTimeout regardless of how the provider wrapped it.
func (s *Service) complete(ctx context.Context, req llm.Request, extended bool) (*llm.Response, error) {
	timeout := s.opts.Timeout
	if extended {
		timeout = s.opts.ExtendedTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.Complete(callCtx, req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, llm.ErrTimeout) {
			err = &llm.Error{Kind: llm.KindTimeout, Provider: s.client.Provider(), Err: err}
		}
		metrics.RecordLLMRequest(s.client.Provider(), s.client.Model(), outcome(err), time.Since(start), 0, 0)
		log.Printf("Language model call failed after %v: %v", time.Since(start), err)
		return nil, err
	}

	metrics.RecordLLMRequest(s.client.Provider(), s.client.Model(), "ok", time.Since(start),
		resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, llm.ErrAuthentication):
		return "auth_failed"
	case errors.Is(err, llm.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, llm.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, llm.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// resolveFiles turns request files into parsed results in request order.
// Pre-parsed content is used as is; raw bytes are parsed concurrently.
func (s *Service) resolveFiles(ctx context.Context, files []FileContent) ([]ingest.NamedResult, error) {
	results := make([]ingest.NamedResult, len(files))
	limits := s.handler.Limits()

	var uploads []ingest.Upload
	var uploadIdx []int
	for i, f := range files {
		switch {
		case strings.TrimSpace(f.Content) != "":
			text, truncated := ingest.Truncate(f.Content, limits.MaxFileChars)
			summary := f.Summary
			if truncated && summary != "" {
				summary += " (truncated)"
			}
			results[i] = ingest.NamedResult{Name: f.Name, Result: ingest.ParsedResult{Text: text, Summary: summary}}
		case len(f.Data) > 0:
			uploads = append(uploads, ingest.Upload{Name: f.Name, MimeType: f.Type, Data: f.Data})
			uploadIdx = append(uploadIdx, i)
		default:
			results[i] = ingest.NamedResult{Name: f.Name, Result: ingest.ParsedResult{
				Summary: "No content was provided for this file",
			}}
		}
	}

	if len(uploads) > 0 {
		parsed, err := s.normalizer.ParseAll(ctx, s.handler, uploads)
		if err != nil {
			return nil, err
		}
		for j, idx := range uploadIdx {
			results[idx] = parsed[j]
		}
	}

	return results, nil
}

// Get loads a stored report
func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	return s.store.Get(ctx, id)
}

// List returns the newest reports, optionally for one user
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Report, error) {
	return s.store.List(ctx, userID, limit)
}
