package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"lil-report/pkg/config"
	"lil-report/pkg/ingest"
	"lil-report/pkg/prompt"
	"lil-report/pkg/report"
)

// version is set during build time via ldflags
var version = "dev"

const protocolVersion = "2024-11-05"

// JSON-RPC error codes
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
)

// ReportMCPServer exposes parsing and report generation as MCP tools over stdio
type ReportMCPServer struct {
	documents *ingest.DocumentHandler
	// service is nil when the model or store could not be set up; parsing
	// still works in that case
	service    *report.Service
	serviceErr error
}

// MCPMessage is a JSON-RPC 2.0 request or response
type MCPMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *MCPError       `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type MCPCallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type MCPCallToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

func main() {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	cfg, err := config.LoadProfile()
	if err != nil {
		log.Printf("Failed to load profile config, using defaults: %v", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	server := NewReportMCPServer(context.Background(), cfg)
	defer server.Close()

	server.Serve(os.Stdin, os.Stdout)
}

func NewReportMCPServer(ctx context.Context, cfg *config.Config) *ReportMCPServer {
	s := &ReportMCPServer{
		documents: ingest.NewDocumentHandler(ingest.Limits{
			MaxFileChars:   cfg.Limits.MaxFileChars,
			MaxTableRows:   cfg.Limits.MaxTableRows,
			MaxUploadBytes: cfg.Limits.MaxUploadBytes,
		}),
	}

	if err := cfg.Validate(); err != nil {
		s.serviceErr = err
	} else if service, err := report.Open(ctx, cfg); err != nil {
		s.serviceErr = err
	} else {
		s.service = service
	}
	if s.serviceErr != nil {
		log.Printf("Report tools disabled: %v", s.serviceErr)
	}
	return s
}

func (s *ReportMCPServer) Close() {
	if s.service != nil {
		s.service.Close()
	}
}

// Serve answers one JSON-RPC message per decoded value until EOF
func (s *ReportMCPServer) Serve(in io.Reader, out io.Writer) {
	decoder := json.NewDecoder(in)
	encoder := json.NewEncoder(out)

	for {
		var message MCPMessage
		if err := decoder.Decode(&message); err != nil {
			if err != io.EOF {
				log.Printf("Failed to decode message: %v", err)
			}
			return
		}

		response := s.processMessage(message)
		if response != nil {
			if err := encoder.Encode(response); err != nil {
				log.Printf("Failed to encode response: %v", err)
				return
			}
		}
	}
}

func (s *ReportMCPServer) processMessage(message MCPMessage) *MCPMessage {
	switch message.Method {
	case "initialize":
		return s.result(message.ID, map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo":      map[string]string{"name": "lil-report", "version": version},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.result(message.ID, map[string]interface{}{"tools": toolList()})
	case "tools/call":
		return s.handleToolsCall(message)
	default:
		return s.errorResponse(message.ID, codeMethodNotFound, "Method not found")
	}
}

func toolList() []MCPTool {
	return []MCPTool{
		{
			Name:        "lilreport_parse_file",
			Description: "Extract text, tables and metadata from a local document (.txt, .md, .csv, .xlsx, .xls, .pdf, .docx, .doc, .html)",
			InputSchema: objectSchema(map[string]interface{}{
				"file_path": stringProp("Path to the file to parse"),
			}, "file_path"),
		},
		{
			Name:        "lilreport_generate_report",
			Description: "Generate an HTML report answering a question about local documents, optionally with charts",
			InputSchema: objectSchema(map[string]interface{}{
				"query":          stringProp("What the report should answer"),
				"file_paths":     map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}, "description": "Documents to analyze"},
				"include_graphs": map[string]interface{}{"type": "boolean", "description": "Ask for inline charts", "default": false},
				"company":        stringProp("Company the report is written for"),
			}, "query"),
		},
		{
			Name:        "lilreport_get_report",
			Description: "Fetch a stored report by id",
			InputSchema: objectSchema(map[string]interface{}{
				"report_id": stringProp("Report id"),
			}, "report_id"),
		},
		{
			Name:        "lilreport_list_reports",
			Description: "List stored reports, newest first",
			InputSchema: objectSchema(map[string]interface{}{
				"user_id": stringProp("Only reports of this user"),
				"limit":   map[string]interface{}{"type": "integer", "description": "Maximum number of reports (default 20)", "default": 20},
			}),
		},
	}
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func (s *ReportMCPServer) handleToolsCall(message MCPMessage) *MCPMessage {
	var callParams MCPCallToolParams
	if err := json.Unmarshal(message.Params, &callParams); err != nil {
		return s.errorResponse(message.ID, codeInvalidParams, "Invalid params")
	}

	ctx := context.Background()
	switch callParams.Name {
	case "lilreport_parse_file":
		return s.handleParseFile(message.ID, callParams.Arguments)
	case "lilreport_generate_report":
		return s.handleGenerate(ctx, message.ID, callParams.Arguments)
	case "lilreport_get_report":
		return s.handleGetReport(ctx, message.ID, callParams.Arguments)
	case "lilreport_list_reports":
		return s.handleListReports(ctx, message.ID, callParams.Arguments)
	default:
		return s.errorResponse(message.ID, codeMethodNotFound, "Tool not found")
	}
}

func (s *ReportMCPServer) handleParseFile(id interface{}, args map[string]interface{}) *MCPMessage {
	path, ok := args["file_path"].(string)
	if !ok || path == "" {
		return s.errorResponse(id, codeInvalidParams, "file_path parameter is required and must be a non-empty string")
	}

	upload, err := readUpload(path)
	if err != nil {
		return s.errorResponse(id, codeInvalidParams, err.Error())
	}

	result := s.documents.Parse(upload)

	var b strings.Builder
	fmt.Fprintf(&b, "Summary: %s\n", result.Summary)
	if result.Failed() {
		fmt.Fprintf(&b, "Extraction error: %s\n", result.Error)
	}
	b.WriteString("\n")
	b.WriteString(result.Text)

	return s.toolResult(id, b.String(), result.Failed())
}

func (s *ReportMCPServer) handleGenerate(ctx context.Context, id interface{}, args map[string]interface{}) *MCPMessage {
	if s.service == nil {
		return s.errorResponse(id, codeInternal, fmt.Sprintf("Report generation unavailable: %v", s.serviceErr))
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return s.errorResponse(id, codeInvalidParams, "query parameter is required and must be a non-empty string")
	}
	includeGraphs, _ := args["include_graphs"].(bool)
	company, _ := args["company"].(string)

	var files []report.FileContent
	if paths, ok := args["file_paths"].([]interface{}); ok {
		for _, p := range paths {
			path, ok := p.(string)
			if !ok {
				return s.errorResponse(id, codeInvalidParams, "file_paths must contain strings")
			}
			upload, err := readUpload(path)
			if err != nil {
				return s.errorResponse(id, codeInvalidParams, err.Error())
			}
			files = append(files, report.FileContent{Name: upload.Name, Data: upload.Data})
		}
	}

	rep, err := s.service.Generate(ctx, report.GenerateRequest{
		Query:         query,
		Company:       prompt.CompanyContext{Name: company},
		IncludeGraphs: includeGraphs,
		Files:         files,
	})
	if err != nil {
		return s.toolResult(id, fmt.Sprintf("Report generation failed: %v", err), true)
	}

	return s.toolResult(id, fmt.Sprintf("Report %s (%d chart(s))\n\n%s", rep.ID, len(rep.Charts), rep.Content), false)
}

func (s *ReportMCPServer) handleGetReport(ctx context.Context, id interface{}, args map[string]interface{}) *MCPMessage {
	if s.service == nil {
		return s.errorResponse(id, codeInternal, fmt.Sprintf("Report store unavailable: %v", s.serviceErr))
	}

	reportID, ok := args["report_id"].(string)
	if !ok || reportID == "" {
		return s.errorResponse(id, codeInvalidParams, "report_id parameter is required and must be a non-empty string")
	}

	rep, err := s.service.Get(ctx, reportID)
	if err != nil {
		return s.toolResult(id, fmt.Sprintf("Failed to load report: %v", err), true)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return s.errorResponse(id, codeInternal, err.Error())
	}
	return s.toolResult(id, string(data), false)
}

func (s *ReportMCPServer) handleListReports(ctx context.Context, id interface{}, args map[string]interface{}) *MCPMessage {
	if s.service == nil {
		return s.errorResponse(id, codeInternal, fmt.Sprintf("Report store unavailable: %v", s.serviceErr))
	}

	userID, _ := args["user_id"].(string)
	limit := 20
	// JSON numbers decode as float64
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	reports, err := s.service.List(ctx, userID, limit)
	if err != nil {
		return s.toolResult(id, fmt.Sprintf("Failed to list reports: %v", err), true)
	}
	if len(reports) == 0 {
		return s.toolResult(id, "No reports found.", false)
	}

	var b strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&b, "%s  %s  %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Query)
	}
	return s.toolResult(id, b.String(), false)
}

func readUpload(path string) (ingest.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Upload{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return ingest.Upload{Name: filepath.Base(path), Data: data}, nil
}

func (s *ReportMCPServer) result(id interface{}, result interface{}) *MCPMessage {
	return &MCPMessage{JSONRPC: "2.0", ID: id, Result: result}
}

func (s *ReportMCPServer) toolResult(id interface{}, text string, isError bool) *MCPMessage {
	return s.result(id, MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: text}},
		IsError: isError,
	})
}

func (s *ReportMCPServer) errorResponse(id interface{}, code int, message string) *MCPMessage {
	return &MCPMessage{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: message},
	}
}
