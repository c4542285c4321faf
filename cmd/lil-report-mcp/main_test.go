package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lil-report/pkg/ingest"
	"lil-report/pkg/llm"
	"lil-report/pkg/report"
)

type echoClient struct{}

func (echoClient) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: "<p>Revenue is up.</p>", Model: "echo"}, nil
}
func (echoClient) Provider() string { return "echo" }
func (echoClient) Model() string    { return "echo" }

func newTestServer(withService bool) *ReportMCPServer {
	documents := ingest.NewDocumentHandler(ingest.DefaultLimits())
	s := &ReportMCPServer{documents: documents}
	if withService {
		s.service = report.NewService(documents, ingest.NewNormalizer(0, 1), echoClient{}, report.NewMemoryStore(), report.Options{})
	} else {
		s.serviceErr = errors.New("llm.api_key is required")
	}
	return s
}

func call(t *testing.T, s *ReportMCPServer, method string, params interface{}) *MCPMessage {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("Failed to marshal params: %v", err)
	}
	return s.processMessage(MCPMessage{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

func toolText(t *testing.T, msg *MCPMessage) (string, bool) {
	t.Helper()
	if msg.Error != nil {
		t.Fatalf("Unexpected RPC error: %+v", msg.Error)
	}
	res, ok := msg.Result.(MCPCallToolResult)
	if !ok {
		t.Fatalf("Unexpected result type %T", msg.Result)
	}
	return res.Content[0].Text, res.IsError
}

func TestToolsList(t *testing.T) {
	msg := call(t, newTestServer(true), "tools/list", nil)
	result := msg.Result.(map[string]interface{})
	tools := result["tools"].([]MCPTool)
	if len(tools) != 4 {
		t.Errorf("Expected 4 tools, got %d", len(tools))
	}
}

func TestUnknownMethod(t *testing.T) {
	msg := call(t, newTestServer(true), "resources/list", nil)
	if msg.Error == nil || msg.Error.Code != codeMethodNotFound {
		t.Errorf("Expected method not found, got %+v", msg.Error)
	}
}

func TestParseFileTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte("region,revenue\nNorth,10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestServer(false)
	text, isErr := toolText(t, call(t, s, "tools/call", map[string]interface{}{
		"name":      "lilreport_parse_file",
		"arguments": map[string]interface{}{"file_path": path},
	}))
	if isErr {
		t.Errorf("Unexpected tool error: %s", text)
	}
	if !strings.Contains(text, "North") {
		t.Errorf("Parsed text missing: %s", text)
	}

	missing := call(t, s, "tools/call", map[string]interface{}{
		"name":      "lilreport_parse_file",
		"arguments": map[string]interface{}{"file_path": filepath.Join(t.TempDir(), "nope.txt")},
	})
	if missing.Error == nil || missing.Error.Code != codeInvalidParams {
		t.Errorf("Expected invalid params for missing file, got %+v", missing.Error)
	}
}

func TestGenerateAndListTools(t *testing.T) {
	s := newTestServer(true)

	text, isErr := toolText(t, call(t, s, "tools/call", map[string]interface{}{
		"name":      "lilreport_generate_report",
		"arguments": map[string]interface{}{"query": "Summarize everything"},
	}))
	if isErr || !strings.HasPrefix(text, "Report ") {
		t.Fatalf("Unexpected generate result: %s", text)
	}

	list, _ := toolText(t, call(t, s, "tools/call", map[string]interface{}{
		"name":      "lilreport_list_reports",
		"arguments": map[string]interface{}{"limit": 5},
	}))
	if !strings.Contains(list, "Summarize everything") {
		t.Errorf("Listed reports missing query: %s", list)
	}
}

func TestReportToolsWithoutService(t *testing.T) {
	msg := call(t, newTestServer(false), "tools/call", map[string]interface{}{
		"name":      "lilreport_generate_report",
		"arguments": map[string]interface{}{"query": "q"},
	})
	if msg.Error == nil || !strings.Contains(msg.Error.Message, "api_key") {
		t.Errorf("Expected unavailable error, got %+v", msg.Error)
	}
}

func TestServe(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}
{"jsonrpc":"2.0","method":"notifications/initialized"}
{"jsonrpc":"2.0","id":2,"method":"tools/list"}
`)
	var out bytes.Buffer
	newTestServer(false).Serve(in, &out)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 responses, got %d: %s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], protocolVersion) {
		t.Errorf("Initialize response missing protocol version: %s", lines[0])
	}
}
