package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"lil-report/pkg/charts"
	"lil-report/pkg/llm"
)

func TestSystemPrompt(t *testing.T) {
	company := CompanyContext{Name: "Acme", Industry: "logistics", Context: "Q3 focus on margins"}

	plain := SystemPrompt(company, false)
	for _, want := range []string{"Acme", "logistics", "Q3 focus on margins", "FORMATTING RULES"} {
		if !strings.Contains(plain, want) {
			t.Errorf("Expected system prompt to contain %q", want)
		}
	}
	if strings.Contains(plain, charts.StartToken) {
		t.Error("Expected no chart grammar without graphs")
	}

	withGraphs := SystemPrompt(company, true)
	for _, want := range []string{charts.StartToken, charts.EndToken, `"datasets"`, "polarArea"} {
		if !strings.Contains(withGraphs, want) {
			t.Errorf("Expected chart grammar to contain %q", want)
		}
	}
}

func TestSystemPrompt_GrammarExampleExtracts(t *testing.T) {
	sys := SystemPrompt(CompanyContext{}, true)
	start := strings.Index(sys, charts.StartToken)
	end := strings.Index(sys, charts.EndToken)
	if start < 0 || end < start {
		t.Fatal("Expected a delimited example")
	}

	result := charts.Extract(sys[start : end+len(charts.EndToken)])
	if len(result.Charts) != 1 {
		t.Errorf("Expected the grammar example to be a valid chart, got %q", result.Content)
	}
}

func TestUserPrompt(t *testing.T) {
	tests := []struct {
		name          string
		context       string
		includeGraphs bool
		wantDocs      bool
		wantVisualize bool
	}{
		{name: "no context", context: "", includeGraphs: true, wantDocs: false, wantVisualize: false},
		{name: "prose", context: "Meeting notes about hiring", includeGraphs: true, wantDocs: true, wantVisualize: false},
		{name: "tabular with graphs", context: "CSV Headers: a | b", includeGraphs: true, wantDocs: true, wantVisualize: true},
		{name: "tabular without graphs", context: "=== Sheet: S1 ===", includeGraphs: false, wantDocs: true, wantVisualize: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserPrompt(tt.context, "Summarize sales", tt.includeGraphs)

			if strings.Contains(got, documentBanner) != tt.wantDocs {
				t.Errorf("document banner present = %v, want %v", !tt.wantDocs, tt.wantDocs)
			}
			if strings.Contains(got, "Include at least one chart") != tt.wantVisualize {
				t.Errorf("visualize instruction present = %v, want %v", !tt.wantVisualize, tt.wantVisualize)
			}
			if !strings.Contains(got, requestBanner+"\nSummarize sales") {
				t.Error("Expected literal query after request banner")
			}
			if tt.wantDocs && strings.Index(got, documentBanner) > strings.Index(got, requestBanner) {
				t.Error("Expected documents before the request")
			}
		})
	}
}

func TestLooksTabular(t *testing.T) {
	tests := []struct {
		context  string
		expected bool
	}{
		{"Table \"sales\": 2 rows", true},
		{"CSV Headers: x", true},
		{"=== Sheet: Data ===", true},
		{"Headers: a", true},
		{"North | 120", true},
		{"A memo about the table tennis club", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksTabular(tt.context); got != tt.expected {
			t.Errorf("LooksTabular(%q) = %v, want %v", tt.context, got, tt.expected)
		}
	}
}

func TestHistory(t *testing.T) {
	var entries []HistoryEntry
	for i := 0; i < 14; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		entries = append(entries, HistoryEntry{Role: role, Content: json.RawMessage(fmt.Sprintf("%q", fmt.Sprint("turn ", i)))})
	}
	entries = append(entries[:12:12], HistoryEntry{Role: "system", Content: json.RawMessage(`"ignored"`)}, entries[12], entries[13])

	msgs := History(entries, 10)
	if len(msgs) != 9 {
		t.Fatalf("Expected 9 messages after windowing and filtering, got %d", len(msgs))
	}
	if msgs[0].Content != "turn 5" {
		t.Errorf("Expected window to start at turn 5, got %q", msgs[0].Content)
	}
	if msgs[len(msgs)-1].Content != "turn 13" || msgs[len(msgs)-1].Role != llm.RoleAssistant {
		t.Errorf("Unexpected last message %+v", msgs[len(msgs)-1])
	}
}

func TestHistory_NonStringContent(t *testing.T) {
	msgs := History([]HistoryEntry{
		{Role: "user", Content: json.RawMessage(`{"text":"structured","n":1}`)},
		{Role: "assistant", Content: json.RawMessage(`[1,2]`)},
		{Role: "user", Content: nil},
	}, 0)

	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != `{"text":"structured","n":1}` {
		t.Errorf("Expected JSON text, got %q", msgs[0].Content)
	}
	if msgs[1].Content != "[1,2]" || msgs[2].Content != "" {
		t.Errorf("Unexpected contents %q, %q", msgs[1].Content, msgs[2].Content)
	}
}

func TestBuild(t *testing.T) {
	req := Build(Input{
		Company:       CompanyContext{Name: "Acme"},
		Context:       "CSV Headers: a | b",
		Query:         "Chart it",
		IncludeGraphs: true,
		History: []HistoryEntry{
			{Role: "user", Content: json.RawMessage(`"earlier"`)},
			{Role: "assistant", Content: json.RawMessage(`"answer"`)},
		},
		MaxTokens: 512,
	})

	if len(req.Messages) != 3 {
		t.Fatalf("Expected history plus final message, got %d", len(req.Messages))
	}
	last := req.Messages[2]
	if last.Role != llm.RoleUser || !strings.Contains(last.Content, "Chart it") {
		t.Errorf("Unexpected final message %+v", last)
	}
	if !strings.Contains(req.System, charts.StartToken) {
		t.Error("Expected chart grammar in system prompt")
	}
	if req.MaxTokens != 512 {
		t.Errorf("Expected max tokens 512, got %d", req.MaxTokens)
	}
}
