package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"lil-report/pkg/charts"
	"lil-report/pkg/llm"
)

const (
	// DefaultHistoryWindow is how many recent chat turns are sent to the model
	DefaultHistoryWindow = 10

	documentBanner = "=== UPLOADED DOCUMENTS ==="
	requestBanner  = "=== USER REQUEST ==="
)

// CompanyContext identifies the organization the report is written for
type CompanyContext struct {
	Name        string `json:"name"`
	Industry    string `json:"industry,omitempty"`
	Description string `json:"description,omitempty"`
	Context     string `json:"context,omitempty"`
}

// HistoryEntry is one prior chat turn as sent by the client. Content is kept
// raw because clients sometimes send structured content.
type HistoryEntry struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// SystemPrompt describes the assistant's role and output format
func SystemPrompt(company CompanyContext, includeGraphs bool) string {
	var b strings.Builder

	name := strings.TrimSpace(company.Name)
	if name == "" {
		name = "the user's organization"
	}
	fmt.Fprintf(&b, "You are a senior business analyst preparing reports for %s.", name)
	if company.Industry != "" {
		fmt.Fprintf(&b, " The company operates in the %s industry.", company.Industry)
	}
	b.WriteString("\n")
	if company.Description != "" {
		fmt.Fprintf(&b, "Company description: %s\n", company.Description)
	}
	if company.Context != "" {
		fmt.Fprintf(&b, "Additional company context: %s\n", company.Context)
	}

	b.WriteString(`
Answer the user's request using the uploaded documents when they are provided. Base figures on the documents and say so when the documents do not contain the information needed.

FORMATTING RULES:
- Respond with an HTML fragment only: no <html>, <head> or <body> tags and no Markdown.
- Use <h2> and <h3> for section headings, <p> for paragraphs, <ul>/<ol> for lists and <table> with <thead>/<tbody> for tabular data.
- Use <strong> to highlight key figures.
- Start with a short executive summary and end with recommendations or next steps where relevant.
- When several files are provided, attribute facts to the file they come from.
`)

	if includeGraphs {
		b.WriteString(chartGrammar())
	}

	return b.String()
}

func chartGrammar() string {
	var b strings.Builder
	b.WriteString("\nCHARTS:\n")
	b.WriteString("When a chart would help, emit each chart as a JSON object between the markers ")
	fmt.Fprintf(&b, "%s and %s, placed where the chart should appear in the report:\n", charts.StartToken, charts.EndToken)
	fmt.Fprintf(&b, `%s
{"type": "bar", "title": "Revenue by region", "data": {"labels": ["North", "South"], "datasets": [{"label": "Revenue", "data": [120, 95]}]}}
%s
`, charts.StartToken, charts.EndToken)
	b.WriteString(`- "type" is one of: bar, line, pie, doughnut, area, scatter, radar, polarArea.
- "title" is optional.
- "data.labels" lists the category labels; every dataset's "data" holds plain numbers, one per label.
- Do not wrap the JSON in code fences and do not add comments inside it.
- Only chart numbers that appear in, or are computed from, the documents.
`)
	return b.String()
}

// UserPrompt puts the document context first and the request last
func UserPrompt(context, query string, includeGraphs bool) string {
	var b strings.Builder

	if strings.TrimSpace(context) != "" {
		b.WriteString(documentBanner)
		b.WriteString("\n")
		b.WriteString(context)
		b.WriteString("\n\n")
	}

	b.WriteString(requestBanner)
	b.WriteString("\n")
	b.WriteString(query)

	if includeGraphs && LooksTabular(context) {
		b.WriteString("\n\nThe documents contain tabular data. Include at least one chart that visualizes the most important figures, using the chart format described in your instructions.")
	}

	return b.String()
}

// tabularMarkers are substrings that parsers emit for table-shaped content
var tabularMarkers = []string{"Table", "CSV", "=== Sheet:", "Headers:", " | "}

// LooksTabular reports whether the context probably contains tabular data.
// It is a substring match on markers the parsers emit, so prose that happens
// to contain the word "Table" also matches.
func LooksTabular(context string) bool {
	for _, marker := range tabularMarkers {
		if strings.Contains(context, marker) {
			return true
		}
	}
	return false
}

// History keeps the last window entries, then drops any that are not user or
// assistant turns. Non-string content is passed on as its JSON text.
func History(entries []HistoryEntry, window int) []llm.Message {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(entries) > window {
		entries = entries[len(entries)-window:]
	}

	messages := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		role := llm.Role(strings.ToLower(strings.TrimSpace(e.Role)))
		if role != llm.RoleUser && role != llm.RoleAssistant {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: contentString(e.Content)})
	}
	return messages
}

func contentString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

// Input is everything that goes into one report prompt
type Input struct {
	Company       CompanyContext
	Context       string
	Query         string
	IncludeGraphs bool
	History       []HistoryEntry
	HistoryWindow int
	MaxTokens     int
	Temperature   float64
}

// Build assembles the system prompt, the history and the final user message
func Build(in Input) llm.Request {
	messages := History(in.History, in.HistoryWindow)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: UserPrompt(in.Context, in.Query, in.IncludeGraphs),
	})

	return llm.Request{
		System:      SystemPrompt(in.Company, in.IncludeGraphs),
		Messages:    messages,
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
	}
}
