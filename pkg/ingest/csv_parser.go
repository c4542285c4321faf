package ingest

import (
	"fmt"
	"strings"
)

// CSVParser handles comma-separated files. Quoted fields may contain commas;
// fields spanning multiple lines are not supported.
type CSVParser struct {
	maxRows int
}

// NewCSVParser creates a new CSV parser that keeps at most maxRows rows
func NewCSVParser(maxRows int) *CSVParser {
	if maxRows <= 0 {
		maxRows = DefaultMaxTableRows
	}
	return &CSVParser{maxRows: maxRows}
}

// Parse builds a single table from the file, first line as headers
func (cp *CSVParser) Parse(data []byte, filename string) (ParsedResult, error) {
	lines := nonBlankLines(decodeUTF8(data))
	if len(lines) == 0 {
		return ParsedResult{
			Summary: "Empty CSV file",
			Metadata: Metadata{
				Tabular: &TabularMetadata{},
			},
		}, nil
	}

	headers := splitCSVLine(lines[0])
	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, splitCSVLine(line))
	}

	table := AnalyzeTable(tableNameFromFile(filename), headers, rows, cp.maxRows)

	return ParsedResult{
		Text:   renderCSVText(table),
		Tables: []Table{table},
		Metadata: Metadata{
			Tabular: &TabularMetadata{
				Rows:    table.Insights.RowCount,
				Columns: table.Insights.ColumnCount,
			},
		},
		Summary: fmt.Sprintf("CSV with %d rows and %d columns", table.Insights.RowCount, table.Insights.ColumnCount),
	}, nil
}

func renderCSVText(table Table) string {
	var content strings.Builder

	content.WriteString(describeInsights(table))
	content.WriteString("\n\nCSV Headers: ")
	content.WriteString(strings.Join(table.Headers, " | "))
	content.WriteString("\n\n")

	for i, record := range table.Rows {
		fmt.Fprintf(&content, "Row %d: ", i+1)
		for j, cell := range record {
			if j < len(table.Headers) {
				fmt.Fprintf(&content, "%s: %s", table.Headers[j], cell)
			} else {
				fmt.Fprintf(&content, "Column%d: %s", j+1, cell)
			}
			if j < len(record)-1 {
				content.WriteString(" | ")
			}
		}
		content.WriteString("\n")
	}

	if omitted := table.Insights.RowCount - len(table.Rows); omitted > 0 {
		fmt.Fprintf(&content, "[%d more rows not shown]\n", omitted)
	}

	return content.String()
}

// nonBlankLines splits on LF or CRLF and drops whitespace-only lines
func nonBlankLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitCSVLine splits one line on commas that are outside double quotes.
// A doubled quote inside a quoted field is a literal quote.
func splitCSVLine(line string) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' && inQuotes && i+1 < len(runes) && runes[i+1] == '"':
			field.WriteRune('"')
			i++
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(field.String()))

	return fields
}

// SupportedExtensions returns the file extensions this parser supports
func (cp *CSVParser) SupportedExtensions() []string {
	return []string{".csv"}
}

// GetDocumentType returns the type of documents this parser handles
func (cp *CSVParser) GetDocumentType() Format {
	return FormatCSV
}
