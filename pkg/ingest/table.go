package ingest

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// numericSampleSize is how many leading rows decide whether a column is numeric
	numericSampleSize = 10
	previewRows       = 5
)

// AnalyzeTable builds a Table from the full row set. RowCount and
// ColumnCount reflect every row; Rows is capped at maxRows.
//
// Numeric classification looks only at the first numericSampleSize rows: a
// column is numeric when every sampled cell parses as a float. A column whose
// sample has no numeric cells stays categorical even if later rows are numbers.
func AnalyzeTable(name string, headers []string, rows [][]string, maxRows int) Table {
	columnCount := len(headers)
	for _, row := range rows {
		if len(row) > columnCount {
			columnCount = len(row)
		}
	}

	sample := rows
	if len(sample) > numericSampleSize {
		sample = sample[:numericSampleSize]
	}

	numeric := []string{}
	categorical := []string{}
	for col, header := range headers {
		if columnIsNumeric(sample, col) {
			numeric = append(numeric, header)
		} else {
			categorical = append(categorical, header)
		}
	}

	kept := rows
	if maxRows > 0 && len(kept) > maxRows {
		kept = kept[:maxRows]
	}
	kept = copyRows(kept)

	preview := kept
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}

	return Table{
		Name:    name,
		Headers: append([]string{}, headers...),
		Rows:    kept,
		Insights: TableInsights{
			RowCount:           len(rows),
			ColumnCount:        columnCount,
			NumericColumns:     numeric,
			CategoricalColumns: categorical,
			Preview:            copyRows(preview),
		},
	}
}

func columnIsNumeric(sample [][]string, col int) bool {
	if len(sample) == 0 {
		return false
	}
	for _, row := range sample {
		if col >= len(row) || !isNumericCell(row[col]) {
			return false
		}
	}
	return true
}

func isNumericCell(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string{}, row...)
	}
	return out
}

// tableNameFromFile derives a table name from a file name without its extension
func tableNameFromFile(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "Table"
	}
	return name
}

// describeInsights renders a one-paragraph overview used in extracted text
func describeInsights(t Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %q: %d rows, %d columns", t.Name, t.Insights.RowCount, t.Insights.ColumnCount)
	if len(t.Insights.NumericColumns) > 0 {
		fmt.Fprintf(&b, "\nNumeric columns: %s", strings.Join(t.Insights.NumericColumns, ", "))
	}
	if len(t.Insights.CategoricalColumns) > 0 {
		fmt.Fprintf(&b, "\nCategorical columns: %s", strings.Join(t.Insights.CategoricalColumns, ", "))
	}
	return b.String()
}
