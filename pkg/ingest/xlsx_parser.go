package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// XLSXParser handles Excel .xlsx workbooks
type XLSXParser struct {
	maxRows int
}

// NewXLSXParser creates a new XLSX parser
func NewXLSXParser(maxRows int) *XLSXParser {
	if maxRows <= 0 {
		maxRows = DefaultMaxTableRows
	}
	return &XLSXParser{maxRows: maxRows}
}

// Parse reads every sheet of the workbook
func (xp *XLSXParser) Parse(data []byte, _ string) (ParsedResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return ParsedResult{}, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	var sheets []sheetData
	var sheetErrs []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			sheetErrs = append(sheetErrs, fmt.Sprintf("sheet %s: %v", sheetName, err))
			continue
		}
		sheets = append(sheets, sheetData{name: sheetName, rows: rows})
	}

	result := buildWorkbookResult(sheets, false, xp.maxRows)
	if len(sheetErrs) > 0 {
		result.Error = "failed to read " + strings.Join(sheetErrs, "; ")
	}
	return result, nil
}

// SupportedExtensions returns the file extensions this parser supports
func (xp *XLSXParser) SupportedExtensions() []string {
	return []string{".xlsx"}
}

// GetDocumentType returns the type of documents this parser handles
func (xp *XLSXParser) GetDocumentType() Format {
	return FormatXLSX
}

// XLSParser handles legacy BIFF .xls workbooks
type XLSParser struct {
	maxRows int
}

// NewXLSParser creates a new legacy Excel parser
func NewXLSParser(maxRows int) *XLSParser {
	if maxRows <= 0 {
		maxRows = DefaultMaxTableRows
	}
	return &XLSParser{maxRows: maxRows}
}

// Parse reads every sheet of a legacy workbook
func (xp *XLSParser) Parse(data []byte, _ string) (result ParsedResult, err error) {
	// xlsReader panics on some malformed BIFF records
	defer func() {
		if r := recover(); r != nil {
			result = ParsedResult{}
			err = fmt.Errorf("failed to read XLS file: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return ParsedResult{}, fmt.Errorf("failed to open XLS file: %w", err)
	}

	var sheets []sheetData
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil {
			continue
		}

		rows := make([][]string, 0, sheet.GetNumberRows())
		for rowIdx := 0; rowIdx < sheet.GetNumberRows(); rowIdx++ {
			row, err := sheet.GetRow(rowIdx)
			if err != nil || row == nil {
				rows = append(rows, nil)
				continue
			}
			cols := row.GetCols()
			cells := make([]string, len(cols))
			for colIdx, cell := range cols {
				cells[colIdx] = strings.TrimSpace(cell.GetString())
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, sheetData{name: sheet.GetName(), rows: rows})
	}

	return buildWorkbookResult(sheets, true, xp.maxRows), nil
}

// SupportedExtensions returns the file extensions this parser supports
func (xp *XLSParser) SupportedExtensions() []string {
	return []string{".xls"}
}

// GetDocumentType returns the type of documents this parser handles
func (xp *XLSParser) GetDocumentType() Format {
	return FormatXLS
}

type sheetData struct {
	name string
	rows [][]string
}

// buildWorkbookResult turns raw sheet rows into tables and CSV-like text.
// Entirely empty rows are dropped; a sheet needs at least one data row below
// its header row to produce a table.
func buildWorkbookResult(sheets []sheetData, legacy bool, maxRows int) ParsedResult {
	var content strings.Builder
	tables := []Table{}
	names := make([]string, 0, len(sheets))

	for i, sheet := range sheets {
		names = append(names, sheet.name)

		var rows [][]string
		for _, row := range sheet.rows {
			if hasNonEmptyData(row) {
				rows = append(rows, row)
			}
		}

		if i > 0 {
			content.WriteString("\n")
		}
		fmt.Fprintf(&content, "=== Sheet: %s ===\n", sheet.name)
		if len(rows) == 0 {
			content.WriteString("(empty sheet)\n")
			continue
		}

		writeSheetRows(&content, rows, maxRows)

		if len(rows) > 1 {
			tables = append(tables, AnalyzeTable(sheet.name, rows[0], rows[1:], maxRows))
		}
	}

	totalRows := 0
	for _, t := range tables {
		totalRows += t.Insights.RowCount
	}

	kind := "Excel workbook"
	if legacy {
		kind = "Legacy Excel workbook"
	}

	return ParsedResult{
		Text:   content.String(),
		Tables: tables,
		Metadata: Metadata{
			Spreadsheet: &SpreadsheetMetadata{
				SheetNames: names,
				SheetCount: len(names),
				Legacy:     legacy,
			},
		},
		Summary: fmt.Sprintf("%s with %d sheet(s), %d table(s), %d data rows", kind, len(names), len(tables), totalRows),
	}
}

// hasNonEmptyData checks if a row has any non-empty data
func hasNonEmptyData(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}
	return false
}

// writeSheetRows renders up to maxRows data rows after the header as CSV lines
func writeSheetRows(content *strings.Builder, rows [][]string, maxRows int) {
	w := csv.NewWriter(content)
	for j, row := range rows {
		if j > maxRows {
			w.Flush()
			fmt.Fprintf(content, "[%d more rows not shown]\n", len(rows)-j)
			return
		}
		// strings.Builder never fails a write
		_ = w.Write(row)
	}
	w.Flush()
}
