package ingest

// Format identifies the parsing strategy selected for an uploaded file
type Format string

const (
	FormatText    Format = "text"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatXLS     Format = "xls"
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatDOC     Format = "doc"
	FormatHTML    Format = "html"
	FormatGeneric Format = "generic"
)

// Tabular reports whether the format produces Table values
func (f Format) Tabular() bool {
	return f == FormatCSV || f == FormatXLSX || f == FormatXLS
}

// Upload is a raw file as received from a client
type Upload struct {
	Name     string `json:"name"`
	MimeType string `json:"type,omitempty"`
	Data     []byte `json:"data"`
}

// ParsedResult is the common output of every parser
type ParsedResult struct {
	Text     string   `json:"text"`
	Tables   []Table  `json:"tables"`
	Metadata Metadata `json:"metadata"`
	Summary  string   `json:"summary"`
	Error    string   `json:"error,omitempty"`
}

// Failed reports whether extraction hit an error
func (r ParsedResult) Failed() bool {
	return r.Error != ""
}

// Table is structured data extracted from a CSV file or a spreadsheet
type Table struct {
	Name     string        `json:"name"`
	Headers  []string      `json:"headers"`
	Rows     [][]string    `json:"rows"`
	Insights TableInsights `json:"insights"`
}

// TableInsights holds lightweight column statistics.
// RowCount reflects the untruncated row count even when Rows was capped.
type TableInsights struct {
	RowCount           int        `json:"rowCount"`
	ColumnCount        int        `json:"columnCount"`
	NumericColumns     []string   `json:"numericColumns"`
	CategoricalColumns []string   `json:"categoricalColumns"`
	Preview            [][]string `json:"preview"`
}

// Metadata describes an uploaded file. At most one of the format-specific
// sections is set.
type Metadata struct {
	FileName   string `json:"fileName"`
	Size       int    `json:"size"`
	MimeType   string `json:"mimeType,omitempty"`
	Format     Format `json:"format"`
	Characters int    `json:"characters"`
	Words      int    `json:"words"`
	Truncated  bool   `json:"truncated,omitempty"`

	Tabular     *TabularMetadata     `json:"tabular,omitempty"`
	Spreadsheet *SpreadsheetMetadata `json:"spreadsheet,omitempty"`
	PDF         *PDFMetadata         `json:"pdf,omitempty"`
	Binary      *BinaryMetadata      `json:"binary,omitempty"`
}

type TabularMetadata struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

type SpreadsheetMetadata struct {
	SheetNames []string `json:"sheetNames"`
	SheetCount int      `json:"sheetCount"`
	Legacy     bool     `json:"legacy,omitempty"`
}

type PDFMetadata struct {
	Pages     int    `json:"pages"`
	HasImages bool   `json:"hasImages"`
	HasTables bool   `json:"hasTables"`
	Extractor string `json:"extractor"`
}

// BinaryMetadata describes content that was not extracted
type BinaryMetadata struct {
	Container string   `json:"container,omitempty"`
	Streams   []string `json:"streams,omitempty"`
	// Image is set when the bytes decode as a known image header
	Image *ImageMetadata `json:"image,omitempty"`
}

type ImageMetadata struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
