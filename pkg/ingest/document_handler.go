package ingest

import (
	"fmt"
	"log"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"lil-report/pkg/metrics"
)

const (
	DefaultMaxFileChars   = 50000
	DefaultMaxTableRows   = 1000
	DefaultMaxUploadBytes = 10 << 20

	// TruncationMarker is appended to any text cut at the size cap
	TruncationMarker = "\n\n[... content truncated ...]"
)

// DocumentParser is the interface that all format parsers implement.
// Parse may return a partial result together with an error.
type DocumentParser interface {
	Parse(data []byte, filename string) (ParsedResult, error)

	// SupportedExtensions returns the file extensions this parser supports
	SupportedExtensions() []string

	// GetDocumentType returns the format this parser handles
	GetDocumentType() Format
}

// Limits bounds the size of everything a parser emits
type Limits struct {
	MaxFileChars   int
	MaxTableRows   int
	MaxUploadBytes int
}

// DefaultLimits returns the built-in size caps
func DefaultLimits() Limits {
	return Limits{
		MaxFileChars:   DefaultMaxFileChars,
		MaxTableRows:   DefaultMaxTableRows,
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// DocumentHandler routes uploads to the parser for their format
type DocumentHandler struct {
	parsers map[Format]DocumentParser
	limits  Limits
}

// NewDocumentHandler creates a handler with all built-in parsers registered
func NewDocumentHandler(limits Limits) *DocumentHandler {
	if limits.MaxFileChars <= 0 {
		limits.MaxFileChars = DefaultMaxFileChars
	}
	if limits.MaxTableRows <= 0 {
		limits.MaxTableRows = DefaultMaxTableRows
	}
	if limits.MaxUploadBytes <= 0 {
		limits.MaxUploadBytes = DefaultMaxUploadBytes
	}

	dh := &DocumentHandler{
		parsers: make(map[Format]DocumentParser),
		limits:  limits,
	}
	dh.registerDefaultParsers()
	return dh
}

func (dh *DocumentHandler) registerDefaultParsers() {
	dh.RegisterParser(FormatText, NewTextParser())
	dh.RegisterParser(FormatCSV, NewCSVParser(dh.limits.MaxTableRows))
	dh.RegisterParser(FormatXLSX, NewXLSXParser(dh.limits.MaxTableRows))
	dh.RegisterParser(FormatXLS, NewXLSParser(dh.limits.MaxTableRows))
	dh.RegisterParser(FormatPDF, NewPDFParser())
	dh.RegisterParser(FormatDOCX, NewDOCXParser())
	dh.RegisterParser(FormatDOC, NewDOCParser())
	dh.RegisterParser(FormatHTML, NewHTMLParser())
	dh.RegisterParser(FormatGeneric, NewGenericParser())
}

// RegisterParser registers or replaces the parser for a format
func (dh *DocumentHandler) RegisterParser(format Format, parser DocumentParser) {
	dh.parsers[format] = parser
}

// Limits returns the caps this handler applies
func (dh *DocumentHandler) Limits() Limits {
	return dh.limits
}

// DetectFormat selects a format from the file extension first and the
// declared content type second. It never inspects file content.
func DetectFormat(filename, contentType string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".doc":
		return FormatDOC
	case ".csv":
		return FormatCSV
	case ".txt", ".md", ".text":
		return FormatText
	case ".html", ".htm":
		return FormatHTML
	}

	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch {
	case mediaType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	case mediaType == "application/vnd.ms-excel":
		return FormatXLS
	case mediaType == "application/pdf":
		return FormatPDF
	case mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatDOCX
	case mediaType == "application/msword":
		return FormatDOC
	case mediaType == "text/csv":
		return FormatCSV
	case mediaType == "text/html":
		return FormatHTML
	case strings.HasPrefix(mediaType, "text/"):
		return FormatText
	default:
		return FormatGeneric
	}
}

// Parse runs the parser selected for the upload. It never returns an error
// and never panics: every failure is reported through ParsedResult.Error.
func (dh *DocumentHandler) Parse(upload Upload) ParsedResult {
	format := DetectFormat(upload.Name, upload.MimeType)
	start := time.Now()

	result := dh.parse(upload, format)
	metrics.RecordParse(string(format), time.Since(start), !result.Failed(), result.Metadata.Characters, result.Metadata.Truncated)
	return result
}

func (dh *DocumentHandler) parse(upload Upload, format Format) ParsedResult {

	if len(upload.Data) > dh.limits.MaxUploadBytes {
		result := ParsedResult{
			Error: fmt.Sprintf("file exceeds maximum upload size of %d bytes", dh.limits.MaxUploadBytes),
		}
		result.Text = fmt.Sprintf("File %q is too large to process (%d bytes).", upload.Name, len(upload.Data))
		result.Summary = "File too large"
		return dh.finish(result, upload, format)
	}

	parser, exists := dh.parsers[format]
	if !exists {
		parser = dh.parsers[FormatGeneric]
	}

	result := dh.safeParse(parser, upload)
	return dh.finish(result, upload, format)
}

func (dh *DocumentHandler) safeParse(parser DocumentParser, upload Upload) (result ParsedResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Parser for %s panicked on %q: %v", parser.GetDocumentType(), upload.Name, r)
			result = failedResult(upload.Name, parser.GetDocumentType(), fmt.Errorf("parser panic: %v", r))
		}
	}()

	res, err := parser.Parse(upload.Data, upload.Name)
	if err != nil {
		log.Printf("Failed to parse %q as %s: %v", upload.Name, parser.GetDocumentType(), err)
		failed := failedResult(upload.Name, parser.GetDocumentType(), err)
		if res.Text == "" {
			res.Text = failed.Text
		}
		if res.Summary == "" {
			res.Summary = failed.Summary
		}
		res.Error = failed.Error
	}
	return res
}

// finish fills the common metadata and applies the per-file text cap
func (dh *DocumentHandler) finish(result ParsedResult, upload Upload, format Format) ParsedResult {
	text := norm.NFC.String(result.Text)
	truncated, cut := Truncate(text, dh.limits.MaxFileChars)
	result.Text = truncated

	meta := result.Metadata
	meta.FileName = upload.Name
	meta.Size = len(upload.Data)
	meta.MimeType = upload.MimeType
	meta.Format = format
	meta.Truncated = meta.Truncated || cut
	if meta.Characters == 0 {
		meta.Characters = utf8.RuneCountInString(text)
	}
	if meta.Words == 0 {
		meta.Words = len(strings.Fields(text))
	}
	result.Metadata = meta

	if result.Tables == nil {
		result.Tables = []Table{}
	}
	if result.Summary == "" {
		result.Summary = fmt.Sprintf("Extracted %d characters from %s", meta.Characters, upload.Name)
	}
	return result
}

// Truncate cuts text to at most max runes and appends TruncationMarker
// when anything was removed.
func Truncate(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}

	count := 0
	for i := range text {
		if count == max {
			return text[:i] + TruncationMarker, true
		}
		count++
	}
	return text, false
}

func failedResult(filename string, format Format, err error) ParsedResult {
	return ParsedResult{
		Text:    fmt.Sprintf("Could not read %q as %s: the file may be corrupted or in an unexpected format.", filename, formatLabel(format)),
		Summary: fmt.Sprintf("Failed to extract content from %s", filename),
		Error:   err.Error(),
	}
}

func formatLabel(format Format) string {
	switch format {
	case FormatXLSX, FormatXLS:
		return "an Excel workbook"
	case FormatPDF:
		return "a PDF document"
	case FormatDOCX:
		return "a Word document"
	case FormatCSV:
		return "a CSV file"
	case FormatHTML:
		return "an HTML page"
	default:
		return "text"
	}
}

// GetSupportedFormats returns the extensions handled by each registered parser
func (dh *DocumentHandler) GetSupportedFormats() map[Format][]string {
	formats := make(map[Format][]string)
	for format, parser := range dh.parsers {
		exts := append([]string(nil), parser.SupportedExtensions()...)
		sort.Strings(exts)
		formats[format] = exts
	}
	return formats
}

// IsSupported reports whether content can be extracted for the file,
// as opposed to metadata only.
func (dh *DocumentHandler) IsSupported(filename, contentType string) bool {
	format := DetectFormat(filename, contentType)
	if format == FormatGeneric || format == FormatDOC {
		return false
	}
	_, exists := dh.parsers[format]
	return exists
}
