package ingest

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		expected    Format
	}{
		{name: "xlsx extension", filename: "report.xlsx", expected: FormatXLSX},
		{name: "xls extension", filename: "legacy.XLS", expected: FormatXLS},
		{name: "pdf extension", filename: "deck.pdf", expected: FormatPDF},
		{name: "docx extension", filename: "memo.docx", expected: FormatDOCX},
		{name: "doc extension", filename: "memo.doc", expected: FormatDOC},
		{name: "csv extension", filename: "sales.csv", expected: FormatCSV},
		{name: "markdown extension", filename: "notes.md", expected: FormatText},
		{name: "html extension", filename: "page.htm", expected: FormatHTML},
		{
			name:        "extension wins over content type",
			filename:    "data.csv",
			contentType: "application/pdf",
			expected:    FormatCSV,
		},
		{
			name:        "content type with parameters",
			filename:    "upload",
			contentType: "text/csv; charset=utf-8",
			expected:    FormatCSV,
		},
		{
			name:        "spreadsheet content type",
			filename:    "blob",
			contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			expected:    FormatXLSX,
		},
		{
			name:        "other text content type",
			filename:    "readme",
			contentType: "text/x-log",
			expected:    FormatText,
		},
		{
			name:        "unknown",
			filename:    "image.png",
			contentType: "image/png",
			expected:    FormatGeneric,
		},
		{name: "no hints", filename: "", contentType: "", expected: FormatGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.filename, tt.contentType); got != tt.expected {
				t.Errorf("DetectFormat(%q, %q) = %s, want %s", tt.filename, tt.contentType, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	text, cut := Truncate("short", 10)
	if cut || text != "short" {
		t.Errorf("Expected text under the cap to be unchanged, got %q (cut=%v)", text, cut)
	}

	long := strings.Repeat("é", 120)
	text, cut = Truncate(long, 100)
	if !cut {
		t.Fatal("Expected text over the cap to be cut")
	}
	if !strings.HasSuffix(text, TruncationMarker) {
		t.Errorf("Expected truncation marker suffix, got %q", text[len(text)-40:])
	}
	if got, max := utf8.RuneCountInString(text), 100+utf8.RuneCountInString(TruncationMarker); got != max {
		t.Errorf("Expected %d runes, got %d", max, got)
	}
	if !utf8.ValidString(text) {
		t.Error("Expected truncation to respect rune boundaries")
	}
}

func TestDocumentHandler_ParseText(t *testing.T) {
	dh := NewDocumentHandler(DefaultLimits())

	result := dh.Parse(Upload{Name: "notes.txt", Data: []byte("\xef\xbb\xbfhello world")})
	if result.Failed() {
		t.Fatalf("Unexpected error: %s", result.Error)
	}
	if result.Text != "hello world" {
		t.Errorf("Expected BOM to be stripped, got %q", result.Text)
	}
	if result.Metadata.Words != 2 || result.Metadata.Characters != 11 {
		t.Errorf("Unexpected counts: %+v", result.Metadata)
	}
	if result.Metadata.Format != FormatText || result.Metadata.FileName != "notes.txt" {
		t.Errorf("Unexpected metadata: %+v", result.Metadata)
	}
	if result.Tables == nil {
		t.Error("Expected non-nil tables slice")
	}
}

func TestDocumentHandler_ParseTruncatesLargeText(t *testing.T) {
	dh := NewDocumentHandler(Limits{MaxFileChars: 100})

	result := dh.Parse(Upload{Name: "big.txt", Data: []byte(strings.Repeat("a", 500))})
	if !result.Metadata.Truncated {
		t.Error("Expected metadata to record truncation")
	}
	if !strings.HasSuffix(result.Text, TruncationMarker) {
		t.Error("Expected truncation marker")
	}
	if result.Metadata.Characters != 500 {
		t.Errorf("Expected original character count 500, got %d", result.Metadata.Characters)
	}
}

func TestDocumentHandler_ParseOversizedUpload(t *testing.T) {
	dh := NewDocumentHandler(Limits{MaxUploadBytes: 10})

	result := dh.Parse(Upload{Name: "big.txt", Data: []byte("this is more than ten bytes")})
	if !result.Failed() {
		t.Fatal("Expected oversized upload to fail")
	}
	if !strings.Contains(result.Error, "maximum upload size") {
		t.Errorf("Unexpected error: %s", result.Error)
	}
}

type panickingParser struct{}

func (panickingParser) Parse([]byte, string) (ParsedResult, error) { panic("boom") }
func (panickingParser) SupportedExtensions() []string             { return []string{".txt"} }
func (panickingParser) GetDocumentType() Format                   { return FormatText }

func TestDocumentHandler_RecoversParserPanic(t *testing.T) {
	dh := NewDocumentHandler(DefaultLimits())
	dh.RegisterParser(FormatText, panickingParser{})

	result := dh.Parse(Upload{Name: "notes.txt", Data: []byte("hi")})
	if !result.Failed() {
		t.Fatal("Expected panic to be reported as an error")
	}
	if result.Text == "" || result.Summary == "" {
		t.Errorf("Expected user-facing text and summary, got %+v", result)
	}
}

func TestDocumentHandler_GenericBinary(t *testing.T) {
	dh := NewDocumentHandler(DefaultLimits())

	result := dh.Parse(Upload{Name: "photo.png", MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G', 0xff, 0xfe, 0x00}})
	if result.Failed() {
		t.Fatalf("Unexpected error: %s", result.Error)
	}
	if result.Metadata.Binary == nil {
		t.Fatal("Expected binary metadata")
	}
	if !strings.Contains(result.Text, "photo.png") || !strings.Contains(result.Text, "7 bytes") {
		t.Errorf("Expected descriptive text, got %q", result.Text)
	}
}

func TestDocumentHandler_GenericImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 18))); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}

	dh := NewDocumentHandler(DefaultLimits())
	result := dh.Parse(Upload{Name: "chart.png", MimeType: "image/png", Data: buf.Bytes()})

	if result.Metadata.Binary == nil || result.Metadata.Binary.Image == nil {
		t.Fatalf("Expected image metadata, got %+v", result.Metadata)
	}
	img := result.Metadata.Binary.Image
	if img.Format != "png" || img.Width != 32 || img.Height != 18 {
		t.Errorf("Unexpected image metadata %+v", img)
	}
	if !strings.Contains(result.Text, "32x18") {
		t.Errorf("Expected dimensions in text, got %q", result.Text)
	}
}

func TestDocumentHandler_GenericText(t *testing.T) {
	dh := NewDocumentHandler(DefaultLimits())

	result := dh.Parse(Upload{Name: "config.ini", Data: []byte("[section]\nkey=value")})
	if result.Metadata.Binary != nil {
		t.Error("Expected valid UTF-8 to be treated as text")
	}
	if result.Text != "[section]\nkey=value" {
		t.Errorf("Unexpected text %q", result.Text)
	}
}

func TestDocumentHandler_IsSupported(t *testing.T) {
	dh := NewDocumentHandler(DefaultLimits())

	tests := []struct {
		filename string
		expected bool
	}{
		{"a.csv", true},
		{"a.xlsx", true},
		{"a.pdf", true},
		{"a.doc", false},
		{"a.bin", false},
	}
	for _, tt := range tests {
		if got := dh.IsSupported(tt.filename, ""); got != tt.expected {
			t.Errorf("IsSupported(%q) = %v, want %v", tt.filename, got, tt.expected)
		}
	}

	formats := dh.GetSupportedFormats()
	if exts := formats[FormatXLSX]; len(exts) != 1 || exts[0] != ".xlsx" {
		t.Errorf("Unexpected xlsx extensions: %v", exts)
	}
}
