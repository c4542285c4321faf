package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// TextParser handles plain text and markdown files
type TextParser struct{}

// NewTextParser creates a new text parser
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse decodes the file as UTF-8. Truncation is applied later by the handler.
func (tp *TextParser) Parse(data []byte, filename string) (ParsedResult, error) {
	text := decodeUTF8(data)
	chars := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))

	return ParsedResult{
		Text: text,
		Metadata: Metadata{
			Characters: chars,
			Words:      words,
		},
		Summary: fmt.Sprintf("Text document with %d characters and %d words", chars, words),
	}, nil
}

// SupportedExtensions returns the file extensions this parser supports
func (tp *TextParser) SupportedExtensions() []string {
	return []string{".txt", ".md", ".text"}
}

// GetDocumentType returns the type of documents this parser handles
func (tp *TextParser) GetDocumentType() Format {
	return FormatText
}

// decodeUTF8 strips a BOM and replaces invalid sequences with U+FFFD
func decodeUTF8(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
