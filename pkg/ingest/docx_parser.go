package ingest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DOCXParser handles Microsoft Word .docx files. Table structure is not
// preserved; table cells come out as tab-separated text.
type DOCXParser struct{}

// NewDOCXParser creates a new DOCX parser
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

// Parse unpacks word/document.xml and extracts its text runs
func (dp *DOCXParser) Parse(data []byte, _ string) (ParsedResult, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ParsedResult{}, fmt.Errorf("failed to open DOCX file: %w", err)
	}
	defer r.Close()

	text, err := wordprocessingText(r.Editable().GetContent())
	if err != nil {
		return ParsedResult{}, fmt.Errorf("failed to read DOCX body: %w", err)
	}
	text = cleanContent(text)

	words := len(strings.Fields(text))
	return ParsedResult{
		Text:    text,
		Summary: fmt.Sprintf("Word document with %d words", words),
	}, nil
}

// wordprocessingText walks WordprocessingML and keeps only visible text
func wordprocessingText(body string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(body))
	var out strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out.String(), err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteString("\t")
			case "br", "cr":
				out.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteString("\n")
			case "tc":
				out.WriteString("\t")
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return out.String(), nil
}

// cleanContent trims every line and drops empty ones
func cleanContent(content string) string {
	lines := strings.Split(content, "\n")
	cleanLines := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	return strings.Join(cleanLines, "\n")
}

// SupportedExtensions returns the file extensions this parser supports
func (dp *DOCXParser) SupportedExtensions() []string {
	return []string{".docx"}
}

// GetDocumentType returns the type of documents this parser handles
func (dp *DOCXParser) GetDocumentType() Format {
	return FormatDOCX
}
