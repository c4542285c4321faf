package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dslipak/pdf"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	extractorPDF  = "dslipak/pdf"
	extractorFitz = "mupdf"
)

var disablePDFCPUConfig sync.Once

// PDFParser extracts text page by page. Everything runs in-process: the
// primary extractor is pure Go and the fallback is MuPDF via cgo.
type PDFParser struct{}

func NewPDFParser() *PDFParser {
	disablePDFCPUConfig.Do(api.DisableConfigDir)
	return &PDFParser{}
}

func (p *PDFParser) Parse(data []byte, _ string) (ParsedResult, error) {
	pages, extractor, err := p.extractPages(data)
	if err != nil {
		return ParsedResult{}, err
	}

	pageCount := len(pages)
	if n, err := countPDFPages(data); err == nil && n > 0 {
		pageCount = n
	}

	var content strings.Builder
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		fmt.Fprintf(&content, "--- Page %d ---\n", i+1)
		content.WriteString(text)
	}

	text := content.String()
	hasImages, hasTables := pdfContentHints(text)
	result := ParsedResult{
		Text: text,
		Metadata: Metadata{
			PDF: &PDFMetadata{
				Pages:     pageCount,
				HasImages: hasImages,
				HasTables: hasTables,
				Extractor: extractor,
			},
		},
		Summary: fmt.Sprintf("PDF with %d pages, %d words extracted", pageCount, len(strings.Fields(text))),
	}

	if text == "" {
		result.Text = "No extractable text was found in this PDF. It may contain only scanned images."
		result.Summary = fmt.Sprintf("PDF with %d pages, no extractable text", pageCount)
	}

	return result, nil
}

// extractPages tries the pure Go reader first and falls back to MuPDF when it
// fails or finds no text at all.
func (p *PDFParser) extractPages(data []byte) ([]string, string, error) {
	pages, primaryErr := extractPagesPDF(data)
	if primaryErr == nil && !allBlank(pages) {
		return pages, extractorPDF, nil
	}

	fallback, fallbackErr := extractPagesFitz(data)
	if fallbackErr == nil && !allBlank(fallback) {
		return fallback, extractorFitz, nil
	}

	if primaryErr != nil {
		if fallbackErr != nil {
			return nil, "", fmt.Errorf("failed to read PDF: %w", errors.Join(primaryErr, fallbackErr))
		}
		return fallback, extractorFitz, nil
	}
	return pages, extractorPDF, nil
}

func extractPagesPDF(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	total := r.NumPage()
	pages = make([]string, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, extractPageText(page))
	}
	return pages, nil
}

func extractPageText(page pdf.Page) string {
	var textBuilder strings.Builder

	// Rows keep the visual line structure; plain text is the fallback
	rows, err := page.GetTextByRow()
	if err != nil {
		for _, text := range page.Content().Text {
			textBuilder.WriteString(text.S)
			textBuilder.WriteString(" ")
		}
		return strings.TrimSpace(textBuilder.String())
	}

	for _, row := range rows {
		words := make([]string, 0, len(row.Content))
		for _, word := range row.Content {
			if word.S != "" {
				words = append(words, word.S)
			}
		}
		if len(words) > 0 {
			textBuilder.WriteString(strings.Join(words, " "))
			textBuilder.WriteString("\n")
		}
	}

	return strings.TrimSpace(textBuilder.String())
}

func extractPagesFitz(data []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("mupdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// countPDFPages reads the page tree with pdfcpu in relaxed validation mode
func countPDFPages(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

// pdfContentHints guesses from extracted text whether the document contains
// images or tables. It is a keyword search, not layout analysis.
func pdfContentHints(text string) (hasImages, hasTables bool) {
	lower := strings.ToLower(text)
	for _, kw := range []string{"figure", "image", "chart", "graph", "diagram", "photo"} {
		if strings.Contains(lower, kw) {
			hasImages = true
			break
		}
	}
	for _, kw := range []string{"table", "total", "column"} {
		if strings.Contains(lower, kw) {
			hasTables = true
			break
		}
	}
	return hasImages, hasTables
}

func allBlank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// SupportedExtensions returns the file extensions this parser supports
func (p *PDFParser) SupportedExtensions() []string {
	return []string{".pdf"}
}

// GetDocumentType returns the type of documents this parser handles
func (p *PDFParser) GetDocumentType() Format {
	return FormatPDF
}
