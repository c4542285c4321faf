package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRun = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// HTMLParser handles HTML files
type HTMLParser struct{}

// NewHTMLParser creates a new HTML parser
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// Parse extracts the title and visible text, organized by heading sections
func (hp *HTMLParser) Parse(data []byte, _ string) (ParsedResult, error) {
	doc, err := html.Parse(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	if err != nil {
		return ParsedResult{}, fmt.Errorf("failed to parse HTML file: %w", err)
	}

	var content strings.Builder
	title := strings.TrimSpace(hp.extractTitle(doc))
	if title != "" {
		content.WriteString("Title: ")
		content.WriteString(title)
		content.WriteString("\n\n")
	}

	var sections []string
	var current strings.Builder
	hp.walkSections(doc, &sections, &current)
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	content.WriteString(strings.Join(sections, ""))

	text := hp.cleanWhitespace(content.String())
	summary := fmt.Sprintf("HTML page with %d words", len(strings.Fields(text)))
	if title != "" {
		summary = fmt.Sprintf("HTML page %q with %d words", title, len(strings.Fields(text)))
	}

	return ParsedResult{Text: text, Summary: summary}, nil
}

// extractTitle finds and extracts the HTML title
func (hp *HTMLParser) extractTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return hp.extractNodeText(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := hp.extractTitle(c); title != "" {
			return title
		}
	}
	return ""
}

// walkSections starts a new section at every heading
func (hp *HTMLParser) walkSections(n *html.Node, sections *[]string, currentSection *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "head", "script", "style", "noscript", "template":
			return

		case "h1", "h2", "h3", "h4", "h5", "h6":
			if currentSection.Len() > 0 {
				*sections = append(*sections, currentSection.String())
				currentSection.Reset()
			}
			fmt.Fprintf(currentSection, "## %s\n\n", strings.TrimSpace(hp.extractNodeText(n)))
			return

		case "p", "article", "section", "blockquote", "pre":
			text := hp.extractNodeText(n)
			if strings.TrimSpace(text) != "" {
				currentSection.WriteString(text)
				currentSection.WriteString("\n\n")
			}
			return

		case "ul", "ol":
			if listText := hp.extractListText(n); listText != "" {
				currentSection.WriteString(listText)
				currentSection.WriteString("\n\n")
			}
			return

		case "tr":
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, strings.TrimSpace(hp.extractNodeText(c)))
				}
			}
			if len(cells) > 0 {
				currentSection.WriteString(strings.Join(cells, " | "))
				currentSection.WriteString("\n")
			}
			return
		}
	}

	if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
		currentSection.WriteString(n.Data)
		currentSection.WriteString(" ")
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		hp.walkSections(c, sections, currentSection)
	}
}

// extractNodeText extracts text from a node and its children
func (hp *HTMLParser) extractNodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return ""
	}

	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(hp.extractNodeText(c))
	}
	return text.String()
}

// extractListText renders list items one per line
func (hp *HTMLParser) extractListText(n *html.Node) string {
	var items []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "li" {
			if itemText := strings.TrimSpace(hp.extractNodeText(c)); itemText != "" {
				items = append(items, "- "+itemText)
			}
		}
	}
	return strings.Join(items, "\n")
}

// cleanWhitespace collapses runs of spaces and blank lines
func (hp *HTMLParser) cleanWhitespace(text string) string {
	cleaned := spaceRun.ReplaceAllString(text, " ")
	cleaned = newlineRun.ReplaceAllString(cleaned, "\n\n")

	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// SupportedExtensions returns the file extensions this parser supports
func (hp *HTMLParser) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}

// GetDocumentType returns the type of documents this parser handles
func (hp *HTMLParser) GetDocumentType() Format {
	return FormatHTML
}
