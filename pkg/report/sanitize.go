package report

import "github.com/microcosm-cc/bluemonday"

// reportPolicy allows the formatting a report uses (headings, lists, tables,
// links) plus the chart placeholder and error divs. Scripts, event handlers,
// styles and javascript: URLs are removed.
var reportPolicy = newReportPolicy()

func newReportPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("div", "span", "p", "table", "tr", "td", "th")
	p.AllowAttrs("data-chart-id", "data-chart-title").OnElements("div")
	return p
}

// SanitizeHTML strips anything from model output that could run in a viewer's
// browser. A Policy is safe for concurrent use.
func SanitizeHTML(content string) string {
	return reportPolicy.Sanitize(content)
}
