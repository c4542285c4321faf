package theme

import (
	"bytes"
	"html/template"
	"strings"
	"testing"
)

func TestNewRendererParsesTemplates(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	for _, name := range []string{"home.html", "report.html"} {
		if r.templates.Lookup(name) == nil {
			t.Errorf("Template %s not found", name)
		}
	}
	if r.GetTheme().Name != "Default" {
		t.Errorf("Unexpected default theme %q", r.GetTheme().Name)
	}
}

func TestRenderReportPage(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	var buf bytes.Buffer
	err = r.RenderPage(&buf, "report.html", &TemplateData{
		Title:   "Q3 <summary>",
		Version: "1.0.0",
		Content: template.HTML(`<h2>Revenue</h2><div class="chart-placeholder" data-chart-id="c1"></div>`),
	})
	if err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `<h2>Revenue</h2>`) {
		t.Error("Report HTML should be rendered unescaped")
	}
	if strings.Contains(out, "Q3 <summary>") {
		t.Error("Title should be escaped")
	}
	if !strings.Contains(out, "Segoe UI") {
		t.Error("Theme font should be rendered")
	}
}

func TestSetTheme(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	custom := &Theme{Name: "Dark", PrimaryColor: "#000000", BackgroundColor: "#111111", FontFamily: "monospace"}
	r.SetTheme(custom)

	var buf bytes.Buffer
	if err := r.RenderPage(&buf, "home.html", &TemplateData{Title: "Home"}); err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}
	if !strings.Contains(buf.String(), "#111111") {
		t.Error("Custom theme background should be used")
	}
}
