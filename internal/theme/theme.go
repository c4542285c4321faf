package theme

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*
var templateFS embed.FS

// Theme represents the application theme configuration
type Theme struct {
	Name            string
	PrimaryColor    string
	AccentColor     string
	BackgroundColor string
	FontFamily      template.CSS
}

// DefaultTheme returns the default theme configuration
func DefaultTheme() *Theme {
	return &Theme{
		Name:            "Default",
		PrimaryColor:    "#36A2EB",
		AccentColor:     "#9966FF",
		BackgroundColor: "#f7f8fa",
		FontFamily:      "-apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif",
	}
}

// TemplateData represents data passed to templates
type TemplateData struct {
	Title   string
	Version string
	Theme   *Theme
	// Content is trusted report HTML produced by the report pipeline
	Content template.HTML
	// Data is page specific and marshalled into script blocks as JSON
	Data interface{}
}

// Renderer handles template rendering with theme support
type Renderer struct {
	templates *template.Template
	theme     *Theme
}

// NewRenderer creates a new template renderer
func NewRenderer() (*Renderer, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Renderer{
		templates: templates,
		theme:     DefaultTheme(),
	}, nil
}

// SetTheme updates the current theme
func (r *Renderer) SetTheme(theme *Theme) {
	r.theme = theme
}

// RenderPage executes the named page template
func (r *Renderer) RenderPage(w io.Writer, templateName string, data *TemplateData) error {
	if data.Theme == nil {
		data.Theme = r.theme
	}
	return r.templates.ExecuteTemplate(w, templateName, data)
}

// GetTheme returns the current theme
func (r *Renderer) GetTheme() *Theme {
	return r.theme
}
