package charts

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
)

const (
	StartToken = "<<<CHART_START>>>"
	EndToken   = "<<<CHART_END>>>"

	// ErrorMarker replaces a chart block that could not be decoded or validated
	ErrorMarker = `<div class="chart-error">Chart could not be rendered: invalid chart specification</div>`
)

// Result is model output with every chart block replaced
type Result struct {
	Content string      `json:"content"`
	Charts  []ChartSpec `json:"charts"`
	// Failed counts blocks replaced by ErrorMarker
	Failed int `json:"failed"`
}

// Extract scans content left to right for non-overlapping chart blocks.
// Valid blocks become placeholders and are returned in order; invalid ones
// become ErrorMarker. A start token without a matching end token is left in
// place along with everything after it.
func Extract(content string) Result {
	return ExtractWith(content, NewIDGenerator())
}

// ExtractWith is Extract with a caller-supplied id generator
func ExtractWith(content string, ids *IDGenerator) Result {
	result := Result{Charts: []ChartSpec{}}

	var out strings.Builder
	rest := content
	for {
		start := strings.Index(rest, StartToken)
		if start < 0 {
			break
		}
		bodyStart := start + len(StartToken)
		end := strings.Index(rest[bodyStart:], EndToken)
		if end < 0 {
			break
		}

		out.WriteString(rest[:start])
		body := rest[bodyStart : bodyStart+end]
		rest = rest[bodyStart+end+len(EndToken):]

		spec, err := decodeSpec(body)
		if err != nil {
			result.Failed++
			out.WriteString(ErrorMarker)
			continue
		}
		spec.ID = ids.Next()
		result.Charts = append(result.Charts, spec)
		out.WriteString(Placeholder(spec))
	}
	out.WriteString(rest)

	result.Content = out.String()
	return result
}

// Placeholder is the element the front-end swaps for the rendered chart
func Placeholder(spec ChartSpec) string {
	return fmt.Sprintf(`<div class="chart-placeholder" data-chart-id="%s" data-chart-title="%s"></div>`,
		html.EscapeString(spec.ID), html.EscapeString(spec.Title))
}

// rawChart is the loose shape models actually emit
type rawChart struct {
	Type  string   `json:"type"`
	Title string   `json:"title"`
	Data  *rawData `json:"data"`
}

type rawData struct {
	Labels   []json.RawMessage `json:"labels"`
	Datasets []rawDataset      `json:"datasets"`
}

type rawDataset struct {
	Label           string            `json:"label"`
	Data            []json.RawMessage `json:"data"`
	BackgroundColor ColorValue        `json:"backgroundColor"`
	BorderColor     ColorValue        `json:"borderColor"`
}

func decodeSpec(body string) (ChartSpec, error) {
	var raw rawChart
	if err := json.Unmarshal([]byte(stripFences(body)), &raw); err != nil {
		return ChartSpec{}, fmt.Errorf("decode chart: %w", err)
	}
	if raw.Data == nil {
		return ChartSpec{}, errors.New("chart has no data")
	}
	if len(raw.Data.Datasets) == 0 {
		return ChartSpec{}, errors.New("chart has no datasets")
	}

	spec := ChartSpec{
		Type:  ParseType(raw.Type),
		Title: strings.TrimSpace(raw.Title),
		Data: Data{
			Labels:   make([]string, 0, len(raw.Data.Labels)),
			Datasets: make([]Dataset, 0, len(raw.Data.Datasets)),
		},
	}

	for _, l := range raw.Data.Labels {
		label, err := labelString(l)
		if err != nil {
			return ChartSpec{}, err
		}
		spec.Data.Labels = append(spec.Data.Labels, label)
	}

	for i, ds := range raw.Data.Datasets {
		values := make([]float64, 0, len(ds.Data))
		for _, v := range ds.Data {
			f, err := numericValue(v)
			if err != nil {
				return ChartSpec{}, fmt.Errorf("dataset %d: %w", i, err)
			}
			values = append(values, f)
		}

		dataset := Dataset{
			Label:           ds.Label,
			Data:            values,
			BackgroundColor: ds.BackgroundColor,
			BorderColor:     ds.BorderColor,
		}
		applyDefaultColors(&dataset, spec.Type, i)
		spec.Data.Datasets = append(spec.Data.Datasets, dataset)
	}

	return spec, nil
}

// applyDefaultColors fills missing colors from the palette. Segmented charts
// get one color per point, the others one color per dataset.
func applyDefaultColors(ds *Dataset, t Type, index int) {
	if len(ds.BackgroundColor) == 0 {
		if t.segmented() && len(ds.Data) > 1 {
			colors := make(ColorValue, len(ds.Data))
			for j := range ds.Data {
				colors[j] = PaletteColor(j)
			}
			ds.BackgroundColor = colors
		} else {
			ds.BackgroundColor = ColorValue{PaletteColor(index)}
		}
	}
	if len(ds.BorderColor) == 0 {
		ds.BorderColor = append(ColorValue{}, ds.BackgroundColor...)
	}
}

// stripFences removes a Markdown code fence around the JSON, if any
func stripFences(body string) string {
	s := strings.TrimSpace(body)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func labelString(raw json.RawMessage) (string, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("decode label: %w", err)
	}
	switch l := v.(type) {
	case string:
		return l, nil
	case float64:
		return strconv.FormatFloat(l, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(l), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("label must be a string or number, got %s", string(raw))
	}
}

// numericValue accepts JSON numbers and strings that parse as numbers
func numericValue(raw json.RawMessage) (float64, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode value: %w", err)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("value %q is not numeric", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value %s is not numeric", string(raw))
	}
}
