package charts

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"testing"
)

var chartIDPattern = regexp.MustCompile(`^chart-[0-9a-f]{8}-\d+$`)

func TestExtract_NoBlocks(t *testing.T) {
	tests := []string{
		"",
		"<p>Plain report</p>",
		"<p>Mentions " + EndToken + " only</p>",
	}

	for _, content := range tests {
		result := Extract(content)
		if result.Content != content {
			t.Errorf("Expected content unchanged, got %q", result.Content)
		}
		if result.Charts == nil || len(result.Charts) != 0 {
			t.Errorf("Expected empty non-nil chart list, got %v", result.Charts)
		}
	}
}

func TestExtract_SingleBarChart(t *testing.T) {
	content := `<p>Intro</p>` + StartToken +
		`{"type":"bar","data":{"labels":["A","B"],"datasets":[{"label":"X","data":[1,2]}]}}` +
		EndToken + `<p>Outro</p>`

	result := Extract(content)
	if len(result.Charts) != 1 {
		t.Fatalf("Expected 1 chart, got %d", len(result.Charts))
	}

	chart := result.Charts[0]
	if !chartIDPattern.MatchString(chart.ID) {
		t.Errorf("Unexpected chart id %q", chart.ID)
	}
	if chart.Type != TypeBar {
		t.Errorf("Expected bar, got %s", chart.Type)
	}
	ds := chart.Data.Datasets[0]
	if !reflect.DeepEqual(ds.BackgroundColor, ColorValue{Palette[0]}) {
		t.Errorf("Expected first palette color, got %v", ds.BackgroundColor)
	}
	if !reflect.DeepEqual(ds.Data, []float64{1, 2}) {
		t.Errorf("Unexpected data %v", ds.Data)
	}

	placeholder := `<div class="chart-placeholder" data-chart-id="` + chart.ID + `" data-chart-title=""></div>`
	if result.Content != `<p>Intro</p>`+placeholder+`<p>Outro</p>` {
		t.Errorf("Unexpected content %q", result.Content)
	}
}

func TestExtract_MalformedBlockDoesNotAbort(t *testing.T) {
	good := StartToken + `{"type":"line","title":"Trend","data":{"labels":["Q1"],"datasets":[{"label":"Rev","data":[3]}]}}` + EndToken
	bad := StartToken + `{"type":"bar","data":` + EndToken

	result := Extract("before " + bad + " middle " + good + " after")
	if len(result.Charts) != 1 {
		t.Fatalf("Expected exactly 1 chart, got %d", len(result.Charts))
	}
	if result.Failed != 1 {
		t.Errorf("Expected 1 failed block, got %d", result.Failed)
	}
	if !strings.Contains(result.Content, "before "+ErrorMarker+" middle ") {
		t.Errorf("Expected error marker in place of malformed block, got %q", result.Content)
	}
	if !strings.Contains(result.Content, `data-chart-id="`+result.Charts[0].ID+`" data-chart-title="Trend"`) {
		t.Errorf("Expected placeholder for valid block, got %q", result.Content)
	}
	if strings.Contains(result.Content, StartToken) || strings.Contains(result.Content, EndToken) {
		t.Error("Expected all sentinel tokens to be consumed")
	}
}

func TestExtract_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{name: "missing data", body: `{"type":"bar"}`, valid: false},
		{name: "no datasets", body: `{"data":{"labels":["a"],"datasets":[]}}`, valid: false},
		{name: "non numeric value", body: `{"data":{"labels":["a"],"datasets":[{"data":["ten"]}]}}`, valid: false},
		{name: "null value", body: `{"data":{"labels":["a"],"datasets":[{"data":[null]}]}}`, valid: false},
		{name: "numeric strings", body: `{"data":{"labels":["a","b"],"datasets":[{"data":["1.5"," 2 "]}]}}`, valid: true},
		{name: "numeric labels", body: `{"data":{"labels":[2023,2024],"datasets":[{"data":[1,2]}]}}`, valid: true},
		{name: "fenced json", body: "\n```json\n{\"data\":{\"labels\":[\"a\"],\"datasets\":[{\"data\":[1]}]}}\n```\n", valid: true},
		{name: "not json", body: `bar chart of sales`, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Extract(StartToken + tt.body + EndToken)
			if tt.valid && len(result.Charts) != 1 {
				t.Errorf("Expected valid chart, got content %q", result.Content)
			}
			if !tt.valid && (len(result.Charts) != 0 || result.Content != ErrorMarker) {
				t.Errorf("Expected error marker, got %q", result.Content)
			}
		})
	}
}

func TestExtract_UnterminatedBlock(t *testing.T) {
	content := "ok " + StartToken + `{"data":{}}` + " trailing"
	result := Extract(content)
	if result.Content != content {
		t.Errorf("Expected unterminated block left as-is, got %q", result.Content)
	}
}

func TestExtract_IDsUniqueAndOrdered(t *testing.T) {
	block := StartToken + `{"data":{"labels":["a"],"datasets":[{"data":[1]}]}}` + EndToken
	result := Extract(block + block + block)

	if len(result.Charts) != 3 {
		t.Fatalf("Expected 3 charts, got %d", len(result.Charts))
	}
	seen := map[string]bool{}
	for i, c := range result.Charts {
		if seen[c.ID] {
			t.Errorf("Duplicate id %s", c.ID)
		}
		seen[c.ID] = true
		if !strings.HasSuffix(c.ID, "-"+string(rune('1'+i))) {
			t.Errorf("Expected ordinal %d in id %s", i+1, c.ID)
		}
	}
}

func TestExtract_TypesAndColors(t *testing.T) {
	body := `{"type":"Pie","title":"Share <&>","data":{"labels":["a","b","c"],"datasets":[{"data":[1,2,3]}]}}`
	result := Extract(StartToken + body + EndToken)
	if len(result.Charts) != 1 {
		t.Fatalf("Expected 1 chart, got %d", len(result.Charts))
	}

	chart := result.Charts[0]
	if chart.Type != TypePie {
		t.Errorf("Expected case-insensitive pie, got %s", chart.Type)
	}
	if got := chart.Data.Datasets[0].BackgroundColor; !reflect.DeepEqual(got, ColorValue{Palette[0], Palette[1], Palette[2]}) {
		t.Errorf("Expected per-segment colors, got %v", got)
	}
	if !strings.Contains(result.Content, `data-chart-title="Share &lt;&amp;&gt;"`) {
		t.Errorf("Expected escaped title, got %q", result.Content)
	}

	multi := `{"type":"funnel","data":{"labels":["a"],"datasets":[{"data":[1]},{"data":[2],"backgroundColor":"#000000"}]}}`
	result = Extract(StartToken + multi + EndToken)
	chart = result.Charts[0]
	if chart.Type != TypeBar {
		t.Errorf("Expected unknown type to default to bar, got %s", chart.Type)
	}
	if !reflect.DeepEqual(chart.Data.Datasets[1].BackgroundColor, ColorValue{"#000000"}) {
		t.Errorf("Expected model color kept, got %v", chart.Data.Datasets[1].BackgroundColor)
	}
}

func TestColorValueJSON(t *testing.T) {
	tests := []struct {
		in   string
		want ColorValue
		out  string
	}{
		{in: `"#fff"`, want: ColorValue{"#fff"}, out: `"#fff"`},
		{in: `["#fff","#000"]`, want: ColorValue{"#fff", "#000"}, out: `["#fff","#000"]`},
		{in: `null`, want: nil, out: `null`},
	}

	for _, tt := range tests {
		var c ColorValue
		if err := json.Unmarshal([]byte(tt.in), &c); err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.in, err)
		}
		if !reflect.DeepEqual(c, tt.want) {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, c, tt.want)
		}
		out, err := json.Marshal(c)
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != tt.out {
			t.Errorf("Marshal = %s, want %s", out, tt.out)
		}
	}

	var c ColorValue
	if err := json.Unmarshal([]byte(`42`), &c); err == nil {
		t.Error("Expected error for numeric color")
	}
}
