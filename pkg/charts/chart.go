package charts

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Type is the chart kind understood by the front-end renderer
type Type string

const (
	TypeBar       Type = "bar"
	TypeLine      Type = "line"
	TypePie       Type = "pie"
	TypeDoughnut  Type = "doughnut"
	TypeArea      Type = "area"
	TypeScatter   Type = "scatter"
	TypeRadar     Type = "radar"
	TypePolarArea Type = "polarArea"
)

var knownTypes = map[Type]bool{
	TypeBar:       true,
	TypeLine:      true,
	TypePie:       true,
	TypeDoughnut:  true,
	TypeArea:      true,
	TypeScatter:   true,
	TypeRadar:     true,
	TypePolarArea: true,
}

// ParseType maps a model-supplied type name onto a known Type, defaulting to bar
func ParseType(s string) Type {
	t := Type(strings.TrimSpace(s))
	if knownTypes[t] {
		return t
	}
	for known := range knownTypes {
		if strings.EqualFold(string(known), string(t)) {
			return known
		}
	}
	return TypeBar
}

// segmented reports whether each data point gets its own color
func (t Type) segmented() bool {
	return t == TypePie || t == TypeDoughnut || t == TypePolarArea
}

// Palette holds the default dataset colors, used in order and cycled
var Palette = []string{
	"#3B82F6",
	"#10B981",
	"#F59E0B",
	"#EF4444",
	"#8B5CF6",
	"#EC4899",
	"#06B6D4",
	"#84CC16",
	"#F97316",
	"#6366F1",
}

// PaletteColor returns the palette entry for position i
func PaletteColor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// ChartSpec is a validated chart ready for rendering
type ChartSpec struct {
	ID    string `json:"id"`
	Type  Type   `json:"type"`
	Title string `json:"title"`
	Data  Data   `json:"data"`
}

type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Label           string     `json:"label"`
	Data            []float64  `json:"data"`
	BackgroundColor ColorValue `json:"backgroundColor"`
	BorderColor     ColorValue `json:"borderColor"`
}

// ColorValue is either a single color or one color per data point. A single
// color is encoded as a JSON string, several as an array.
type ColorValue []string

func (c ColorValue) MarshalJSON() ([]byte, error) {
	switch len(c) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(c[0])
	default:
		return json.Marshal([]string(c))
	}
}

func (c *ColorValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*c = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*c = nil
		} else {
			*c = ColorValue{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("color must be a string or an array of strings: %w", err)
	}
	*c = ColorValue(many)
	return nil
}

// IDGenerator issues chart ids that are unique within one response. Ids share
// a random token so charts from different responses do not collide either.
type IDGenerator struct {
	mu    sync.Mutex
	token string
	next  int
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{token: strings.ReplaceAll(uuid.NewString(), "-", "")[:8]}
}

// Next returns chart-<token>-<ordinal>, ordinals starting at 1
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("chart-%s-%d", g.token, g.next)
}
