package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxContextChars = 150000
	DefaultParseWorkers    = 4

	fileRule = "----------------------------------------"
)

// NamedResult pairs a parsed file with the name shown to the model
type NamedResult struct {
	Name   string
	Result ParsedResult
}

// Normalizer merges parsed files into one bounded context string
type Normalizer struct {
	MaxContextChars int
	ParseWorkers    int
}

// NewNormalizer returns a normalizer with the given caps, substituting
// defaults for non-positive values
func NewNormalizer(maxContextChars, parseWorkers int) *Normalizer {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	if parseWorkers <= 0 {
		parseWorkers = DefaultParseWorkers
	}
	return &Normalizer{MaxContextChars: maxContextChars, ParseWorkers: parseWorkers}
}

// Normalize renders every file under its own banner, in input order. The file
// that crosses MaxContextChars is truncated and the rest are summarized in a
// single omission note. The result never exceeds MaxContextChars runes.
func (n *Normalizer) Normalize(files []NamedResult) string {
	if len(files) == 0 {
		return ""
	}

	limit := n.MaxContextChars
	if limit <= 0 {
		limit = DefaultMaxContextChars
	}

	var out strings.Builder
	used := 0
	for i, f := range files {
		block := renderFileBlock(i+1, len(files), f)
		size := utf8.RuneCountInString(block)

		if used+size <= limit {
			out.WriteString(block)
			used += size
			continue
		}

		// The truncated block, its marker and the omission note together
		// must fit in what is left of the limit.
		remaining := limit - used
		note := omissionNote(len(files)-i-1, limit)
		room := remaining - utf8.RuneCountInString(note) - utf8.RuneCountInString(TruncationMarker) - 1
		if room > 0 {
			cut, _ := Truncate(block, room)
			out.WriteString(cut)
			out.WriteString("\n")
		} else {
			note = omissionNote(len(files)-i, limit)
		}
		if utf8.RuneCountInString(note) <= remaining {
			out.WriteString(note)
		}
		break
	}

	return strings.TrimRight(out.String(), "\n")
}

func omissionNote(omitted, limit int) string {
	if omitted <= 0 {
		return ""
	}
	return fmt.Sprintf("[%d more file(s) omitted: combined content exceeds %d characters]\n", omitted, limit)
}

func renderFileBlock(index, total int, f NamedResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== FILE %d of %d: %s ===\n", index, total, f.Name)
	if f.Result.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", f.Result.Summary)
	}
	if f.Result.Error != "" {
		fmt.Fprintf(&b, "Extraction error: %s\n", f.Result.Error)
	}
	if text := strings.TrimSpace(f.Result.Text); text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}
	b.WriteString(fileRule)
	b.WriteString("\n\n")
	return b.String()
}

// ParseAll parses uploads concurrently. Results are stored by index so the
// output order always matches the input order.
func (n *Normalizer) ParseAll(ctx context.Context, handler *DocumentHandler, uploads []Upload) ([]NamedResult, error) {
	results := make([]NamedResult, len(uploads))

	g, ctx := errgroup.WithContext(ctx)
	workers := n.ParseWorkers
	if workers <= 0 {
		workers = DefaultParseWorkers
	}
	g.SetLimit(workers)

	for i, upload := range uploads {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = NamedResult{Name: upload.Name, Result: handler.Parse(upload)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to parse uploads: %w", err)
	}
	return results, nil
}
