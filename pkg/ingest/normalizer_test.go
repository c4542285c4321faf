package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer(0, 0)

	out := n.Normalize([]NamedResult{
		{Name: "sales.csv", Result: ParsedResult{Text: "Region | Revenue", Summary: "CSV with 2 rows and 2 columns"}},
		{Name: "notes.txt", Result: ParsedResult{Text: "hello", Summary: "Text document"}},
	})

	first := strings.Index(out, "=== FILE 1 of 2: sales.csv ===")
	second := strings.Index(out, "=== FILE 2 of 2: notes.txt ===")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("Expected files in input order, got:\n%s", out)
	}
	for _, want := range []string{"Summary: CSV with 2 rows and 2 columns", "Region | Revenue", fileRule} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q", want)
		}
	}
}

func TestNormalizer_Empty(t *testing.T) {
	if out := NewNormalizer(0, 0).Normalize(nil); out != "" {
		t.Errorf("Expected empty output, got %q", out)
	}
}

func TestNormalizer_IncludesExtractionError(t *testing.T) {
	out := NewNormalizer(0, 0).Normalize([]NamedResult{
		{Name: "bad.pdf", Result: ParsedResult{Text: "Could not read", Error: "failed to read PDF"}},
	})
	if !strings.Contains(out, "Extraction error: failed to read PDF") {
		t.Errorf("Expected error line, got:\n%s", out)
	}
}

func TestNormalizer_ContextCap(t *testing.T) {
	n := NewNormalizer(500, 0)

	files := make([]NamedResult, 4)
	for i := range files {
		files[i] = NamedResult{
			Name:   fmt.Sprintf("f%d.txt", i),
			Result: ParsedResult{Text: strings.Repeat("x", 300)},
		}
	}

	out := n.Normalize(files)
	if !strings.Contains(out, TruncationMarker) {
		t.Error("Expected the crossing file to be truncated")
	}
	if !strings.Contains(out, "[2 more file(s) omitted") {
		t.Errorf("Expected omission note for 2 files, got:\n%s", out)
	}
	if strings.Contains(out, "f2.txt") || strings.Contains(out, "f3.txt") {
		t.Error("Expected later files to be omitted")
	}
	if got := utf8.RuneCountInString(out); got > 500 {
		t.Errorf("Expected at most 500 runes, got %d", got)
	}
}

func TestNormalizer_ContextCapIsHardBound(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		files     int
		textRunes int
		wantNote  string
	}{
		{name: "first file crosses", limit: 200, files: 3, textRunes: 230, wantNote: "[2 more file(s) omitted"},
		{name: "last file crosses", limit: 300, files: 1, textRunes: 400},
		{name: "multibyte text", limit: 250, files: 2, textRunes: 500, wantNote: "[1 more file(s) omitted"},
		{name: "no room for content", limit: 90, files: 3, textRunes: 100, wantNote: "[3 more file(s) omitted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := make([]NamedResult, tt.files)
			for i := range files {
				files[i] = NamedResult{
					Name:   fmt.Sprintf("f%d.txt", i),
					Result: ParsedResult{Text: strings.Repeat("é", tt.textRunes)},
				}
			}

			out := NewNormalizer(tt.limit, 0).Normalize(files)
			if got := utf8.RuneCountInString(out); got > tt.limit {
				t.Errorf("Expected at most %d runes, got %d:\n%s", tt.limit, got, out)
			}
			if tt.wantNote != "" && !strings.Contains(out, tt.wantNote) {
				t.Errorf("Expected %q in output, got:\n%s", tt.wantNote, out)
			}
		})
	}
}

func TestNormalizer_ParseAllPreservesOrder(t *testing.T) {
	dh := NewDocumentHandler(DefaultLimits())
	n := NewNormalizer(0, 2)

	uploads := make([]Upload, 12)
	for i := range uploads {
		uploads[i] = Upload{Name: fmt.Sprintf("file-%02d.txt", i), Data: []byte(fmt.Sprintf("content %d", i))}
	}

	results, err := n.ParseAll(context.Background(), dh, uploads)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != len(uploads) {
		t.Fatalf("Expected %d results, got %d", len(uploads), len(results))
	}
	for i, r := range results {
		if r.Name != uploads[i].Name {
			t.Errorf("Result %d: expected %s, got %s", i, uploads[i].Name, r.Name)
		}
		if r.Result.Text != fmt.Sprintf("content %d", i) {
			t.Errorf("Result %d: unexpected text %q", i, r.Result.Text)
		}
	}
}

func TestNormalizer_ParseAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNormalizer(0, 1).ParseAll(ctx, NewDocumentHandler(DefaultLimits()), []Upload{{Name: "a.txt", Data: []byte("a")}})
	if err == nil {
		t.Error("Expected error for canceled context")
	}
}
