package ingest

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/richardlehane/mscfb"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// GenericParser handles files with no dedicated parser. Content that decodes
// cleanly as UTF-8 is kept as text; anything else is described, not extracted.
type GenericParser struct{}

func NewGenericParser() *GenericParser {
	return &GenericParser{}
}

func (gp *GenericParser) Parse(data []byte, filename string) (ParsedResult, error) {
	if isBinary(data) {
		if img := imageInfo(data); img != nil {
			return ParsedResult{
				Text: describeBinary(filename, len(data),
					fmt.Sprintf("a %s image (%dx%d pixels)", img.Format, img.Width, img.Height)),
				Metadata: Metadata{Binary: &BinaryMetadata{Image: img}},
				Summary: fmt.Sprintf("Image %s (%s, %dx%d), no text extracted",
					filepath.Base(filename), img.Format, img.Width, img.Height),
			}, nil
		}
		return ParsedResult{
			Text:     describeBinary(filename, len(data), "an unsupported binary format"),
			Metadata: Metadata{Binary: &BinaryMetadata{}},
			Summary:  fmt.Sprintf("Binary file %s (%d bytes), content not extracted", filepath.Base(filename), len(data)),
		}, nil
	}

	text := string(bytes.TrimPrefix(data, utf8BOM))
	return ParsedResult{
		Text:    text,
		Summary: fmt.Sprintf("Text content with %d characters", utf8.RuneCountInString(text)),
	}, nil
}

// isBinary reports whether data cannot be represented as text: either it is
// not valid UTF-8 or it already carries replacement characters.
func isBinary(data []byte) bool {
	if !utf8.Valid(data) {
		return true
	}
	return bytes.ContainsRune(data, utf8.RuneError)
}

// imageInfo reads only the image header
func imageInfo(data []byte) *ImageMetadata {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return &ImageMetadata{Format: format, Width: cfg.Width, Height: cfg.Height}
}

func describeBinary(filename string, size int, kind string) string {
	return fmt.Sprintf("File: %s\nSize: %d bytes\nThis file is %s; its content could not be extracted.",
		filepath.Base(filename), size, kind)
}

func (gp *GenericParser) SupportedExtensions() []string {
	return []string{}
}

func (gp *GenericParser) GetDocumentType() Format {
	return FormatGeneric
}

// DOCParser handles legacy Word .doc files. Only the OLE2 container is
// inspected; text is never extracted.
type DOCParser struct{}

func NewDOCParser() *DOCParser {
	return &DOCParser{}
}

func (dp *DOCParser) Parse(data []byte, filename string) (ParsedResult, error) {
	meta := &BinaryMetadata{}
	kind := "a legacy Word document (.doc); convert it to .docx to include its text"

	streams, err := oleStreams(data)
	if err == nil {
		meta.Container = "ole2"
		meta.Streams = streams
	} else {
		kind = "not a readable legacy Word document"
	}

	return ParsedResult{
		Text:     describeBinary(filename, len(data), kind),
		Metadata: Metadata{Binary: meta},
		Summary:  fmt.Sprintf("Legacy Word document %s (%d bytes), metadata only", filepath.Base(filename), len(data)),
	}, nil
}

func oleStreams(data []byte) (streams []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			streams = nil
			err = fmt.Errorf("ole container panic: %v", r)
		}
	}()

	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	for entry, nextErr := doc.Next(); nextErr == nil; entry, nextErr = doc.Next() {
		if name := strings.TrimSpace(entry.Name); name != "" {
			streams = append(streams, name)
		}
	}
	return streams, nil
}

func (dp *DOCParser) SupportedExtensions() []string {
	return []string{".doc"}
}

func (dp *DOCParser) GetDocumentType() Format {
	return FormatDOC
}
