package report

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"lil-report/pkg/charts"
)

// CompressText compresses text using gzip and returns compressed bytes
func CompressText(text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	if _, err := gzipWriter.Write([]byte(text)); err != nil {
		return nil, fmt.Errorf("failed to write to gzip writer: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// DecompressText decompresses gzip-compressed bytes back to text
func DecompressText(compressedData []byte) (string, error) {
	if len(compressedData) == 0 {
		return "", nil
	}

	gzipReader, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return "", fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	var buf bytes.Buffer
	// #nosec G110 - only data this package compressed is read back
	if _, err := io.Copy(&buf, gzipReader); err != nil {
		return "", fmt.Errorf("failed to decompress data: %w", err)
	}

	return buf.String(), nil
}

// encodeCharts serializes charts with msgpack, reusing the JSON field names
func encodeCharts(list []charts.ChartSpec) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(list); err != nil {
		return nil, fmt.Errorf("failed to encode charts: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeCharts(data []byte) ([]charts.ChartSpec, error) {
	list := []charts.ChartSpec{}
	if len(data) == 0 {
		return list, nil
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode charts: %w", err)
	}
	if list == nil {
		list = []charts.ChartSpec{}
	}
	return list, nil
}
