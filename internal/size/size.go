// Package size measures build artifacts: raw, gzip and brotli byte counts.
package size

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/andybalholm/brotli"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
)

// Report holds the sizes of one artifact.
type Report struct {
	Path   string
	Raw    int
	Gzip   int
	Brotli int
}

// Measure compresses data at the default levels and records the sizes.
func Measure(path string, data []byte) (Report, error) {
	gz, err := gzipLen(data)
	if err != nil {
		return Report{}, fmt.Errorf("measuring gzip size of %s: %w", path, err)
	}

	br, err := brotliLen(data)
	if err != nil {
		return Report{}, fmt.Errorf("measuring brotli size of %s: %w", path, err)
	}

	return Report{Path: path, Raw: len(data), Gzip: gz, Brotli: br}, nil
}

// String renders the report in the style of "main.css 12 kB (gzip 3.1 kB, br 2.7 kB)".
func (r Report) String() string {
	return fmt.Sprintf("%s %s (gzip %s, br %s)", r.Path, format(r.Raw), format(r.Gzip), format(r.Brotli))
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", r.Path),
		slog.Int("raw", r.Raw),
		slog.Int("gzip", r.Gzip),
		slog.Int("brotli", r.Brotli),
		slog.String("human", fmt.Sprintf("%s / %s gzip", format(r.Raw), format(r.Gzip))),
	)
}

func format(n int) string {
	return humanize.Bytes(uint64(n)) //nolint:gosec // n is a length
}

func gzipLen(data []byte) (int, error) {
	var buf bytes.Buffer

	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return 0, err
	}

	if _, err := w.Write(data); err != nil {
		return 0, err
	}

	if err := w.Close(); err != nil {
		return 0, err
	}

	return buf.Len(), nil
}

func brotliLen(data []byte) (int, error) {
	var buf bytes.Buffer

	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)

	if _, err := w.Write(data); err != nil {
		return 0, err
	}

	if err := w.Close(); err != nil {
		return 0, err
	}

	return buf.Len(), nil
}
