package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
)

// Result describes what a write did.
type Result int

const (
	// Written means the file was created or replaced.
	Written Result = iota
	// Unchanged means the file already had the given content.
	Unchanged
	// Planned means a dry run reported the change without writing.
	Planned
)

func (r Result) String() string {
	switch r {
	case Written:
		return "written"
	case Unchanged:
		return "unchanged"
	case Planned:
		return "planned"
	}

	return fmt.Sprintf("Result(%d)", int(r))
}

// Writer is the interface for artifact destinations.
type Writer interface {
	// Write stores data at path.
	Write(path string, data []byte) (Result, error)
}

// FileWriter writes artifacts to the file system, creating parent
// directories as needed.
type FileWriter struct {
	perm    os.FileMode
	logger  *slog.Logger
	dryRun  bool
	diffOut io.Writer
}

// FileWriterOption configures a FileWriter.
type FileWriterOption func(*FileWriter)

// WithPermissions overrides the default file permissions (0644).
func WithPermissions(perm os.FileMode) FileWriterOption {
	return func(fw *FileWriter) {
		fw.perm = perm
	}
}

// WithLogger sets a logger for the FileWriter.
func WithLogger(logger *slog.Logger) FileWriterOption {
	return func(fw *FileWriter) {
		fw.logger = logger
	}
}

// WithDryRun makes the writer print unified diffs to out instead of writing.
func WithDryRun(out io.Writer) FileWriterOption {
	return func(fw *FileWriter) {
		fw.dryRun = true
		fw.diffOut = out
	}
}

// NewFileWriter creates a file system writer.
func NewFileWriter(opts ...FileWriterOption) *FileWriter {
	fw := &FileWriter{
		perm:    0o644,
		logger:  slog.Default(),
		diffOut: io.Discard,
	}

	for _, opt := range opts {
		opt(fw)
	}

	return fw
}

// Write stores data at path unless the file already holds exactly data.
func (fw *FileWriter) Write(path string, data []byte) (Result, error) {
	existing, err := os.ReadFile(path) //nolint:gosec // build output path
	exists := err == nil

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Written, fmt.Errorf("reading existing file %s: %w", path, err)
	}

	if exists && bytes.Equal(existing, data) {
		fw.logger.Debug("output unchanged", slog.String("path", path))
		return Unchanged, nil
	}

	if fw.dryRun {
		if err := fw.printDiff(path, existing, data, exists); err != nil {
			return Planned, err
		}

		return Planned, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Written, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, fw.perm); err != nil {
		return Written, fmt.Errorf("writing file %s: %w", path, err)
	}

	fw.logger.Debug("output written", slog.String("path", path), slog.Int("bytes", len(data)))

	return Written, nil
}

func (fw *FileWriter) printDiff(path string, before, after []byte, exists bool) error {
	from := path
	if !exists {
		from = "/dev/null"
	}

	diff, err := Diff(from, path, before, after)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(fw.diffOut, diff); err != nil {
		return fmt.Errorf("writing diff for %s: %w", path, err)
	}

	return nil
}

// Diff renders a unified diff between before and after.
func Diff(fromFile, toFile string, before, after []byte) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("diffing %s: %w", toFile, err)
	}

	return text, nil
}

func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}

	return difflib.SplitLines(string(b))
}
