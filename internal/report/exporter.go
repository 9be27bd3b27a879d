// Package report writes the end-of-run summary in a chosen format.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/Emojigit/FilterInappropriateCSD/internal"
)

// Exporter defines the interface for all report formats
type Exporter interface {
	Export(result *internal.RunResult, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md)", format)
	}
}

// WriteFile exports result to path, or to stdout when path is "-"
func WriteFile(e Exporter, result *internal.RunResult, path string) error {
	if path == "-" {
		return e.Export(result, os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := e.Export(result, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
