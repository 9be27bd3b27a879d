package report

import (
	"encoding/json"
	"io"

	"github.com/Emojigit/FilterInappropriateCSD/internal"
)

// JSONExporter writes the run result as indented JSON
type JSONExporter struct{}

// Export writes result to w
func (e *JSONExporter) Export(result *internal.RunResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
