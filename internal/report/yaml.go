package report

import (
	"io"

	"github.com/Emojigit/FilterInappropriateCSD/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter writes the run result as YAML
type YAMLExporter struct{}

// Export writes result to w
func (e *YAMLExporter) Export(result *internal.RunResult, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(result)
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
