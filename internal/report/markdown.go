package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Emojigit/FilterInappropriateCSD/internal"
)

// MarkdownExporter writes a human-readable run summary
type MarkdownExporter struct{}

// Export writes result to w
func (e *MarkdownExporter) Export(result *internal.RunResult, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Run %s\n\n", result.RunID)
	_, _ = fmt.Fprintf(w, "**Log page:** %s  \n", result.LogPage)
	_, _ = fmt.Fprintf(w, "**Started:** %s  \n", result.StartedAt)
	if result.FinishedAt != "" {
		_, _ = fmt.Fprintf(w, "**Finished:** %s  \n", result.FinishedAt)
	}
	if result.Aborted {
		_, _ = fmt.Fprintf(w, "**Aborted by operator**  \n")
	}
	_, _ = fmt.Fprintf(w, "\n| Batches | Scanned | Matched | Accepted | Rejected | Edited | Failed |\n")
	_, _ = fmt.Fprintf(w, "|---|---|---|---|---|---|---|\n")
	_, _ = fmt.Fprintf(w, "| %d | %d | %d | %d | %d | %d | %d |\n\n",
		result.Batches, result.Scanned, result.Matched, result.Accepted,
		result.Rejected, len(result.Edited), len(result.Failed))

	if len(result.Edited) > 0 {
		_, _ = fmt.Fprintf(w, "## Edited\n\n")
		for _, title := range result.Edited {
			_, _ = fmt.Fprintf(w, "- %s\n", escapeMarkdown(title))
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(result.Failed) > 0 {
		_, _ = fmt.Fprintf(w, "## Failed\n\n")
		for _, f := range result.Failed {
			_, _ = fmt.Fprintf(w, "- %s: `%s`\n", escapeMarkdown(f.Title), f.Error)
		}
		_, _ = fmt.Fprintln(w)
	}

	return nil
}

// escapeMarkdown escapes characters that would turn a title into markup
func escapeMarkdown(text string) string {
	r := strings.NewReplacer("*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "`", "\\`")
	return r.Replace(text)
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
