package internal

import "strings"

// SummaryLine is the log-page entry for one converted page
func SummaryLine(title string) string {
	return "=== [[:" + title + "]] ===\n\n"
}

// InsertBeforeMarker returns content with block placed immediately before
// the first occurrence of marker. The marker itself is kept exactly once
// where it was. ok is false when the content would not change.
func InsertBeforeMarker(content, marker, block string) (string, bool) {
	if marker == "" || block == "" {
		return content, false
	}
	i := strings.Index(content, marker)
	if i < 0 {
		return content, false
	}
	return content[:i] + block + content[i:], true
}
