package internal

import "regexp"

// Rewrite applies the substitution to content. The replacement is literal,
// so "$" in it is never expanded. ok is false when nothing matched.
func Rewrite(pattern *regexp.Regexp, replacement, content string) (string, bool) {
	rewritten := pattern.ReplaceAllLiteralString(content, replacement)
	return rewritten, rewritten != content
}
