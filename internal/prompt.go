package internal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	pageStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)

	contentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	addedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	removedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	contextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// diffContext is the number of unchanged lines kept around each change
const diffContext = 2

// ConsoleDecider asks the operator about each candidate on a terminal
type ConsoleDecider struct {
	in          *bufio.Reader
	out         io.Writer
	showContent bool
}

// NewConsoleDecider creates a decider reading answers from in. When
// showContent is set the full original content is printed before the diff.
func NewConsoleDecider(in io.Reader, out io.Writer, showContent bool) *ConsoleDecider {
	return &ConsoleDecider{
		in:          bufio.NewReader(in),
		out:         out,
		showContent: showContent,
	}
}

// Decide prints the candidate and reads one answer. End of input aborts.
func (d *ConsoleDecider) Decide(ctx context.Context, c Candidate) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return DecisionAbort, err
	}

	fmt.Fprintln(d.out, pageStyle.Render("Page: "+c.Page.Title))
	fmt.Fprintln(d.out, "Last edited by: "+userStyle.Render(c.Page.User))
	if d.showContent {
		fmt.Fprintln(d.out, contentStyle.Render(c.Page.Content))
	}
	fmt.Fprint(d.out, RenderDiff(c.Page.Content, c.Proposed))
	fmt.Fprint(d.out, "Do it? (y/N/b) ")

	line, err := d.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return DecisionAbort, fmt.Errorf("read answer: %w", err)
		}
		if line == "" {
			fmt.Fprintln(d.out)
			return DecisionAbort, nil
		}
	}
	fmt.Fprintln(d.out)
	return ParseDecision(line), nil
}

// ParseDecision maps an answer to a decision by its first character:
// y accepts, b aborts, anything else rejects.
func ParseDecision(answer string) Decision {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return DecisionReject
	}
	r, _ := utf8.DecodeRuneInString(answer)
	switch unicode.ToLower(r) {
	case 'y':
		return DecisionAccept
	case 'b':
		return DecisionAbort
	default:
		return DecisionReject
	}
}

// RenderDiff renders a line diff between before and after with a few lines
// of unchanged context around each change.
func RenderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for i, diff := range diffs {
		chunk := splitLines(diff.Text)
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			for _, l := range chunk {
				sb.WriteString(addedStyle.Render("+ "+l) + "\n")
			}
		case diffmatchpatch.DiffDelete:
			for _, l := range chunk {
				sb.WriteString(removedStyle.Render("- "+l) + "\n")
			}
		case diffmatchpatch.DiffEqual:
			head, tail := diffContext, diffContext
			if i == 0 {
				head = 0
			}
			if i == len(diffs)-1 {
				tail = 0
			}
			if head+tail >= len(chunk) {
				for _, l := range chunk {
					sb.WriteString(contextStyle.Render("  "+l) + "\n")
				}
				continue
			}
			for _, l := range chunk[:head] {
				sb.WriteString(contextStyle.Render("  "+l) + "\n")
			}
			sb.WriteString(contextStyle.Render("  …") + "\n")
			for _, l := range chunk[len(chunk)-tail:] {
				sb.WriteString(contextStyle.Render("  "+l) + "\n")
			}
		}
	}
	return sb.String()
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{""}
	}
	return strings.Split(s, "\n")
}
