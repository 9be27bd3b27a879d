package internal

import "context"

// PageRevision is the latest revision of a page as read from the wiki
type PageRevision struct {
	Title   string `json:"title" yaml:"title"`
	RevID   int64  `json:"revid" yaml:"revid"`
	Content string `json:"-" yaml:"-"`
	User    string `json:"user" yaml:"user"`
}

// EditJob is a confirmed rewrite waiting to be submitted. BaseRevID is the
// revision the new content was computed from.
type EditJob struct {
	Title      string
	NewContent string
	BaseRevID  int64
	Summary    string
}

// CategoryQuery selects one page of category members
type CategoryQuery struct {
	Category   string
	Namespace  int
	Limit      int
	Descending bool
	Continue   string // "" for the first page
}

// CategoryBatch is one page of category members. More is false once the
// listing is exhausted; Continue is only meaningful while More is true.
type CategoryBatch struct {
	Titles   []string
	Continue string
	More     bool
}

// Decision is the operator's answer for one matching page
type Decision int

const (
	DecisionReject Decision = iota
	DecisionAccept
	DecisionAbort
)

func (d Decision) String() string {
	switch d {
	case DecisionAccept:
		return "accept"
	case DecisionAbort:
		return "abort"
	default:
		return "reject"
	}
}

// Candidate is a page whose content the rewrite pattern changed
type Candidate struct {
	Page     PageRevision
	Proposed string
}

// Decider confirms rewrites. The console implementation prompts the
// operator; tests inject scripted answers.
type Decider interface {
	Decide(ctx context.Context, c Candidate) (Decision, error)
}

// DeciderFunc adapts a function to the Decider interface
type DeciderFunc func(ctx context.Context, c Candidate) (Decision, error)

// Decide calls f(ctx, c)
func (f DeciderFunc) Decide(ctx context.Context, c Candidate) (Decision, error) {
	return f(ctx, c)
}

// WikiAPI is the subset of the MediaWiki action API the workflow uses
type WikiAPI interface {
	Login(ctx context.Context, username, password string) error
	ListCategoryMembers(ctx context.Context, q CategoryQuery) (CategoryBatch, error)
	FetchRevisions(ctx context.Context, titles []string) ([]PageRevision, error)
	SubmitEdit(ctx context.Context, job EditJob) error
}

// EditFailure records an edit the server rejected
type EditFailure struct {
	Title string `json:"title" yaml:"title"`
	Error string `json:"error" yaml:"error"`
}

// RunResult summarises one run of the workflow
type RunResult struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	LogPage    string        `json:"log_page" yaml:"log_page"`
	StartedAt  string        `json:"started_at" yaml:"started_at"`
	FinishedAt string        `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Batches    int           `json:"batches" yaml:"batches"`
	Scanned    int           `json:"scanned" yaml:"scanned"`
	Matched    int           `json:"matched" yaml:"matched"`
	Accepted   int           `json:"accepted" yaml:"accepted"`
	Rejected   int           `json:"rejected" yaml:"rejected"`
	Edited     []string      `json:"edited" yaml:"edited"`
	Failed     []EditFailure `json:"failed,omitempty" yaml:"failed,omitempty"`
	LogAppends int           `json:"log_appends" yaml:"log_appends"`
	Aborted    bool          `json:"aborted" yaml:"aborted"`
}
