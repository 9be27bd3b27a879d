package internal

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workflow scans the category, rewrites confirmed pages and records them on
// the discussion log page. It runs strictly sequentially.
type Workflow struct {
	api      WikiAPI
	decider  Decider
	settings Settings

	logger  *zap.Logger
	metrics *Metrics
	sleep   Sleeper
	rng     *rand.Rand
	now     func() time.Time
}

// Option configures a Workflow
type Option func(*Workflow)

// WithLogger sets the logger; the default discards everything
func WithLogger(l *zap.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// WithSleeper replaces the wait used for edit spacing and append backoff
func WithSleeper(s Sleeper) Option {
	return func(w *Workflow) { w.sleep = s }
}

// WithRand sets the jitter source for append backoff
func WithRand(r *rand.Rand) Option {
	return func(w *Workflow) { w.rng = r }
}

// WithClock sets the clock used for run timestamps
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// NewWorkflow creates a workflow over api, asking decider about every match
func NewWorkflow(api WikiAPI, decider Decider, settings Settings, opts ...Option) *Workflow {
	w := &Workflow{
		api:      api,
		decider:  decider,
		settings: settings,
		logger:   zap.NewNop(),
		sleep:    SleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = NewMetrics()
	}
	return w
}

// Run executes the whole workflow. An operator abort ends the run without
// error and with RunResult.Aborted set; edits submitted before a failure stay
// applied on the wiki.
func (w *Workflow) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		LogPage:   w.settings.LogPage,
		StartedAt: w.now().Format(time.RFC3339),
		Edited:    []string{},
	}
	log := w.logger.With(zap.String("run_id", result.RunID))
	defer func() { result.FinishedAt = w.now().Format(time.RFC3339) }()

	log.Debug("insertion marker", zap.String("marker", w.settings.Marker))
	if err := w.api.Login(ctx, w.settings.Username, w.settings.BotPassword); err != nil {
		return result, fmt.Errorf("authenticate: %w", err)
	}
	log.Info("logged in", zap.String("user", w.settings.Username))

	cursor := ""
	for {
		batch, err := w.api.ListCategoryMembers(ctx, CategoryQuery{
			Category:   w.settings.Category,
			Namespace:  w.settings.Namespace,
			Limit:      w.settings.PageSize,
			Descending: w.settings.Descending,
			Continue:   cursor,
		})
		if err != nil {
			return result, fmt.Errorf("list category members: %w", err)
		}
		result.Batches++
		w.metrics.batch()
		log.Info("batch listed",
			zap.Int("batch", result.Batches),
			zap.Int("pages", len(batch.Titles)),
			zap.Bool("more", batch.More))

		jobs, aborted, err := w.triage(ctx, log, batch.Titles, result)
		if err != nil {
			return result, err
		}
		if aborted {
			result.Aborted = true
			log.Info("aborted by operator", zap.Int("discarded_jobs", len(jobs)))
			return result, nil
		}

		summary, err := w.submit(ctx, log, jobs, result)
		if err != nil {
			return result, err
		}

		if summary == "" {
			// Nothing was edited, so there is nothing to record for this batch.
			log.Info("no successful edits in batch, skipping log append")
		} else {
			if err := w.appendSummary(ctx, log, summary); err != nil {
				return result, err
			}
			result.LogAppends++
		}

		if !batch.More {
			break
		}
		cursor = batch.Continue
	}

	log.Info("run complete",
		zap.Int("edited", len(result.Edited)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// triage fetches the batch content and collects accepted edit jobs. On abort
// it returns the jobs queued so far, which the caller discards.
func (w *Workflow) triage(ctx context.Context, log *zap.Logger, titles []string, result *RunResult) ([]EditJob, bool, error) {
	if len(titles) == 0 {
		return nil, false, nil
	}
	revs, err := w.api.FetchRevisions(ctx, titles)
	if err != nil {
		return nil, false, fmt.Errorf("fetch page content: %w", err)
	}

	var jobs []EditJob
	for _, rev := range revs {
		result.Scanned++
		w.metrics.scanned()

		proposed, ok := Rewrite(w.settings.Pattern, w.settings.Replacement, rev.Content)
		if !ok {
			log.Info("no match", zap.String("title", rev.Title), zap.String("last_user", rev.User))
			continue
		}
		result.Matched++
		w.metrics.matched()

		decision, err := w.decider.Decide(ctx, Candidate{Page: rev, Proposed: proposed})
		if err != nil {
			return jobs, false, fmt.Errorf("confirm %s: %w", rev.Title, err)
		}
		w.metrics.decision(decision)

		switch decision {
		case DecisionAccept:
			result.Accepted++
			jobs = append(jobs, EditJob{
				Title:      rev.Title,
				NewContent: proposed,
				BaseRevID:  rev.RevID,
				Summary:    w.settings.EditSummary,
			})
		case DecisionAbort:
			return jobs, true, nil
		default:
			result.Rejected++
		}
	}
	return jobs, false, nil
}

// submit sends the jobs one at a time, EditDelay apart, and returns the
// summary block for the ones the server accepted. Failed edits are recorded
// and skipped.
func (w *Workflow) submit(ctx context.Context, log *zap.Logger, jobs []EditJob, result *RunResult) (string, error) {
	var summary strings.Builder
	for i, job := range jobs {
		if i > 0 {
			if err := w.sleep(ctx, w.settings.EditDelay); err != nil {
				return summary.String(), err
			}
		}

		if err := w.api.SubmitEdit(ctx, job); err != nil {
			if isContextErr(err) {
				return summary.String(), err
			}
			log.Warn("edit failed",
				zap.String("title", job.Title),
				zap.Int64("baserevid", job.BaseRevID),
				zap.Error(err))
			result.Failed = append(result.Failed, EditFailure{Title: job.Title, Error: err.Error()})
			w.metrics.edit("failed")
			continue
		}

		log.Info("edited", zap.String("title", job.Title), zap.Int64("baserevid", job.BaseRevID))
		result.Edited = append(result.Edited, job.Title)
		w.metrics.edit("success")
		summary.WriteString(SummaryLine(job.Title))
	}
	return summary.String(), nil
}

// appendSummary inserts summary before the marker on the log page, refetching
// and resubmitting on failure until the retry policy is exhausted. A missing
// marker is fatal and never retried.
func (w *Workflow) appendSummary(ctx context.Context, log *zap.Logger, summary string) error {
	policy := w.settings.AppendRetry
	page := w.settings.LogPage
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := policy.Backoff(attempt-1, w.rng)
			log.Info("retrying log append",
				zap.String("page", page),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if err := w.sleep(ctx, delay); err != nil {
				return err
			}
		}

		revs, err := w.api.FetchRevisions(ctx, []string{page})
		if err != nil {
			if isContextErr(err) {
				return err
			}
			lastErr = fmt.Errorf("fetch %s: %w", page, err)
			w.metrics.appendTry("fetch_error")
			continue
		}
		if len(revs) == 0 {
			w.metrics.appendTry("missing_page")
			return fmt.Errorf("log page %s does not exist", page)
		}
		rev := revs[0]

		updated, ok := InsertBeforeMarker(rev.Content, w.settings.Marker, summary)
		if !ok {
			w.metrics.appendTry("no_marker")
			return &MarkerNotFoundError{Page: page, Marker: w.settings.Marker}
		}

		err = w.api.SubmitEdit(ctx, EditJob{
			Title:      page,
			NewContent: updated,
			BaseRevID:  rev.RevID,
			Summary:    w.settings.EditSummary,
		})
		if err == nil {
			w.metrics.appendTry("success")
			log.Info("log page updated", zap.String("page", page), zap.Int64("baserevid", rev.RevID))
			return nil
		}
		if isContextErr(err) {
			return err
		}
		if IsEditConflict(err) {
			w.metrics.appendTry("conflict")
		} else {
			w.metrics.appendTry("error")
		}
		lastErr = err
	}

	return &RetryExhaustedError{
		Op:       "append summary to " + page,
		Attempts: policy.MaxAttempts,
		Err:      lastErr,
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
