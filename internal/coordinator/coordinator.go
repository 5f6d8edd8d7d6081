// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coordinator drives a research task through its lifecycle:
// research, then critique and revision until the report meets the quality
// threshold or the revision budget runs out. Every transition is persisted
// and every stage invocation is recorded in the task's audit log.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pdiddy/research-coordinator/internal/stage"
	"github.com/pdiddy/research-coordinator/internal/store"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

// Run outcomes recorded in the final audit message and in metrics.
const (
	OutcomeAccepted   = "accepted"
	OutcomeBestEffort = "best_effort"
	OutcomeFailed     = "failed"
)

const (
	DefaultThreshold = 7.0
	DefaultTimeout   = 10 * time.Minute

	// persistTimeout bounds the writes that record a failure after the run
	// context has expired.
	persistTimeout = 10 * time.Second
)

// Researcher drafts the initial report.
type Researcher interface {
	Run(ctx context.Context, query types.ResearchQuery) (stage.ResearchOutput, error)
}

// Critic scores a report.
type Critic interface {
	Run(ctx context.Context, query types.ResearchQuery, report *types.ResearchReport) (types.CritiqueFeedback, error)
}

// Reviser rewrites a report against critique feedback.
type Reviser interface {
	Run(ctx context.Context, query types.ResearchQuery, report *types.ResearchReport, feedback types.CritiqueFeedback) (*types.ResearchReport, error)
}

// RunOptions are the per-run knobs of the quality loop.
type RunOptions struct {
	// Threshold is the minimum critique score for acceptance, in (0, 10];
	// 0 selects the default. Callers reject explicit values <= 0.
	Threshold float64
	// MaxRetries bounds the number of revisions. It is fixed when the task
	// is submitted; a negative value selects the default.
	MaxRetries int
	// Timeout bounds the whole run; <= 0 selects the default.
	Timeout time.Duration
}

// DefaultRunOptions returns threshold 7.0, three revisions, and a ten minute
// run timeout.
func DefaultRunOptions() RunOptions {
	return RunOptions{Threshold: DefaultThreshold, MaxRetries: types.DefaultMaxRetries, Timeout: DefaultTimeout}
}

// RunOptionsFromConfig reads the run defaults from configuration.
func RunOptionsFromConfig(cfg types.CoordinatorConfig) RunOptions {
	return RunOptions{Threshold: cfg.Threshold, MaxRetries: cfg.MaxRetries, Timeout: cfg.Timeout}
}

func (o RunOptions) withDefaults(d RunOptions) RunOptions {
	if o.Threshold <= 0 {
		o.Threshold = d.Threshold
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// Coordinator runs research tasks. It holds no per-task state, so one
// Coordinator may drive many tasks concurrently.
type Coordinator struct {
	Store      store.Store
	Researcher Researcher
	Critic     Critic
	Reviser    Reviser
	Defaults   RunOptions
	Logger     *slog.Logger
	Metrics    *Metrics

	now func() time.Time
}

// New returns a coordinator with DefaultRunOptions.
func New(st store.Store, researcher Researcher, critic Critic, reviser Reviser) *Coordinator {
	return &Coordinator{
		Store:      st,
		Researcher: researcher,
		Critic:     critic,
		Reviser:    reviser,
		Defaults:   DefaultRunOptions(),
	}
}

// Submit validates query and creates a pending task for it.
func (c *Coordinator) Submit(ctx context.Context, query types.ResearchQuery, opts RunOptions) (*types.ResearchTask, error) {
	query = query.Normalize()
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	opts = opts.withDefaults(c.defaults())
	task, err := c.Store.CreateTask(ctx, query, opts.MaxRetries)
	if err != nil {
		return nil, err
	}
	c.logger().Info("task submitted",
		slog.String("task_id", task.ID),
		slog.String("topic", query.Topic),
		slog.Int("max_retries", task.MaxRetries))
	return task, nil
}

// Execute submits query and runs it to a terminal state.
func (c *Coordinator) Execute(ctx context.Context, query types.ResearchQuery, opts RunOptions) (*types.ResearchTask, error) {
	task, err := c.Submit(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return task, c.Run(ctx, task, opts)
}

// Run drives a pending task to completed or failed. It returns nil when the
// task completes, accepted or best-effort, and the failure cause otherwise.
// Whatever happens, task is terminal when Run returns.
func (c *Coordinator) Run(ctx context.Context, task *types.ResearchTask, opts RunOptions) error {
	if task.Status != types.StatusPending {
		return fmt.Errorf("task %s is %s, want %s", task.ID, task.Status, types.StatusPending)
	}
	opts = opts.withDefaults(c.defaults())

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	r := &run{
		c:     c,
		task:  task,
		opts:  opts,
		agent: types.AgentResearcher,
		log:   c.logger().With(slog.String("task_id", task.ID)),
	}
	c.Metrics.runStarted()

	outcome, err := r.drive(runCtx)
	if err != nil {
		err = r.fail(ctx, runCtx, err)
		outcome = OutcomeFailed
	}
	c.Metrics.runFinished(outcome)
	return err
}

func (c *Coordinator) defaults() RunOptions {
	if c.Defaults == (RunOptions{}) {
		return DefaultRunOptions()
	}
	return c.Defaults.withDefaults(DefaultRunOptions())
}

func (c *Coordinator) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now().UTC()
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

// run is the state of one Run invocation.
type run struct {
	c    *Coordinator
	task *types.ResearchTask
	opts RunOptions
	// agent is the producer currently executing, blamed by failure messages.
	agent types.AgentType
	log   *slog.Logger
}

// drive walks the state machine and returns the completion outcome.
func (r *run) drive(ctx context.Context) (string, error) {
	if err := r.enter(ctx, types.StatusResearching, false); err != nil {
		return "", err
	}
	if err := r.research(ctx); err != nil {
		return "", err
	}
	if err := r.enter(ctx, types.StatusCritiquing, true); err != nil {
		return "", err
	}

	for {
		feedback, err := r.critique(ctx)
		if err != nil {
			return "", err
		}

		switch {
		case feedback.Passes(r.opts.Threshold):
			return OutcomeAccepted, r.complete(ctx, feedback, OutcomeAccepted)
		case r.task.RetryCount < r.task.MaxRetries:
			if err := r.task.IncrementRetry(r.c.clock()); err != nil {
				return "", err
			}
			r.c.Metrics.revisionStarted()
			if err := r.enter(ctx, types.StatusRevising, false); err != nil {
				return "", err
			}
			if err := r.revise(ctx, feedback); err != nil {
				return "", err
			}
			if err := r.enter(ctx, types.StatusCritiquing, true); err != nil {
				return "", err
			}
		default:
			return OutcomeBestEffort, r.complete(ctx, feedback, OutcomeBestEffort)
		}
	}
}

func (r *run) research(ctx context.Context) error {
	q := r.task.Query
	r.agent = types.AgentResearcher
	if err := r.message(ctx, fmt.Sprintf("Starting research on %q", q.Topic), map[string]any{
		"depth_level": q.DepthLevel,
		"subtopics":   append([]string{}, q.Subtopics...),
	}); err != nil {
		return err
	}

	start := time.Now()
	out, err := r.c.Researcher.Run(ctx, q)
	r.c.Metrics.observeStage(string(types.AgentResearcher), time.Since(start))
	for _, f := range out.Gathered.Failures {
		r.c.Metrics.sourceFailed(f.Source)
	}
	if err != nil {
		return err
	}
	if err := r.task.SetReport(out.Report, r.c.clock()); err != nil {
		return err
	}

	meta := map[string]any{
		"documents_used": len(out.Bounded.Documents),
		"source_calls":   out.Gathered.Calls,
		"empty_calls":    out.Gathered.EmptyCalls,
		"truncated":      out.Bounded.Truncated,
		"dropped":        out.Bounded.Dropped,
		"sections":       len(out.Report.Sections),
	}
	if len(out.Gathered.Failures) > 0 {
		meta["source_failures"] = out.Gathered.FailureSummaries()
	}
	return r.message(ctx, fmt.Sprintf("Research completed: %d documents from %d source calls (%d failed)",
		len(out.Bounded.Documents), out.Gathered.Calls, len(out.Gathered.Failures)), meta)
}

func (r *run) critique(ctx context.Context) (types.CritiqueFeedback, error) {
	round := r.task.Feedback.Len() + 1
	r.agent = types.AgentCritic
	if err := r.message(ctx, fmt.Sprintf("Critiquing report (round %d)", round), map[string]any{
		"round":           round,
		"revision_number": r.task.CurrentReport.RevisionNumber(),
	}); err != nil {
		return types.CritiqueFeedback{}, err
	}

	start := time.Now()
	feedback, err := r.c.Critic.Run(ctx, r.task.Query, r.task.CurrentReport)
	r.c.Metrics.observeStage(string(types.AgentCritic), time.Since(start))
	if err != nil {
		return types.CritiqueFeedback{}, err
	}
	r.c.Metrics.observeScore(feedback.OverallScore)

	if err := r.c.Store.AppendFeedback(ctx, r.task.ID, feedback); err != nil {
		return types.CritiqueFeedback{}, err
	}
	if err := r.task.AddFeedback(feedback); err != nil {
		return types.CritiqueFeedback{}, err
	}
	r.log.Info("critique scored",
		slog.Int("round", round),
		slog.Float64("score", feedback.OverallScore),
		slog.Float64("threshold", r.opts.Threshold))

	if feedback.Passes(r.opts.Threshold) || r.task.RetryCount >= r.task.MaxRetries {
		// The terminal critique message is written by complete.
		return feedback, nil
	}
	return feedback, r.message(ctx, fmt.Sprintf("Critique scored %.1f/10, below threshold %.1f", feedback.OverallScore, r.opts.Threshold),
		r.scoreMeta(feedback, "revise"))
}

func (r *run) revise(ctx context.Context, feedback types.CritiqueFeedback) error {
	r.agent = types.AgentReviser
	if err := r.message(ctx, fmt.Sprintf("Revising report (attempt %d of %d)", r.task.RetryCount, r.task.MaxRetries), map[string]any{
		"retry_count":     r.task.RetryCount,
		"max_retries":     r.task.MaxRetries,
		"priority_issues": len(feedback.PriorityIssues),
		"score":           feedback.OverallScore,
	}); err != nil {
		return err
	}

	start := time.Now()
	revised, err := r.c.Reviser.Run(ctx, r.task.Query, r.task.CurrentReport, feedback)
	r.c.Metrics.observeStage(string(types.AgentReviser), time.Since(start))
	if err != nil {
		return err
	}
	if err := r.task.SetReport(revised, r.c.clock()); err != nil {
		return err
	}

	meta := map[string]any{"revision_number": revised.RevisionNumber()}
	if summary, ok := revised.Metadata["revision_summary"].(string); ok && summary != "" {
		meta["revision_summary"] = summary
	}
	return r.message(ctx, fmt.Sprintf("Revision %d completed", revised.RevisionNumber()), meta)
}

// complete writes the final critique message and the terminal transition.
func (r *run) complete(ctx context.Context, feedback types.CritiqueFeedback, outcome string) error {
	text := fmt.Sprintf("Critique scored %.1f/10; report accepted", feedback.OverallScore)
	if outcome == OutcomeBestEffort {
		text = fmt.Sprintf("Critique scored %.1f/10 after %d revisions; retries exhausted, keeping best-effort report",
			feedback.OverallScore, r.task.RetryCount)
	}
	meta := r.scoreMeta(feedback, outcome)
	meta["outcome"] = outcome
	if err := r.message(ctx, text, meta); err != nil {
		return err
	}
	if err := r.enter(ctx, types.StatusCompleted, false); err != nil {
		return err
	}
	r.log.Info("task completed",
		slog.String("outcome", outcome),
		slog.Float64("score", feedback.OverallScore),
		slog.Int("retry_count", r.task.RetryCount))
	return nil
}

func (r *run) scoreMeta(feedback types.CritiqueFeedback, decision string) map[string]any {
	return map[string]any{
		"score":       feedback.OverallScore,
		"threshold":   r.opts.Threshold,
		"decision":    decision,
		"retry_count": r.task.RetryCount,
		"weaknesses":  len(feedback.Weaknesses),
	}
}

// fail records cause and moves the task to failed. Persistence runs on a
// context detached from the run so an expired deadline cannot prevent it.
func (r *run) fail(parent, runCtx context.Context, cause error) error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil && !types.IsTimeoutError(cause) {
		cause = &types.TimeoutError{After: r.opts.Timeout, Stage: r.task.Status, Err: cause}
	}
	if r.task.Status.Terminal() {
		r.log.Error("terminal state not persisted", slog.String("status", string(r.task.Status)), slog.Any("error", cause))
		return cause
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), persistTimeout)
	defer cancel()

	stageStatus := r.task.Status
	r.task.Fail(cause)
	if err := r.message(ctx, fmt.Sprintf("%s failed: %v", stageLabel(r.agent), cause), map[string]any{
		"outcome": OutcomeFailed,
		"status":  string(stageStatus),
		"error":   cause.Error(),
	}); err != nil {
		r.log.Error("recording failure message", slog.Any("error", err))
	}
	if err := r.enter(ctx, types.StatusFailed, false); err != nil {
		r.log.Error("persisting failed status", slog.Any("error", err))
	}
	r.log.Error("task failed", slog.String("status", string(stageStatus)), slog.Any("error", cause))
	return cause
}

// enter transitions the task and persists the new state. withReport adds the
// current report to the stored history.
func (r *run) enter(ctx context.Context, status types.TaskStatus, withReport bool) error {
	if err := r.task.Transition(status, r.c.clock()); err != nil {
		return err
	}
	r.log.Debug("status changed", slog.String("status", string(status)), slog.Int("retry_count", r.task.RetryCount))
	return r.c.Store.UpdateTask(ctx, r.task.ID, store.UpdateFromTask(r.task, withReport))
}

// message appends an audit entry for the current agent to the store and then
// to the task, so the in-memory log never runs ahead of the durable one.
func (r *run) message(ctx context.Context, text string, meta map[string]any) error {
	if r.task.Status.Terminal() {
		return fmt.Errorf("task %s is %s and cannot change", r.task.ID, r.task.Status)
	}
	m := types.AgentMessage{
		AgentType: r.agent,
		Message:   text,
		Timestamp: r.c.clock(),
		Metadata:  meta,
	}
	if err := r.c.Store.AppendMessage(ctx, r.task.ID, m); err != nil {
		return err
	}
	return r.task.AddMessage(m)
}

func stageLabel(a types.AgentType) string {
	switch a {
	case types.AgentCritic:
		return "Critique"
	case types.AgentReviser:
		return "Revision"
	default:
		return "Research"
	}
}
