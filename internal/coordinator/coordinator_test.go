// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-coordinator/internal/search"
	"github.com/pdiddy/research-coordinator/internal/stage"
	"github.com/pdiddy/research-coordinator/internal/store"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

// memStore is an in-memory store that records every persisted status and
// rejects writes made with a done context.
type memStore struct {
	mu           sync.Mutex
	seq          int
	statuses     map[string][]types.TaskStatus
	messages     map[string][]types.AgentMessage
	feedback     map[string][]types.CritiqueFeedback
	reports      map[string][]*types.ResearchReport
	maxRetries   []int
	failUpdateTo types.TaskStatus
	failFeedback bool
	// failMessageN fails the Nth AppendMessage call when positive.
	failMessageN int
	messageCalls int
}

func newMemStore() *memStore {
	return &memStore{
		statuses: map[string][]types.TaskStatus{},
		messages: map[string][]types.AgentMessage{},
		feedback: map[string][]types.CritiqueFeedback{},
		reports:  map[string][]*types.ResearchReport{},
	}
}

func (s *memStore) CreateTask(ctx context.Context, q types.ResearchQuery, maxRetries int) (*types.ResearchTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := types.NewTask(fmt.Sprintf("task-%d", s.seq), q, maxRetries, time.Now())
	s.statuses[t.ID] = []types.TaskStatus{t.Status}
	s.maxRetries = append(s.maxRetries, t.MaxRetries)
	return t, nil
}

func (s *memStore) UpdateTask(ctx context.Context, id string, u store.TaskUpdate) error {
	if err := ctx.Err(); err != nil {
		return types.NewStorageError("updating task", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdateTo != "" && u.Status == s.failUpdateTo {
		return types.NewStorageError("updating task", errors.New("disk full"))
	}
	s.statuses[id] = append(s.statuses[id], u.Status)
	if u.Report != nil {
		s.reports[id] = append(s.reports[id], u.Report)
	}
	return nil
}

func (s *memStore) AppendMessage(ctx context.Context, id string, m types.AgentMessage) error {
	if err := ctx.Err(); err != nil {
		return types.NewStorageError("appending message", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCalls++
	if s.messageCalls == s.failMessageN {
		return types.NewStorageError("appending message", errors.New("disk full"))
	}
	s.messages[id] = append(s.messages[id], m)
	return nil
}

func (s *memStore) AppendFeedback(ctx context.Context, id string, f types.CritiqueFeedback) error {
	if err := ctx.Err(); err != nil {
		return types.NewStorageError("appending feedback", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFeedback {
		return types.NewStorageError("appending feedback", errors.New("disk full"))
	}
	s.feedback[id] = append(s.feedback[id], f)
	return nil
}

func (s *memStore) GetTask(ctx context.Context, id string) (*types.ResearchTask, error) {
	return nil, types.NewStorageError("loading task", store.ErrNotFound)
}

func (s *memStore) ListTasks(ctx context.Context, opts store.ListOptions) ([]store.TaskSummary, error) {
	return nil, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) statusesOf(id string) []types.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.TaskStatus(nil), s.statuses[id]...)
}

type fakeResearcher struct {
	err   error
	block bool
}

func (f *fakeResearcher) Run(ctx context.Context, q types.ResearchQuery) (stage.ResearchOutput, error) {
	if f.block {
		<-ctx.Done()
		return stage.ResearchOutput{}, types.NewGenerationError("research", ctx.Err())
	}
	out := stage.ResearchOutput{
		Gathered: search.GatherResult{
			Calls:    2,
			Failures: []*types.DataSourceError{{Source: "arxiv", Query: q.Topic, Err: errors.New("HTTP 503")}},
		},
	}
	if f.err != nil {
		return out, f.err
	}
	out.Report = &types.ResearchReport{
		Title:    "Research Report: " + q.Topic,
		Abstract: "draft",
		Sections: []types.ReportSection{{Heading: "Intro", Body: "text"}},
		Metadata: map[string]any{"depth_level": q.DepthLevel},
	}
	out.Bounded = search.Bounded{Documents: []types.SourceDocument{{Title: "doc", URL: "https://example.com"}}}
	return out, nil
}

type fakeCritic struct {
	mu     sync.Mutex
	scores []float64
	failAt int
	err    error
	calls  int
}

func (f *fakeCritic) Run(ctx context.Context, q types.ResearchQuery, r *types.ResearchReport) (types.CritiqueFeedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil && f.calls == f.failAt {
		return types.CritiqueFeedback{}, f.err
	}
	score := f.scores[min(f.calls, len(f.scores))-1]
	return types.CritiqueFeedback{
		OverallScore:   score,
		Weaknesses:     []string{"needs depth"},
		PriorityIssues: []string{"add sources"},
	}, nil
}

type fakeReviser struct {
	mu     sync.Mutex
	err    error
	// failAt fails only the given call (1-based); zero fails every call.
	failAt int
	calls  int
}

func (f *fakeReviser) Run(ctx context.Context, q types.ResearchQuery, r *types.ResearchReport, fb types.CritiqueFeedback) (*types.ResearchReport, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.err != nil && (f.failAt == 0 || call == f.failAt) {
		return nil, f.err
	}
	out := r.Clone()
	out.Metadata["revision_number"] = r.RevisionNumber() + 1
	out.Metadata["original_feedback_score"] = fb.OverallScore
	out.Metadata["revision_summary"] = "addressed issues"
	return out, nil
}

var query = types.ResearchQuery{Topic: "X", DepthLevel: 3}

func newTestCoordinator(st store.Store, critic *fakeCritic) (*Coordinator, *fakeReviser) {
	rev := &fakeReviser{}
	return New(st, &fakeResearcher{}, critic, rev), rev
}

func agents(msgs []types.AgentMessage) []types.AgentType {
	out := make([]types.AgentType, len(msgs))
	for i, m := range msgs {
		out[i] = m.AgentType
	}
	return out
}

func TestRunScoreSequence(t *testing.T) {
	st := newMemStore()
	c, rev := newTestCoordinator(st, &fakeCritic{scores: []float64{5.0, 6.5, 8.0}})
	ctx := context.Background()

	task, err := c.Submit(ctx, query, RunOptions{MaxRetries: 3})
	require.NoError(t, err)
	require.NoError(t, c.Run(ctx, task, RunOptions{}))

	assert.Equal(t, []types.TaskStatus{
		types.StatusPending, types.StatusResearching, types.StatusCritiquing,
		types.StatusRevising, types.StatusCritiquing,
		types.StatusRevising, types.StatusCritiquing,
		types.StatusCompleted,
	}, st.statusesOf(task.ID))

	assert.Equal(t, types.StatusCompleted, task.Status)
	assert.Equal(t, 2, task.RetryCount)
	assert.Equal(t, 2, rev.calls)
	assert.Equal(t, 3, task.Feedback.Len())
	assert.Len(t, st.feedback[task.ID], 3)
	assert.NotNil(t, task.CompletedAt)
	assert.False(t, task.BestEffort(DefaultThreshold))
	assert.Equal(t, 2, task.CurrentReport.RevisionNumber())
	assert.Len(t, st.reports[task.ID], 3)

	msgs := task.Messages.All()
	assert.Equal(t, []types.AgentType{
		types.AgentResearcher, types.AgentResearcher,
		types.AgentCritic, types.AgentCritic,
		types.AgentReviser, types.AgentReviser,
		types.AgentCritic, types.AgentCritic,
		types.AgentReviser, types.AgentReviser,
		types.AgentCritic, types.AgentCritic,
	}, agents(msgs))
	assert.Equal(t, msgs, st.messages[task.ID])

	last := msgs[len(msgs)-1]
	assert.Equal(t, OutcomeAccepted, last.Metadata["outcome"])
	assert.Equal(t, 8.0, last.Metadata["score"])
	assert.Equal(t, []string{"source arxiv (query \"X\"): HTTP 503"}, msgs[1].Metadata["source_failures"])
}

func TestRunBestEffort(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
	}{
		{"three retries", 3},
		{"one retry", 1},
		{"no retries", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStore()
			c, rev := newTestCoordinator(st, &fakeCritic{scores: []float64{4.0}})
			task, err := c.Execute(context.Background(), query, RunOptions{MaxRetries: tt.maxRetries})
			require.NoError(t, err)

			assert.Equal(t, types.StatusCompleted, task.Status)
			assert.Equal(t, tt.maxRetries, task.RetryCount)
			assert.Equal(t, tt.maxRetries, rev.calls)
			assert.Equal(t, tt.maxRetries+1, task.Feedback.Len())
			assert.True(t, task.BestEffort(DefaultThreshold))
			assert.Empty(t, task.Error)

			last, ok := task.Messages.Last()
			require.True(t, ok)
			assert.Equal(t, types.AgentCritic, last.AgentType)
			assert.Equal(t, OutcomeBestEffort, last.Metadata["outcome"])

			statuses := st.statusesOf(task.ID)
			assert.Equal(t, types.StatusCompleted, statuses[len(statuses)-1])
			assert.Len(t, statuses, 4+2*tt.maxRetries)
		})
	}
}

func TestRunThreshold(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		threshold float64
		retries   int
	}{
		{"exactly default threshold accepted", 7.0, 0, 0},
		{"just below default revised", 6.99, 0, 3},
		{"custom lower threshold", 5.0, 4.5, 0},
		{"custom higher threshold", 8.0, 9.0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCoordinator(newMemStore(), &fakeCritic{scores: []float64{tt.score}})
			task, err := c.Execute(context.Background(), query, RunOptions{Threshold: tt.threshold, MaxRetries: 3})
			require.NoError(t, err)
			assert.Equal(t, types.StatusCompleted, task.Status)
			assert.Equal(t, tt.retries, task.RetryCount)
		})
	}
}

func TestRunStageFailures(t *testing.T) {
	boom := types.NewGenerationError("model unavailable", errors.New("HTTP 500"))

	tests := []struct {
		name         string
		researcher   *fakeResearcher
		critic       *fakeCritic
		reviser      *fakeReviser
		wantAgent    types.AgentType
		wantLast     types.TaskStatus
		wantReport   bool
		wantMsgs     int
		// wantFeedback counts critique rounds that completed before the failure.
		wantFeedback int
	}{
		{
			name:       "research",
			researcher: &fakeResearcher{err: boom},
			critic:     &fakeCritic{scores: []float64{9}},
			reviser:    &fakeReviser{},
			wantAgent:  types.AgentResearcher,
			wantLast:   types.StatusResearching,
			wantMsgs:   2,
		},
		{
			name:       "first critique",
			researcher: &fakeResearcher{},
			critic:     &fakeCritic{scores: []float64{9}, err: boom, failAt: 1},
			reviser:    &fakeReviser{},
			wantAgent:  types.AgentCritic,
			wantLast:   types.StatusCritiquing,
			wantReport: true,
			wantMsgs:   4,
		},
		{
			name:       "revision",
			researcher: &fakeResearcher{},
			critic:     &fakeCritic{scores: []float64{3}},
			reviser:      &fakeReviser{err: boom},
			wantAgent:    types.AgentReviser,
			wantLast:     types.StatusRevising,
			wantReport:   true,
			wantMsgs:     6,
			wantFeedback: 1,
		},
		{
			name:         "later revision",
			researcher:   &fakeResearcher{},
			critic:       &fakeCritic{scores: []float64{3, 3}},
			reviser:      &fakeReviser{err: boom, failAt: 2},
			wantAgent:    types.AgentReviser,
			wantLast:     types.StatusRevising,
			wantReport:   true,
			wantMsgs:     10,
			wantFeedback: 2,
		},
		{
			name:       "second critique",
			researcher: &fakeResearcher{},
			critic:     &fakeCritic{scores: []float64{3}, err: boom, failAt: 2},
			reviser:      &fakeReviser{},
			wantAgent:    types.AgentCritic,
			wantLast:     types.StatusCritiquing,
			wantReport:   true,
			wantMsgs:     8,
			wantFeedback: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStore()
			c := New(st, tt.researcher, tt.critic, tt.reviser)
			task, err := c.Submit(context.Background(), query, RunOptions{MaxRetries: 3})
			require.NoError(t, err)

			err = c.Run(context.Background(), task, RunOptions{})
			require.Error(t, err)
			assert.True(t, types.IsGenerationError(err))

			assert.Equal(t, types.StatusFailed, task.Status)
			assert.NotNil(t, task.CompletedAt)
			assert.Contains(t, task.Error, "model unavailable")
			assert.Equal(t, tt.wantReport, task.CurrentReport != nil)

			statuses := st.statusesOf(task.ID)
			require.GreaterOrEqual(t, len(statuses), 2)
			assert.Equal(t, tt.wantLast, statuses[len(statuses)-2])
			assert.Equal(t, types.StatusFailed, statuses[len(statuses)-1])

			msgs := task.Messages.All()
			assert.Len(t, msgs, tt.wantMsgs)
			last := msgs[len(msgs)-1]
			assert.Equal(t, tt.wantAgent, last.AgentType)
			assert.Equal(t, OutcomeFailed, last.Metadata["outcome"])
			assert.Contains(t, last.Message, "failed: generation failed: model unavailable")
			assert.Equal(t, msgs, st.messages[task.ID])

			assert.Equal(t, tt.wantFeedback, task.Feedback.Len())
			assert.Len(t, st.feedback[task.ID], tt.wantFeedback)
		})
	}
}

func TestRunTimeout(t *testing.T) {
	st := newMemStore()
	c := New(st, &fakeResearcher{block: true}, &fakeCritic{scores: []float64{9}}, &fakeReviser{})
	task, err := c.Submit(context.Background(), query, RunOptions{MaxRetries: 3})
	require.NoError(t, err)

	start := time.Now()
	err = c.Run(context.Background(), task, RunOptions{Timeout: 20 * time.Millisecond})
	assert.Less(t, time.Since(start), 2*time.Second)

	var te *types.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.StatusResearching, te.Stage)
	assert.Equal(t, 20*time.Millisecond, te.After)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, types.StatusFailed, task.Status)
	assert.Equal(t, []types.TaskStatus{types.StatusPending, types.StatusResearching, types.StatusFailed}, st.statusesOf(task.ID))

	last, ok := task.Messages.Last()
	require.True(t, ok)
	assert.Contains(t, last.Message, "timed out")
	assert.Equal(t, task.Messages.All(), st.messages[task.ID])
}

func TestRunParentCancelIsNotTimeout(t *testing.T) {
	st := newMemStore()
	c := New(st, &fakeResearcher{block: true}, &fakeCritic{scores: []float64{9}}, &fakeReviser{})
	task, err := c.Submit(context.Background(), query, RunOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	err = c.Run(ctx, task, RunOptions{})
	require.Error(t, err)
	assert.False(t, types.IsTimeoutError(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.StatusFailed, task.Status)
	statuses := st.statusesOf(task.ID)
	assert.Equal(t, types.StatusFailed, statuses[len(statuses)-1])
}

func TestRunStorageError(t *testing.T) {
	st := newMemStore()
	st.failUpdateTo = types.StatusRevising
	c, rev := newTestCoordinator(st, &fakeCritic{scores: []float64{2}})

	task, err := c.Execute(context.Background(), query, RunOptions{MaxRetries: 3})
	require.Error(t, err)
	assert.True(t, types.IsStorageError(err))
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, rev.calls)

	assert.Equal(t, types.StatusFailed, task.Status)
	assert.Equal(t, []types.TaskStatus{
		types.StatusPending, types.StatusResearching, types.StatusCritiquing, types.StatusFailed,
	}, st.statusesOf(task.ID))
	last, _ := task.Messages.Last()
	assert.Equal(t, OutcomeFailed, last.Metadata["outcome"])
}

func TestRunStoreFailureKeepsTaskInSync(t *testing.T) {
	t.Run("feedback write", func(t *testing.T) {
		st := newMemStore()
		st.failFeedback = true
		c, _ := newTestCoordinator(st, &fakeCritic{scores: []float64{9}})

		task, err := c.Execute(context.Background(), query, RunOptions{MaxRetries: 3})
		require.Error(t, err)
		assert.True(t, types.IsStorageError(err))

		assert.Equal(t, types.StatusFailed, task.Status)
		assert.Zero(t, task.Feedback.Len())
		assert.Empty(t, st.feedback[task.ID])
		assert.Equal(t, task.Messages.All(), st.messages[task.ID])
	})

	t.Run("message write", func(t *testing.T) {
		st := newMemStore()
		// The third message opens the first critique round.
		st.failMessageN = 3
		critic := &fakeCritic{scores: []float64{9}}
		c, _ := newTestCoordinator(st, critic)

		task, err := c.Execute(context.Background(), query, RunOptions{MaxRetries: 3})
		require.Error(t, err)
		assert.True(t, types.IsStorageError(err))
		assert.Zero(t, critic.calls)

		msgs := task.Messages.All()
		require.Len(t, msgs, 3)
		assert.Equal(t, msgs, st.messages[task.ID])
		assert.Equal(t, types.AgentCritic, msgs[2].AgentType)
		assert.Equal(t, OutcomeFailed, msgs[2].Metadata["outcome"])
	})
}

func TestRunRejectsNonPendingTask(t *testing.T) {
	c, _ := newTestCoordinator(newMemStore(), &fakeCritic{scores: []float64{9}})
	task := types.NewTask("t", query, 3, time.Now())
	require.NoError(t, task.Transition(types.StatusFailed, time.Now()))

	err := c.Run(context.Background(), task, RunOptions{})
	assert.ErrorContains(t, err, "want pending")
	assert.Zero(t, task.Messages.Len())
}

func TestSubmit(t *testing.T) {
	t.Run("invalid query", func(t *testing.T) {
		c, _ := newTestCoordinator(newMemStore(), &fakeCritic{scores: []float64{9}})
		_, err := c.Submit(context.Background(), types.ResearchQuery{Topic: "  "}, RunOptions{})
		assert.ErrorContains(t, err, "topic is empty")

		_, err = c.Submit(context.Background(), types.ResearchQuery{Topic: "x", DepthLevel: 9}, RunOptions{})
		assert.ErrorContains(t, err, "depth level")
	})

	t.Run("normalizes and applies retry defaults", func(t *testing.T) {
		st := newMemStore()
		c, _ := newTestCoordinator(st, &fakeCritic{scores: []float64{9}})
		c.Defaults = RunOptions{Threshold: 8, MaxRetries: 5, Timeout: time.Minute}

		task, err := c.Submit(context.Background(), types.ResearchQuery{Topic: " X ", Subtopics: []string{"", "a"}}, RunOptions{MaxRetries: -1})
		require.NoError(t, err)
		assert.Equal(t, "X", task.Query.Topic)
		assert.Equal(t, []string{"a"}, task.Query.Subtopics)
		assert.Equal(t, types.DefaultDepthLevel, task.Query.DepthLevel)

		_, err = c.Submit(context.Background(), query, RunOptions{MaxRetries: 0})
		require.NoError(t, err)
		assert.Equal(t, []int{5, 0}, st.maxRetries)
	})
}

func TestRunOptionsDefaults(t *testing.T) {
	got := RunOptions{MaxRetries: -1}.withDefaults(DefaultRunOptions())
	assert.Equal(t, DefaultRunOptions(), got)

	got = RunOptions{Threshold: 5, MaxRetries: 1, Timeout: time.Second}.withDefaults(DefaultRunOptions())
	assert.Equal(t, RunOptions{Threshold: 5, MaxRetries: 1, Timeout: time.Second}, got)

	cfg := types.DefaultConfig().Coordinator
	assert.Equal(t, DefaultRunOptions(), RunOptionsFromConfig(cfg))
}

func TestRunConcurrentTasks(t *testing.T) {
	st := newMemStore()
	c, _ := newTestCoordinator(st, &fakeCritic{scores: []float64{9}})

	var wg sync.WaitGroup
	tasks := make([]*types.ResearchTask, 8)
	errs := make([]error, len(tasks))
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tasks[i], errs[i] = c.Execute(context.Background(), types.ResearchQuery{Topic: fmt.Sprintf("topic %d", i)}, RunOptions{})
		}(i)
	}
	wg.Wait()

	for i, task := range tasks {
		require.NoError(t, errs[i])
		assert.Equal(t, types.StatusCompleted, task.Status)
		assert.Equal(t, fmt.Sprintf("topic %d", i), task.Query.Topic)
		assert.Len(t, st.statusesOf(task.ID), 4)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	c, _ := newTestCoordinator(newMemStore(), &fakeCritic{scores: []float64{5.0, 6.5, 8.0}})
	c.Metrics = m
	_, err := c.Execute(context.Background(), query, RunOptions{MaxRetries: 3})
	require.NoError(t, err)

	failing := New(newMemStore(), &fakeResearcher{err: types.NewGenerationError("down", nil)}, &fakeCritic{scores: []float64{9}}, &fakeReviser{})
	failing.Metrics = m
	_, err = failing.Execute(context.Background(), query, RunOptions{})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.revisions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sourceFailures.WithLabelValues("arxiv")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.stageDuration))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.runStarted()
		nilMetrics.runFinished(OutcomeAccepted)
		nilMetrics.observeScore(5)
	})
}

func TestRunWithSQLiteStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "research.db"))
	require.NoError(t, err)
	defer st.Close()

	c, _ := newTestCoordinator(st, &fakeCritic{scores: []float64{5.0, 6.5, 8.0}})
	ctx := context.Background()
	task, err := c.Execute(ctx, query, RunOptions{MaxRetries: 3})
	require.NoError(t, err)

	got, err := st.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, 3, got.Feedback.Len())
	assert.Equal(t, agents(task.Messages.All()), agents(got.Messages.All()))
	require.NotNil(t, got.CurrentReport)
	assert.Equal(t, 2, got.CurrentReport.RevisionNumber())
	require.NotNil(t, got.CompletedAt)

	history, err := st.Reports(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	last, _ := got.Messages.Last()
	assert.Equal(t, OutcomeAccepted, last.Metadata["outcome"])
}
