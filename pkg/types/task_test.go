// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   ResearchQuery
		wantErr bool
	}{
		{"valid", ResearchQuery{Topic: "quantum computing", DepthLevel: 3}, false},
		{"empty topic", ResearchQuery{Topic: "  ", DepthLevel: 3}, true},
		{"depth too low", ResearchQuery{Topic: "x", DepthLevel: 0}, true},
		{"depth too high", ResearchQuery{Topic: "x", DepthLevel: 6}, true},
		{"depth bounds", ResearchQuery{Topic: "x", DepthLevel: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQueryNormalizeAndSearchTerms(t *testing.T) {
	q := ResearchQuery{Topic: " solar power ", Subtopics: []string{"storage", " ", "grid "}}.Normalize()

	assert.Equal(t, "solar power", q.Topic)
	assert.Equal(t, DefaultDepthLevel, q.DepthLevel)
	assert.Equal(t, []string{"storage", "grid"}, q.Subtopics)
	assert.Equal(t, []string{"solar power", "solar power storage", "solar power grid"}, q.SearchTerms())
	assert.Equal(t, "storage, grid", q.SubtopicsText())
	assert.Equal(t, "None specified", q.RequirementsText())
}

func TestLoadQueryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query.yaml")
	content := `query:
  topic: fusion energy
  subtopics: [tokamak, stellarator]
  depth_level: 4
max_retries: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	qf, err := LoadQueryFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fusion energy", qf.Query.Topic)
	assert.Equal(t, 4, qf.Query.DepthLevel)
	require.NotNil(t, qf.MaxRetries)
	assert.Equal(t, 1, *qf.MaxRetries)
	assert.Nil(t, qf.Threshold)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("query:\n  depth_level: 2\n"), 0o644))
	_, err = LoadQueryFile(bad)
	assert.Error(t, err)
}

func TestFeedbackValidate(t *testing.T) {
	tests := []struct {
		score   float64
		wantErr bool
	}{
		{0, false},
		{10, false},
		{7.5, false},
		{-0.1, true},
		{10.01, true},
		{math.NaN(), true},
		{math.Inf(1), true},
	}
	for _, tt := range tests {
		err := CritiqueFeedback{OverallScore: tt.score}.Validate()
		assert.Equal(t, tt.wantErr, err != nil, "score %v", tt.score)
	}
}

func TestTransitions(t *testing.T) {
	task := NewTask("t1", ResearchQuery{Topic: "x", DepthLevel: 3}, 3, t0)
	assert.Equal(t, StatusPending, task.Status)

	require.NoError(t, task.Transition(StatusResearching, t0))

	// Critiquing requires a report.
	assert.Error(t, task.Transition(StatusCritiquing, t0))
	require.NoError(t, task.SetReport(&ResearchReport{Title: "r"}, t0))
	require.NoError(t, task.Transition(StatusCritiquing, t0))

	// Skipping back to researching is not allowed.
	assert.Error(t, task.Transition(StatusResearching, t0))

	require.NoError(t, task.Transition(StatusRevising, t0))
	require.NoError(t, task.Transition(StatusCritiquing, t0))
	assert.Nil(t, task.CompletedAt)

	done := t0.Add(time.Minute)
	require.NoError(t, task.Transition(StatusCompleted, done))
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, done, *task.CompletedAt)

	// Terminal tasks are immutable.
	assert.Error(t, task.Transition(StatusFailed, done))
	assert.Error(t, task.SetReport(&ResearchReport{}, done))
	assert.Error(t, task.AddFeedback(CritiqueFeedback{}))
	assert.Error(t, task.AddMessage(AgentMessage{}))
	assert.Error(t, task.IncrementRetry(done))
	assert.Equal(t, done, *task.CompletedAt)
}

func TestIncrementRetryBound(t *testing.T) {
	task := NewTask("t1", ResearchQuery{Topic: "x", DepthLevel: 3}, 2, t0)
	require.NoError(t, task.IncrementRetry(t0))
	require.NoError(t, task.IncrementRetry(t0))
	assert.Error(t, task.IncrementRetry(t0))
	assert.Equal(t, 2, task.RetryCount)
}

func TestFeedbackLogIsAppendOnly(t *testing.T) {
	var log FeedbackLog
	fb := CritiqueFeedback{OverallScore: 5, Strengths: []string{"clear"}}
	log.Append(fb)

	// Mutating the caller's value does not reach the log.
	fb.Strengths[0] = "changed"
	all := log.All()
	assert.Equal(t, "clear", all[0].Strengths[0])

	// Mutating the returned copy does not reach the log either.
	all[0].OverallScore = 9
	last, ok := log.Last()
	require.True(t, ok)
	assert.Equal(t, 5.0, last.OverallScore)
	assert.Equal(t, 1, log.Len())
}

func TestTaskJSONRoundTripKeepsLogs(t *testing.T) {
	task := NewTask("t1", ResearchQuery{Topic: "x", DepthLevel: 3}, 3, t0)
	require.NoError(t, task.AddFeedback(CritiqueFeedback{OverallScore: 6.5}))
	require.NoError(t, task.AddMessage(AgentMessage{AgentType: AgentCritic, Message: "scored", Timestamp: t0}))

	data, err := json.Marshal(task)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"feedback_history":[{"overall_score":6.5`)
	assert.Contains(t, string(data), `"status":"pending"`)

	var back ResearchTask
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 1, back.Feedback.Len())
	assert.Equal(t, 1, back.Messages.Len())

	out, err := yaml.Marshal(task)
	require.NoError(t, err)
	var fromYAML ResearchTask
	require.NoError(t, yaml.Unmarshal(out, &fromYAML))
	assert.Equal(t, 1, fromYAML.Feedback.Len())
	assert.Equal(t, AgentCritic, fromYAML.Messages.All()[0].AgentType)
}

func TestBestEffort(t *testing.T) {
	task := NewTask("t1", ResearchQuery{Topic: "x", DepthLevel: 3}, 0, t0)
	require.NoError(t, task.Transition(StatusResearching, t0))
	require.NoError(t, task.SetReport(&ResearchReport{}, t0))
	require.NoError(t, task.Transition(StatusCritiquing, t0))
	require.NoError(t, task.AddFeedback(CritiqueFeedback{OverallScore: 4}))
	assert.False(t, task.BestEffort(7), "not completed yet")
	require.NoError(t, task.Transition(StatusCompleted, t0))
	assert.True(t, task.BestEffort(7))
	assert.False(t, task.BestEffort(3))
}

func TestErrorTaxonomy(t *testing.T) {
	base := errors.New("boom")
	gen := NewGenerationError("empty response", base)
	assert.True(t, IsGenerationError(gen))
	assert.ErrorIs(t, gen, base)

	wrapped := NewStorageError("update task", base)
	assert.True(t, IsStorageError(wrapped))
	assert.False(t, IsGenerationError(wrapped))

	timeout := &TimeoutError{After: time.Second, Stage: StatusRevising}
	assert.True(t, IsTimeoutError(timeout))
	assert.Contains(t, timeout.Error(), "revising")
}

func TestReportCloneAndRevisionNumber(t *testing.T) {
	r := &ResearchReport{
		Title:    "A",
		Sections: []ReportSection{{Heading: "h", Body: "b"}},
		Metadata: map[string]any{"revision_number": float64(2)},
	}
	c := r.Clone()
	c.Sections[0].Heading = "changed"
	c.Metadata["revision_number"] = 3
	assert.Equal(t, "h", r.Sections[0].Heading)
	assert.Equal(t, 2, r.RevisionNumber())
	assert.Equal(t, 3, c.RevisionNumber())
	assert.Contains(t, r.Text(), "1. h")
}
