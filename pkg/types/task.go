// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a research task.
type TaskStatus string

const (
	StatusPending     TaskStatus = "pending"
	StatusResearching TaskStatus = "researching"
	StatusCritiquing  TaskStatus = "critiquing"
	StatusRevising    TaskStatus = "revising"
	StatusCompleted   TaskStatus = "completed"
	StatusFailed      TaskStatus = "failed"
)

// DefaultMaxRetries is the revision budget used when none is configured.
const DefaultMaxRetries = 3

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// transitions lists the allowed successor states. The only cycle is
// critiquing <-> revising, which the retry budget bounds.
var transitions = map[TaskStatus][]TaskStatus{
	StatusPending:     {StatusResearching, StatusFailed},
	StatusResearching: {StatusCritiquing, StatusFailed},
	StatusCritiquing:  {StatusRevising, StatusCompleted, StatusFailed},
	StatusRevising:    {StatusCritiquing, StatusFailed},
	StatusCompleted:   nil,
	StatusFailed:      nil,
}

// CanTransition reports whether from -> to is an allowed transition.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AgentType identifies which producer an audit message is about.
type AgentType string

const (
	AgentResearcher AgentType = "researcher"
	AgentCritic     AgentType = "critic"
	AgentReviser    AgentType = "reviser"
)

// AgentMessage is one entry of a task's audit log.
type AgentMessage struct {
	AgentType AgentType      `json:"agent_type" yaml:"agent_type"`
	Message   string         `json:"message" yaml:"message"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ResearchTask is one end-to-end run of the research, critique, and revision
// pipeline for a single query. A coordinator owns the task for the whole run;
// once the task is terminal every mutator returns an error.
type ResearchTask struct {
	// ID is the store-assigned task identity.
	ID string `json:"id" yaml:"id"`

	// Query is the research query, fixed at creation.
	Query ResearchQuery `json:"query" yaml:"query"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status" yaml:"status"`

	// CurrentReport is the latest report; nil until research completes.
	CurrentReport *ResearchReport `json:"current_report,omitempty" yaml:"current_report,omitempty"`

	// Feedback holds one entry per completed critique round.
	Feedback FeedbackLog `json:"feedback_history" yaml:"feedback_history"`

	// Messages is the agent audit log.
	Messages MessageLog `json:"agent_messages" yaml:"agent_messages"`

	// RetryCount counts revisions started; never exceeds MaxRetries.
	RetryCount int `json:"retry_count" yaml:"retry_count"`

	// MaxRetries bounds the number of revisions.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Error records the cause of a failed run.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// NewTask returns a pending task for query.
func NewTask(id string, query ResearchQuery, maxRetries int, now time.Time) *ResearchTask {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &ResearchTask{
		ID:         id,
		Query:      query,
		Status:     StatusPending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition moves the task to status to. Entering a terminal status sets
// CompletedAt.
func (t *ResearchTask) Transition(to TaskStatus, now time.Time) error {
	if t.Status.Terminal() {
		return fmt.Errorf("task %s is %s and cannot change", t.ID, t.Status)
	}
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("task %s: invalid transition %s -> %s", t.ID, t.Status, to)
	}
	if to == StatusCritiquing && t.CurrentReport == nil {
		return fmt.Errorf("task %s: cannot critique without a report", t.ID)
	}
	t.Status = to
	t.UpdatedAt = now
	if to.Terminal() {
		done := now
		t.CompletedAt = &done
	}
	return nil
}

// SetReport replaces the current report with r.
func (t *ResearchTask) SetReport(r *ResearchReport, now time.Time) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("task %s: nil report", t.ID)
	}
	t.CurrentReport = r
	t.UpdatedAt = now
	return nil
}

// IncrementRetry consumes one unit of the revision budget.
func (t *ResearchTask) IncrementRetry(now time.Time) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	if t.RetryCount >= t.MaxRetries {
		return fmt.Errorf("task %s: retry budget %d exhausted", t.ID, t.MaxRetries)
	}
	t.RetryCount++
	t.UpdatedAt = now
	return nil
}

// AddFeedback appends one critique round.
func (t *ResearchTask) AddFeedback(f CritiqueFeedback) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	t.Feedback.Append(f)
	return nil
}

// AddMessage appends one audit log entry.
func (t *ResearchTask) AddMessage(m AgentMessage) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	t.Messages.Append(m)
	return nil
}

// Fail records err as the failure cause. The caller still transitions the
// task to failed.
func (t *ResearchTask) Fail(err error) {
	if t.Status.Terminal() || err == nil {
		return
	}
	t.Error = err.Error()
}

// BestEffort reports whether a completed task ended without its final
// critique meeting threshold, i.e. it completed because retries ran out.
func (t *ResearchTask) BestEffort(threshold float64) bool {
	if t.Status != StatusCompleted {
		return false
	}
	last, ok := t.Feedback.Last()
	return ok && !last.Passes(threshold)
}

func (t *ResearchTask) checkMutable() error {
	if t.Status.Terminal() {
		return fmt.Errorf("task %s is %s and cannot change", t.ID, t.Status)
	}
	return nil
}
