// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists research tasks: their status, every report
// version, the critique history, and the agent audit log. Feedback and
// messages are append-only; nothing a run records is ever rewritten.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

// ErrNotFound is wrapped in the StorageError returned for unknown task IDs.
var ErrNotFound = errors.New("task not found")

// TaskUpdate is the state persisted on every transition.
type TaskUpdate struct {
	Status     types.TaskStatus
	RetryCount int
	Error      string
	// Report, when non-nil, becomes the current report and is added to the
	// report history.
	Report      *types.ResearchReport
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// UpdateFromTask snapshots the persisted fields of t. withReport controls
// whether t.CurrentReport is written as a new report version.
func UpdateFromTask(t *types.ResearchTask, withReport bool) TaskUpdate {
	u := TaskUpdate{
		Status:      t.Status,
		RetryCount:  t.RetryCount,
		Error:       t.Error,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
	if withReport {
		u.Report = t.CurrentReport
	}
	return u
}

// ListOptions filters ListTasks.
type ListOptions struct {
	Status types.TaskStatus
	Limit  int
}

// TaskSummary is one row of a task listing.
type TaskSummary struct {
	ID         string           `json:"id" yaml:"id"`
	Topic      string           `json:"topic" yaml:"topic"`
	Status     types.TaskStatus `json:"status" yaml:"status"`
	RetryCount int              `json:"retry_count" yaml:"retry_count"`
	MaxRetries int              `json:"max_retries" yaml:"max_retries"`
	// LastScore is the most recent critique score, nil before the first critique.
	LastScore *float64  `json:"last_score,omitempty" yaml:"last_score,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Store is the persistence contract used by the coordinator. Every failure
// is a *types.StorageError.
type Store interface {
	CreateTask(ctx context.Context, query types.ResearchQuery, maxRetries int) (*types.ResearchTask, error)
	UpdateTask(ctx context.Context, id string, u TaskUpdate) error
	AppendMessage(ctx context.Context, id string, m types.AgentMessage) error
	AppendFeedback(ctx context.Context, id string, f types.CritiqueFeedback) error
	GetTask(ctx context.Context, id string) (*types.ResearchTask, error)
	ListTasks(ctx context.Context, opts ListOptions) ([]TaskSummary, error)
	Close() error
}
