// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

const defaultListLimit = 50

// SQLiteStore keeps tasks in a single SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, types.NewStorageError("creating database directory", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, types.NewStorageError("opening database", err)
	}

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, types.NewStorageError("creating schema", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			current_report TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE TABLE IF NOT EXISTS reports (
			task_id TEXT NOT NULL REFERENCES tasks(id),
			version INTEGER NOT NULL,
			report TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (task_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL REFERENCES tasks(id),
			overall_score REAL NOT NULL,
			feedback TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_task_id ON feedback(task_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL REFERENCES tasks(id),
			agent_type TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata TEXT,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_task_id ON messages(task_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateTask stores a new pending task with a random UUID.
func (s *SQLiteStore) CreateTask(ctx context.Context, query types.ResearchQuery, maxRetries int) (*types.ResearchTask, error) {
	task := types.NewTask(uuid.NewString(), query, maxRetries, s.now())

	queryJSON, err := json.Marshal(task.Query)
	if err != nil {
		return nil, types.NewStorageError("encoding query", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, topic, query, status, retry_count, max_retries, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Query.Topic, string(queryJSON), string(task.Status),
		task.RetryCount, task.MaxRetries, formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
	)
	if err != nil {
		return nil, types.NewStorageError("inserting task", err)
	}
	return task, nil
}

// UpdateTask writes u to task id. A report in u is appended to the report
// history in the same transaction.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, u TaskUpdate) error {
	if !u.Status.Valid() {
		return types.NewStorageError(fmt.Sprintf("invalid status %q", u.Status), nil)
	}
	updated := u.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewStorageError("beginning transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, retry_count = ?, error = ?, updated_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(u.Status), u.RetryCount, u.Error, formatTime(updated), nullTime(u.CompletedAt), id,
	)
	if err != nil {
		return types.NewStorageError("updating task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewStorageError("updating task "+id, ErrNotFound)
	}

	if u.Report != nil {
		reportJSON, err := json.Marshal(u.Report)
		if err != nil {
			return types.NewStorageError("encoding report", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET current_report = ? WHERE id = ?`, string(reportJSON), id,
		); err != nil {
			return types.NewStorageError("updating current report", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reports (task_id, version, report, created_at)
			 VALUES (?, (SELECT COALESCE(MAX(version), 0) + 1 FROM reports WHERE task_id = ?), ?, ?)`,
			id, id, string(reportJSON), formatTime(updated),
		); err != nil {
			return types.NewStorageError("recording report version", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.NewStorageError("committing task update", err)
	}
	return nil
}

// AppendMessage adds one entry to the task's audit log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, id string, m types.AgentMessage) error {
	var meta sql.NullString
	if len(m.Metadata) > 0 {
		data, err := json.Marshal(m.Metadata)
		if err != nil {
			return types.NewStorageError("encoding message metadata", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (task_id, agent_type, message, metadata, timestamp) VALUES (?, ?, ?, ?, ?)`,
		id, string(m.AgentType), m.Message, meta, formatTime(ts),
	)
	if err != nil {
		return types.NewStorageError("appending message", wrapForeignKey(err, id))
	}
	return nil
}

// AppendFeedback adds one critique round to the task's feedback history.
func (s *SQLiteStore) AppendFeedback(ctx context.Context, id string, f types.CritiqueFeedback) error {
	data, err := json.Marshal(f)
	if err != nil {
		return types.NewStorageError("encoding feedback", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (task_id, overall_score, feedback, created_at) VALUES (?, ?, ?, ?)`,
		id, f.OverallScore, string(data), formatTime(s.now()),
	)
	if err != nil {
		return types.NewStorageError("appending feedback", wrapForeignKey(err, id))
	}
	return nil
}

// GetTask reconstructs the full task including its logs.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*types.ResearchTask, error) {
	var (
		t                          types.ResearchTask
		queryJSON, status          string
		report, completed          sql.NullString
		createdAt, updatedAt, errS string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, query, status, current_report, retry_count, max_retries, error, created_at, updated_at, completed_at
		 FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &queryJSON, &status, &report, &t.RetryCount, &t.MaxRetries, &errS, &createdAt, &updatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewStorageError("loading task "+id, ErrNotFound)
	}
	if err != nil {
		return nil, types.NewStorageError("loading task", err)
	}

	t.Status = types.TaskStatus(status)
	t.Error = errS
	if err := json.Unmarshal([]byte(queryJSON), &t.Query); err != nil {
		return nil, types.NewStorageError("decoding query", err)
	}
	if report.Valid {
		t.CurrentReport = &types.ResearchReport{}
		if err := json.Unmarshal([]byte(report.String), t.CurrentReport); err != nil {
			return nil, types.NewStorageError("decoding report", err)
		}
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, types.NewStorageError("decoding created_at", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, types.NewStorageError("decoding updated_at", err)
	}
	if completed.Valid {
		c, err := parseTime(completed.String)
		if err != nil {
			return nil, types.NewStorageError("decoding completed_at", err)
		}
		t.CompletedAt = &c
	}

	if t.Feedback, err = s.loadFeedback(ctx, id); err != nil {
		return nil, err
	}
	if t.Messages, err = s.loadMessages(ctx, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) loadFeedback(ctx context.Context, id string) (types.FeedbackLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT feedback FROM feedback WHERE task_id = ? ORDER BY rowid`, id)
	if err != nil {
		return types.FeedbackLog{}, types.NewStorageError("loading feedback", err)
	}
	defer rows.Close()

	var entries []types.CritiqueFeedback
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return types.FeedbackLog{}, types.NewStorageError("scanning feedback", err)
		}
		var f types.CritiqueFeedback
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return types.FeedbackLog{}, types.NewStorageError("decoding feedback", err)
		}
		entries = append(entries, f)
	}
	if err := rows.Err(); err != nil {
		return types.FeedbackLog{}, types.NewStorageError("iterating feedback", err)
	}
	return types.NewFeedbackLog(entries...), nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, id string) (types.MessageLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_type, message, metadata, timestamp FROM messages WHERE task_id = ? ORDER BY rowid`, id)
	if err != nil {
		return types.MessageLog{}, types.NewStorageError("loading messages", err)
	}
	defer rows.Close()

	var entries []types.AgentMessage
	for rows.Next() {
		var (
			m         types.AgentMessage
			agent, ts string
			meta      sql.NullString
		)
		if err := rows.Scan(&agent, &m.Message, &meta, &ts); err != nil {
			return types.MessageLog{}, types.NewStorageError("scanning message", err)
		}
		m.AgentType = types.AgentType(agent)
		if m.Timestamp, err = parseTime(ts); err != nil {
			return types.MessageLog{}, types.NewStorageError("decoding message timestamp", err)
		}
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return types.MessageLog{}, types.NewStorageError("decoding message metadata", err)
			}
		}
		entries = append(entries, m)
	}
	if err := rows.Err(); err != nil {
		return types.MessageLog{}, types.NewStorageError("iterating messages", err)
	}
	return types.NewMessageLog(entries...), nil
}

// Reports returns every report version of task id, oldest first.
func (s *SQLiteStore) Reports(ctx context.Context, id string) ([]*types.ResearchReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT report FROM reports WHERE task_id = ? ORDER BY version`, id)
	if err != nil {
		return nil, types.NewStorageError("loading reports", err)
	}
	defer rows.Close()

	var out []*types.ResearchReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, types.NewStorageError("scanning report", err)
		}
		r := &types.ResearchReport{}
		if err := json.Unmarshal([]byte(data), r); err != nil {
			return nil, types.NewStorageError("decoding report", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("iterating reports", err)
	}
	return out, nil
}

// ListTasks returns task summaries, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, opts ListOptions) ([]TaskSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := `SELECT t.id, t.topic, t.status, t.retry_count, t.max_retries, t.created_at, t.updated_at,
			(SELECT f.overall_score FROM feedback f WHERE f.task_id = t.id ORDER BY f.rowid DESC LIMIT 1)
		  FROM tasks t`
	var args []any
	if opts.Status != "" {
		q += ` WHERE t.status = ?`
		args = append(args, string(opts.Status))
	}
	q += ` ORDER BY t.created_at DESC, t.id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, types.NewStorageError("listing tasks", err)
	}
	defer rows.Close()

	var out []TaskSummary
	for rows.Next() {
		var (
			ts                   TaskSummary
			status               string
			createdAt, updatedAt string
			score                sql.NullFloat64
		)
		if err := rows.Scan(&ts.ID, &ts.Topic, &status, &ts.RetryCount, &ts.MaxRetries, &createdAt, &updatedAt, &score); err != nil {
			return nil, types.NewStorageError("scanning task", err)
		}
		ts.Status = types.TaskStatus(status)
		ts.CreatedAt, _ = parseTime(createdAt)
		ts.UpdatedAt, _ = parseTime(updatedAt)
		if score.Valid {
			v := score.Float64
			ts.LastScore = &v
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("iterating tasks", err)
	}
	return out, nil
}

// wrapForeignKey maps an insert against an unknown task to ErrNotFound.
func wrapForeignKey(err error, id string) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return err
}

// timeLayout is fixed-width so stored timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
