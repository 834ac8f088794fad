package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
)

// TaskRepository enforces the scheduled-task state machine: pending ->
// running -> completed|failed, with Claim as the single atomic transition
// guarding against two workers picking up the same task.
type TaskRepository struct {
	h *Handle
}

func NewTaskRepository(h *Handle) *TaskRepository { return &TaskRepository{h: h} }

// Add inserts a new task in pending state.
func (r *TaskRepository) Add(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Status == "" {
		t.Status = TaskStatusPending
	}
	if t.MaxRetries == 0 {
		t.MaxRetries = 3
	}

	var scheduledFor, startedAt, completedAt any
	if t.ScheduledFor != nil {
		scheduledFor = t.ScheduledFor.Unix()
	}
	if t.StartedAt != nil {
		startedAt = t.StartedAt.Unix()
	}
	if t.CompletedAt != nil {
		completedAt = t.CompletedAt.Unix()
	}

	_, err := r.h.DB().ExecContext(ctx, `
		INSERT INTO tasks(
			id, description, type, status, priority, project_id, repo_url,
			scheduled_for, started_at, completed_at, retry_count, max_retries,
			timeout_ms, context, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Description, t.Type, t.Status, t.Priority, t.ProjectID, t.RepoURL,
		scheduledFor, startedAt, completedAt, t.RetryCount, t.MaxRetries,
		t.TimeoutMS, t.Context, t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
	)
	if err != nil {
		return memerrors.Storage("insert task", err)
	}
	return nil
}

// Claim atomically transitions the next eligible pending task (by priority
// DESC, created_at ASC, honoring scheduled_for) to running and returns it.
// Returns (nil, nil) when nothing is eligible.
func (r *TaskRepository) Claim(ctx context.Context) (*Task, error) {
	tx, err := r.h.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, memerrors.Storage("begin claim tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx, `
		SELECT id, description, type, status, priority, project_id, repo_url,
		       scheduled_for, started_at, completed_at, retry_count, max_retries,
		       timeout_ms, context, created_at, updated_at
		FROM tasks
		WHERE status = ? AND (scheduled_for IS NULL OR scheduled_for <= ?)
		ORDER BY priority DESC, created_at ASC
		LIMIT 1`, TaskStatusPending, now.Unix())

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, memerrors.Storage("scan claimable task", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		TaskStatusRunning, now.Unix(), now.Unix(), t.ID, TaskStatusPending)
	if err != nil {
		return nil, memerrors.Storage("claim task", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Lost the race to another claimant between SELECT and UPDATE.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, memerrors.Storage("commit claim", err)
	}

	t.Status = TaskStatusRunning
	t.StartedAt = &now
	t.UpdatedAt = now
	return t, nil
}

// Complete transitions a running task to completed.
func (r *TaskRepository) Complete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := r.h.DB().ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		TaskStatusCompleted, now.Unix(), now.Unix(), id, TaskStatusRunning)
	if err != nil {
		return memerrors.Storage("complete task", err)
	}
	return requireAffected(res, id)
}

// RetryOrFail transitions a running task back to pending (incrementing
// retry_count) if retries remain, else to failed.
func (r *TaskRepository) RetryOrFail(ctx context.Context, id string) error {
	tx, err := r.h.DB().BeginTx(ctx, nil)
	if err != nil {
		return memerrors.Storage("begin retry tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var retryCount, maxRetries int
	err = tx.QueryRowContext(ctx,
		`SELECT retry_count, max_retries FROM tasks WHERE id = ? AND status = ?`,
		id, TaskStatusRunning).Scan(&retryCount, &maxRetries)
	if errors.Is(err, sql.ErrNoRows) {
		return memerrors.NotFound(fmt.Sprintf("running task %s not found", id))
	}
	if err != nil {
		return memerrors.Storage("read task for retry", err)
	}

	now := time.Now().UTC()
	if retryCount < maxRetries {
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, retry_count = retry_count + 1, started_at = NULL, updated_at = ? WHERE id = ?`,
			TaskStatusPending, now.Unix(), id)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, retry_count = retry_count + 1, completed_at = ?, updated_at = ? WHERE id = ?`,
			TaskStatusFailed, now.Unix(), now.Unix(), id)
	}
	if err != nil {
		return memerrors.Storage("update task for retry", err)
	}
	return tx.Commit()
}

// Cancel transitions a pending task to cancelled; running tasks cannot be
// cancelled this way (they must complete or exhaust retries first).
func (r *TaskRepository) Cancel(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := r.h.DB().ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		TaskStatusCancelled, now.Unix(), now.Unix(), id, TaskStatusPending)
	if err != nil {
		return memerrors.Storage("cancel task", err)
	}
	return requireAffected(res, id)
}

// GetByID loads a single task.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*Task, error) {
	row := r.h.DB().QueryRowContext(ctx, `
		SELECT id, description, type, status, priority, project_id, repo_url,
		       scheduled_for, started_at, completed_at, retry_count, max_retries,
		       timeout_ms, context, created_at, updated_at
		FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memerrors.NotFound(fmt.Sprintf("task %s not found", id))
	}
	if err != nil {
		return nil, memerrors.Storage("scan task", err)
	}
	return t, nil
}

// List returns tasks matching the optional status and project filters,
// newest first.
func (r *TaskRepository) List(ctx context.Context, status, projectID string, limit int) ([]*Task, error) {
	var clauses []string
	var args []any
	if status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, status)
	}
	if projectID != "" {
		clauses = append(clauses, "project_id = ?")
		args = append(args, projectID)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := `
		SELECT id, description, type, status, priority, project_id, repo_url,
		       scheduled_for, started_at, completed_at, retry_count, max_retries,
		       timeout_ms, context, created_at, updated_at
		FROM tasks` + where + ` ORDER BY created_at DESC LIMIT ?`
	rows, err := r.h.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memerrors.Storage("list tasks", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, memerrors.Storage("scan task row", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result, id string) error {
	n, _ := res.RowsAffected()
	if n == 0 {
		return memerrors.NotFound(fmt.Sprintf("task %s not in expected state", id))
	}
	return nil
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var scheduledFor, startedAt, completedAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(
		&t.ID, &t.Description, &t.Type, &t.Status, &t.Priority, &t.ProjectID, &t.RepoURL,
		&scheduledFor, &startedAt, &completedAt, &t.RetryCount, &t.MaxRetries,
		&t.TimeoutMS, &t.Context, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if scheduledFor.Valid {
		v := time.Unix(scheduledFor.Int64, 0).UTC()
		t.ScheduledFor = &v
	}
	if startedAt.Valid {
		v := time.Unix(startedAt.Int64, 0).UTC()
		t.StartedAt = &v
	}
	if completedAt.Valid {
		v := time.Unix(completedAt.Int64, 0).UTC()
		t.CompletedAt = &v
	}
	return &t, nil
}
