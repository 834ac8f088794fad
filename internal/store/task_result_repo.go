package store

import (
	"context"
	"time"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
)

// TaskResultRepository records the outcome of each task execution attempt.
type TaskResultRepository struct {
	h *Handle
}

func NewTaskResultRepository(h *Handle) *TaskResultRepository { return &TaskResultRepository{h: h} }

// Create inserts a new result row.
func (r *TaskResultRepository) Create(ctx context.Context, tr *TaskResult) error {
	if tr.ID == "" {
		tr.ID = NewID()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}

	_, err := r.h.DB().ExecContext(ctx, `
		INSERT INTO task_results(
			id, task_id, output, summary, success, error,
			duration_ms, tokens_used, cost_usd, memory_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.TaskID, tr.Output, tr.Summary, boolToInt(tr.Success), tr.Error,
		tr.DurationMS, tr.TokensUsed, tr.CostUSD, tr.MemoryID, tr.CreatedAt.Unix(),
	)
	if err != nil {
		return memerrors.Storage("insert task result", err)
	}
	return nil
}

// ListByTask returns every result for taskID, newest first.
func (r *TaskResultRepository) ListByTask(ctx context.Context, taskID string) ([]*TaskResult, error) {
	rows, err := r.h.DB().QueryContext(ctx, `
		SELECT id, task_id, output, summary, success, error,
		       duration_ms, tokens_used, cost_usd, memory_id, created_at
		FROM task_results WHERE task_id = ? ORDER BY created_at DESC`, taskID)
	if err != nil {
		return nil, memerrors.Storage("list task results", err)
	}
	defer rows.Close()
	return scanTaskResults(rows)
}

// ListSince returns every result created at or after since, newest first.
func (r *TaskResultRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*TaskResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.h.DB().QueryContext(ctx, `
		SELECT id, task_id, output, summary, success, error,
		       duration_ms, tokens_used, cost_usd, memory_id, created_at
		FROM task_results WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?`,
		since.Unix(), limit)
	if err != nil {
		return nil, memerrors.Storage("list task results since", err)
	}
	defer rows.Close()
	return scanTaskResults(rows)
}

func scanTaskResults(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]*TaskResult, error) {
	var out []*TaskResult
	for rows.Next() {
		var tr TaskResult
		var success int
		var createdAt int64
		if err := rows.Scan(
			&tr.ID, &tr.TaskID, &tr.Output, &tr.Summary, &success, &tr.Error,
			&tr.DurationMS, &tr.TokensUsed, &tr.CostUSD, &tr.MemoryID, &createdAt,
		); err != nil {
			return nil, memerrors.Storage("scan task result", err)
		}
		tr.Success = success != 0
		tr.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &tr)
	}
	return out, rows.Err()
}
