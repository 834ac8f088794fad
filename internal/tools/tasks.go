package tools

import (
	"context"
	"time"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
	"github.com/cerplabs/memoryd/internal/store"
)

// TaskAdd implements the task_add tool. Tasks always live in the global
// database — the scheduler claims from a single queue — with project_id as
// a column, not a database selector.
func (s *Service) TaskAdd(ctx context.Context, in *TaskAddInput) (*TaskAddOutput, error) {
	if trimmedOrEmpty(in.Description) == "" {
		return nil, invalidParams("description is required")
	}
	in.Project = s.projectID(in.Project)

	db, err := s.dbForProject("")
	if err != nil {
		return nil, err
	}

	t := &store.Task{
		Description: in.Description,
		Type:        in.Type,
		ProjectID:   in.Project,
		RepoURL:     in.RepoURL,
		Priority:    in.Priority,
		Context:     in.Context,
		TimeoutMS:   in.TimeoutMS,
	}
	if t.Type == "" {
		t.Type = store.TaskTypeCustom
	}
	if t.Priority == 0 {
		t.Priority = 5
	}
	if in.ScheduledFor != "" {
		when, err := time.Parse(time.RFC3339, in.ScheduledFor)
		if err != nil {
			return nil, invalidParams("scheduled_for must be an RFC3339 timestamp: %v", err)
		}
		t.ScheduledFor = &when
	}

	if err := db.tasks.Add(ctx, t); err != nil {
		return nil, err
	}

	out := &TaskAddOutput{ID: t.ID}
	if t.ScheduledFor != nil {
		out.ScheduledFor = t.ScheduledFor.Format(time.RFC3339)
	}
	return out, nil
}

// TaskList implements the task_list tool.
func (s *Service) TaskList(ctx context.Context, in *TaskListInput) (*TaskListOutput, error) {
	in.Project = s.projectID(in.Project)
	db, err := s.dbForProject("")
	if err != nil {
		return nil, err
	}

	var since time.Time
	if in.Since != "" {
		parsed, err := time.Parse(time.RFC3339, in.Since)
		if err != nil {
			return nil, invalidParams("since must be an RFC3339 timestamp: %v", err)
		}
		since = parsed
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}

	tasks, err := db.tasks.List(ctx, in.Status, in.Project, limit)
	if err != nil {
		return nil, err
	}

	out := &TaskListOutput{Tasks: make([]TaskRecord, 0, len(tasks))}
	for _, t := range tasks {
		if t.CreatedAt.Before(since) {
			continue
		}
		out.Tasks = append(out.Tasks, toTaskRecord(t))
	}
	return out, nil
}

// TaskResults implements the task_results tool: results for one task id,
// or the most recent results across all tasks since a cutoff.
func (s *Service) TaskResults(ctx context.Context, in *TaskResultsInput) (*TaskResultsOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	if in.TaskID != "" {
		db, _, err := s.resolveTask(ctx, in.TaskID)
		if err != nil {
			return nil, err
		}
		results, err := db.results.ListByTask(ctx, in.TaskID)
		if err != nil {
			return nil, err
		}
		if len(results) > limit {
			results = results[:limit]
		}
		return &TaskResultsOutput{Results: toTaskResultRecords(results)}, nil
	}

	since := time.Unix(0, 0).UTC()
	if in.Since != "" {
		t, err := time.Parse(time.RFC3339, in.Since)
		if err != nil {
			return nil, invalidParams("since must be an RFC3339 timestamp: %v", err)
		}
		since = t
	}

	db, err := s.dbForProject("")
	if err != nil {
		return nil, err
	}
	results, err := db.results.ListSince(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	return &TaskResultsOutput{Results: toTaskResultRecords(results)}, nil
}

// TaskCancel implements the task_cancel tool.
func (s *Service) TaskCancel(ctx context.Context, in *TaskCancelInput) (*TaskCancelOutput, error) {
	if trimmedOrEmpty(in.ID) == "" {
		return nil, invalidParams("id is required")
	}
	db, _, err := s.resolveTask(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := db.tasks.Cancel(ctx, in.ID); err != nil {
		if memerrors.IsNotFound(err) {
			return &TaskCancelOutput{Cancelled: false}, nil
		}
		return nil, err
	}
	return &TaskCancelOutput{Cancelled: true}, nil
}

// resolveTask loads task id from the global database, where every task
// lives.
func (s *Service) resolveTask(ctx context.Context, id string) (*dbSet, *store.Task, error) {
	db, err := s.dbForProject("")
	if err != nil {
		return nil, nil, err
	}
	t, err := db.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return db, t, nil
}

func toTaskRecord(t *store.Task) TaskRecord {
	r := TaskRecord{
		ID:          t.ID,
		Description: t.Description,
		Type:        t.Type,
		Status:      t.Status,
		Priority:    t.Priority,
		ProjectID:   t.ProjectID,
		RepoURL:     t.RepoURL,
		RetryCount:  t.RetryCount,
		MaxRetries:  t.MaxRetries,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.ScheduledFor != nil {
		r.ScheduledFor = t.ScheduledFor.Format(time.RFC3339)
	}
	return r
}

func toTaskResultRecords(results []*store.TaskResult) []TaskResultRecord {
	out := make([]TaskResultRecord, 0, len(results))
	for _, tr := range results {
		out = append(out, TaskResultRecord{
			ID:         tr.ID,
			TaskID:     tr.TaskID,
			Summary:    tr.Summary,
			Success:    tr.Success,
			Error:      tr.Error,
			DurationMS: tr.DurationMS,
			TokensUsed: tr.TokensUsed,
			CostUSD:    tr.CostUSD,
			MemoryID:   tr.MemoryID,
			CreatedAt:  tr.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
