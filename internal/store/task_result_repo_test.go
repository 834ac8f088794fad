package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskResultRepository_CreateAndListByTask(t *testing.T) {
	h := newTestHandle(t)
	taskRepo := NewTaskRepository(h)
	resultRepo := NewTaskResultRepository(h)

	task := &Task{Description: "reviewed PR"}
	require.NoError(t, taskRepo.Add(context.Background(), task))

	require.NoError(t, resultRepo.Create(context.Background(), &TaskResult{
		TaskID: task.ID, Success: true, Summary: "no issues found",
	}))
	require.NoError(t, resultRepo.Create(context.Background(), &TaskResult{
		TaskID: task.ID, Success: false, Error: "timed out",
	}))

	results, err := resultRepo.ListByTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestTaskResultRepository_ListSince(t *testing.T) {
	h := newTestHandle(t)
	taskRepo := NewTaskRepository(h)
	resultRepo := NewTaskResultRepository(h)

	task := &Task{Description: "scheduled job"}
	require.NoError(t, taskRepo.Add(context.Background(), task))
	require.NoError(t, resultRepo.Create(context.Background(), &TaskResult{TaskID: task.ID, Success: true}))

	results, err := resultRepo.ListSince(context.Background(), time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	none, err := resultRepo.ListSince(context.Background(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
