package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRepository_Claim_TransitionsPendingToRunning(t *testing.T) {
	h := newTestHandle(t)
	repo := NewTaskRepository(h)

	task := &Task{Description: "run test suite", Type: TaskTypeTestRunner, Priority: 5}
	require.NoError(t, repo.Add(context.Background(), task))

	claimed, err := repo.Claim(context.Background())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, TaskStatusRunning, claimed.Status)
	assert.NotNil(t, claimed.StartedAt)
}

func TestTaskRepository_Claim_HonorsPriorityOrder(t *testing.T) {
	h := newTestHandle(t)
	repo := NewTaskRepository(h)

	low := &Task{Description: "low priority", Priority: 1}
	high := &Task{Description: "high priority", Priority: 9}
	require.NoError(t, repo.Add(context.Background(), low))
	require.NoError(t, repo.Add(context.Background(), high))

	claimed, err := repo.Claim(context.Background())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "high priority", claimed.Description)
}

func TestTaskRepository_Claim_HonorsScheduledFor(t *testing.T) {
	h := newTestHandle(t)
	repo := NewTaskRepository(h)

	future := time.Now().Add(time.Hour)
	task := &Task{Description: "future task", ScheduledFor: &future}
	require.NoError(t, repo.Add(context.Background(), task))

	claimed, err := repo.Claim(context.Background())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestTaskRepository_Claim_NothingEligible(t *testing.T) {
	h := newTestHandle(t)
	repo := NewTaskRepository(h)

	claimed, err := repo.Claim(context.Background())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestTaskRepository_Complete(t *testing.T) {
	h := newTestHandle(t)
	repo := NewTaskRepository(h)

	task := &Task{Description: "complete me"}
	require.NoError(t, repo.Add(context.Background(), task))
	claimed, err := repo.Claim(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Complete(context.Background(), claimed.ID))

	got, err := repo.GetByID(context.Background(), claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestTaskRepository_RetryOrFail_RetriesUntilExhausted(t *testing.T) {
	h := newTestHandle(t)
	repo := NewTaskRepository(h)

	task := &Task{Description: "flaky task", MaxRetries: 1}
	require.NoError(t, repo.Add(context.Background(), task))

	claimed, err := repo.Claim(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.RetryOrFail(context.Background(), claimed.ID))

	got, err := repo.GetByID(context.Background(), claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	claimed2, err := repo.Claim(context.Background())
	require.NoError(t, err)
	require.NotNil(t, claimed2)
	require.NoError(t, repo.RetryOrFail(context.Background(), claimed2.ID))

	final, err := repo.GetByID(context.Background(), claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, final.Status)
}

func TestTaskRepository_Cancel_OnlyPending(t *testing.T) {
	h := newTestHandle(t)
	repo := NewTaskRepository(h)

	task := &Task{Description: "cancel me"}
	require.NoError(t, repo.Add(context.Background(), task))
	require.NoError(t, repo.Cancel(context.Background(), task.ID))

	got, err := repo.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCancelled, got.Status)

	task2 := &Task{Description: "running task"}
	require.NoError(t, repo.Add(context.Background(), task2))
	_, err = repo.Claim(context.Background())
	require.NoError(t, err)
	assert.Error(t, repo.Cancel(context.Background(), task2.ID))
}

func TestTaskRepository_List_FiltersByStatus(t *testing.T) {
	h := newTestHandle(t)
	repo := NewTaskRepository(h)

	require.NoError(t, repo.Add(context.Background(), &Task{Description: "one"}))
	require.NoError(t, repo.Add(context.Background(), &Task{Description: "two"}))
	_, err := repo.Claim(context.Background())
	require.NoError(t, err)

	pending, err := repo.List(context.Background(), TaskStatusPending, "", 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	running, err := repo.List(context.Background(), TaskStatusRunning, "", 10)
	require.NoError(t, err)
	assert.Len(t, running, 1)
}
