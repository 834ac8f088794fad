package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerplabs/memoryd/internal/store"
)

func TestMockRunner_Success(t *testing.T) {
	r := &MockRunner{}
	result, err := r.Run(context.Background(), &store.Task{ID: "t1"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "mock", r.Name())
}

func TestMockRunner_Fail(t *testing.T) {
	r := &MockRunner{Fail: true}
	result, err := r.Run(context.Background(), &store.Task{ID: "t1"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestCLIRunner_Run_CapturesOutput(t *testing.T) {
	r := NewCLIRunner("echo", "task:")
	result, err := r.Run(context.Background(), &store.Task{ID: "t1", Description: "hello"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "hello")
}

func TestCLIRunner_Run_ReportsFailureOnNonZeroExit(t *testing.T) {
	r := NewCLIRunner("false")
	result, err := r.Run(context.Background(), &store.Task{ID: "t1", Description: "boom"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
