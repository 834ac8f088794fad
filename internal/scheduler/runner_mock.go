package scheduler

import (
	"context"

	"github.com/cerplabs/memoryd/internal/store"
)

// MockRunner is a deterministic, dependency-free Runner for tests. Fail
// forces every invocation to report failure.
type MockRunner struct {
	Fail bool
}

func (r *MockRunner) Name() string { return "mock" }

func (r *MockRunner) Run(ctx context.Context, task *store.Task) (*Result, error) {
	if r.Fail {
		return &Result{Success: false, Error: "mock runner configured to fail"}, nil
	}
	return &Result{Success: true, Output: "ok", Summary: "mock task completed"}, nil
}
