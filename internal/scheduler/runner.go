// Package scheduler implements the single-writer, cron-triggered task queue
// processor: claim the next eligible pending task, execute it via a
// pluggable Runner, and translate the outcome into the state machine.
package scheduler

import (
	"context"
	"strconv"

	"github.com/cerplabs/memoryd/internal/store"
)

// Result is what a Runner reports back for one task execution.
type Result struct {
	Output     string
	Summary    string
	Success    bool
	Error      string
	TokensUsed int
	CostUSD    float64
}

// Runner is the abstract task executor capability; the scheduler holds no
// concurrency assumptions beyond this interface.
type Runner interface {
	Name() string
	Run(ctx context.Context, task *store.Task) (*Result, error)
}

// OnTaskComplete is an optional callback invoked after a task settles;
// its errors are logged, never propagated.
type OnTaskComplete func(task *store.Task, result *Result)

// TimeoutError marks a runner invocation that exceeded its deadline,
// surfaced as a distinct error kind.
type TimeoutError struct {
	TimeoutMS int64
}

func (e *TimeoutError) Error() string {
	return "Task timed out after " + strconv.FormatInt(e.TimeoutMS, 10) + " ms"
}
