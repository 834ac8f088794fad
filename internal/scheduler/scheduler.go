package scheduler

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
	"github.com/cerplabs/memoryd/internal/store"
)

// Stats is the scheduler's counters, returned by GetStats.
type Stats struct {
	TasksCompleted int64
	TasksFailed    int64
	LastRunAt      time.Time
}

// Scheduler is the single-process, single-writer, cron-triggered task queue
// processor. Schedule advancement uses cron.ParseStandard + Next; a
// re-entrancy flag guarantees at most one task in flight.
type Scheduler struct {
	tasks   *store.TaskRepository
	results *store.TaskResultRepository
	runner  Runner
	cronExpr string
	schedule cron.Schedule

	onComplete OnTaskComplete

	mu       sync.Mutex
	running  bool
	inFlight bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	completed int64
	failed    int64
	lastRunAt atomic.Value // time.Time
}

// New creates a scheduler. cronExpr is parsed with cron.ParseStandard; an
// invalid expression falls back to once a minute.
func New(tasks *store.TaskRepository, results *store.TaskResultRepository, runner Runner, cronExpr string, onComplete OnTaskComplete) *Scheduler {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		schedule, _ = cron.ParseStandard("*/1 * * * *")
	}
	return &Scheduler{
		tasks: tasks, results: results, runner: runner,
		cronExpr: cronExpr, schedule: schedule, onComplete: onComplete,
	}
}

// IsRunning reports whether the scheduler's loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStats returns the scheduler's counters.
func (s *Scheduler) GetStats() Stats {
	var lastRun time.Time
	if v := s.lastRunAt.Load(); v != nil {
		lastRun = v.(time.Time)
	}
	return Stats{
		TasksCompleted: atomic.LoadInt64(&s.completed),
		TasksFailed:    atomic.LoadInt64(&s.failed),
		LastRunAt:      lastRun,
	}
}

// Start begins the cron-triggered loop in a background goroutine and
// triggers one immediate pass. Idempotent: a second call without an
// intervening Stop() logs a warning and is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Warn("scheduler_start_already_running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.runPass(ctx)

	next := s.schedule.Next(time.Now())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runPass(ctx)
			next = s.schedule.Next(time.Now())
			timer.Reset(time.Until(next))
		}
	}
}

// runPass processes exactly one pending task, guarded against re-entrancy:
// if a trigger fires while a task is already in flight it is silently
// skipped.
func (s *Scheduler) runPass(ctx context.Context) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	s.lastRunAt.Store(time.Now().UTC())

	task, err := s.tasks.Claim(ctx)
	if err != nil {
		slog.Warn("task_claim_failed", slog.String("error", err.Error()))
		return
	}
	if task == nil {
		return
	}

	s.execute(ctx, task)
}

// execute runs one claimed task through its full execution sequence:
// optional shallow clone, deadline-bounded runner invocation, state machine
// transition, optional completion callback.
func (s *Scheduler) execute(ctx context.Context, task *store.Task) {
	var cleanup func()
	if task.RepoURL != "" {
		clonePath, cleanupFn, err := shallowClone(ctx, task.RepoURL)
		if err != nil {
			slog.Warn("task_clone_failed", slog.String("task_id", task.ID), slog.String("error", err.Error()))
		} else {
			task.Context = injectClonePath(task.Context, clonePath)
			cleanup = cleanupFn
		}
	}
	if cleanup != nil {
		defer cleanup()
	}

	timeout := time.Duration(task.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	result, err := s.runner.Run(runCtx, task)
	elapsed := time.Since(started)
	if runCtx.Err() != nil {
		err = &memerrors.MemoryError{Code: memerrors.ErrCodeTimeout, Message: (&TimeoutError{TimeoutMS: timeout.Milliseconds()}).Error()}
		result = &Result{Success: false, Error: err.Error()}
	}
	if result == nil {
		result = &Result{Success: false}
		if err != nil {
			result.Error = err.Error()
		}
	}

	s.settle(ctx, task, result, err, elapsed)
}

func (s *Scheduler) settle(ctx context.Context, task *store.Task, result *Result, runErr error, elapsed time.Duration) {
	success := runErr == nil && result != nil && result.Success
	terminal := success

	if success {
		if err := s.tasks.Complete(ctx, task.ID); err != nil {
			slog.Warn("task_complete_failed", slog.String("task_id", task.ID), slog.String("error", err.Error()))
			return
		}
		atomic.AddInt64(&s.completed, 1)
	} else {
		if err := s.tasks.RetryOrFail(ctx, task.ID); err != nil {
			slog.Warn("task_retry_failed", slog.String("task_id", task.ID), slog.String("error", err.Error()))
			return
		}
		current, err := s.tasks.GetByID(ctx, task.ID)
		if err == nil && current.Status == store.TaskStatusFailed {
			terminal = true
			atomic.AddInt64(&s.failed, 1)
		}
	}

	// A task-result row is recorded only on a terminal outcome (completed or
	// permanently failed), not on each retryable attempt; retries leave no
	// trace beyond the task's own retry_count.
	if terminal && result != nil && s.results != nil {
		tr := &store.TaskResult{
			TaskID:     task.ID,
			Output:     result.Output,
			Summary:    result.Summary,
			Success:    success,
			Error:      result.Error,
			DurationMS: elapsed.Milliseconds(),
			TokensUsed: result.TokensUsed,
			CostUSD:    result.CostUSD,
		}
		if err := s.results.Create(ctx, tr); err != nil {
			slog.Warn("task_result_write_failed", slog.String("task_id", task.ID), slog.String("error", err.Error()))
		}
	}

	if s.onComplete != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("on_task_complete_panicked", slog.Any("recover", r))
				}
			}()
			s.onComplete(task, result)
		}()
	}
}

// shallowClone clones url to a new temporary directory with --depth 1,
// returning its path and a cleanup func invoked on every exit path.
func shallowClone(ctx context.Context, url string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "memoryd-task-clone-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", url, dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return "", nil, memerrors.Downstream("shallow clone failed: "+string(out), err)
	}
	return dir, cleanup, nil
}

func injectClonePath(taskContext, clonePath string) string {
	if taskContext == "" {
		return "clone_path=" + clonePath
	}
	return taskContext + "\nclone_path=" + clonePath
}
