package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/cerplabs/memoryd/internal/store"
)

// CLIRunner invokes an external command per task. The task description is
// passed as the final argument; id and context travel in the environment.
type CLIRunner struct {
	Command string
	Args    []string
}

func NewCLIRunner(command string, args ...string) *CLIRunner {
	return &CLIRunner{Command: command, Args: args}
}

func (r *CLIRunner) Name() string { return "cli" }

func (r *CLIRunner) Run(ctx context.Context, task *store.Task) (*Result, error) {
	args := append(append([]string{}, r.Args...), task.Description)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Env = append(os.Environ(), "MEMORYD_TASK_ID="+task.ID, "MEMORYD_TASK_CONTEXT="+task.Context)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("%s (output: %s)", err, output)}, nil
	}
	return &Result{Success: true, Output: string(output), Summary: "cli task completed"}, nil
}
