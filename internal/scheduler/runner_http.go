package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
	"github.com/cerplabs/memoryd/internal/store"
)

// HTTPRunnerConfig configures an HTTPRunner against a remote LLM task
// service.
type HTTPRunnerConfig struct {
	Endpoint   string
	Timeout    time.Duration
	MaxRetries int
}

func (c HTTPRunnerConfig) withDefaults() HTTPRunnerConfig {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

type httpRunnerRequest struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Context     string `json:"context"`
}

type httpRunnerResponse struct {
	Success    bool    `json:"success"`
	Output     string  `json:"output"`
	Summary    string  `json:"summary"`
	Error      string  `json:"error"`
	TokensUsed int     `json:"tokens_used"`
	CostUSD    float64 `json:"cost_usd"`
}

// HTTPRunner invokes a remote language-model HTTP service per task, wrapped
// in a circuit breaker and bounded retry like the embedding adapter's HTTP
// client.
type HTTPRunner struct {
	client  *http.Client
	cfg     HTTPRunnerConfig
	breaker *memerrors.CircuitBreaker
}

func NewHTTPRunner(cfg HTTPRunnerConfig) *HTTPRunner {
	cfg = cfg.withDefaults()
	return &HTTPRunner{
		client:  &http.Client{},
		cfg:     cfg,
		breaker: memerrors.NewCircuitBreaker("task-runner-http", 5, 30*time.Second),
	}
}

func (r *HTTPRunner) Name() string { return "http" }

func (r *HTTPRunner) Run(ctx context.Context, task *store.Task) (*Result, error) {
	retryCfg := memerrors.DefaultRetryConfig()
	retryCfg.MaxRetries = r.cfg.MaxRetries

	result, err := memerrors.RetryWithResult(ctx, retryCfg, func() (*Result, error) {
		var out *Result
		execErr := r.breaker.Execute(func() error {
			var innerErr error
			out, innerErr = r.doRequest(ctx, task)
			return innerErr
		})
		return out, execErr
	})
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeDownstream, err)
	}
	return result, nil
}

func (r *HTTPRunner) doRequest(ctx context.Context, task *store.Task) (*Result, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(httpRunnerRequest{
		TaskID: task.ID, Description: task.Description, Type: task.Type, Context: task.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal task request: %w", err)
	}

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("task runner request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("task runner endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed httpRunnerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode task runner response: %w", err)
	}

	return &Result{
		Output: parsed.Output, Summary: parsed.Summary, Success: parsed.Success,
		Error: parsed.Error, TokensUsed: parsed.TokensUsed, CostUSD: parsed.CostUSD,
	}, nil
}
