package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
)

// HTTPConfig configures an HTTPEmbedder against an Ollama-compatible
// embeddings endpoint (POST {Host}/api/embed, body {model, input}).
type HTTPConfig struct {
	Host       string
	Model      string
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
}

func (c HTTPConfig) withDefaults() HTTPConfig {
	if c.Host == "" {
		c.Host = "http://127.0.0.1:11434"
	}
	if c.Model == "" {
		c.Model = "nomic-embed-text"
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

type httpEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type httpEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// HTTPEmbedder generates embeddings against a local or remote HTTP embedding
// service. Requests are wrapped in a circuit breaker and bounded retry so a
// downed endpoint degrades to fast failures instead of hanging the store
// pipeline.
type HTTPEmbedder struct {
	client  *http.Client
	cfg     HTTPConfig
	breaker *memerrors.CircuitBreaker

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates an HTTP-backed embedder. It does not dial the
// endpoint until the first Embed/EmbedBatch/Available call.
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	cfg = cfg.withDefaults()
	return &HTTPEmbedder{
		client:  &http.Client{},
		cfg:     cfg,
		breaker: memerrors.NewCircuitBreaker("embed-http-"+cfg.Model, 5, 30*time.Second),
	}
}

func (e *HTTPEmbedder) Dimensions() int   { return e.cfg.Dimensions }
func (e *HTTPEmbedder) ModelName() string { return e.cfg.Model }

func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string, kind Kind) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text}, kind)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	results := make([][]float32, len(texts))
	var pending []string
	var pendingIdx []int

	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			results[i] = make([]float32, e.cfg.Dimensions)
			continue
		}
		pending = append(pending, kind.Prefix()+t)
		pendingIdx = append(pendingIdx, i)
	}
	if len(pending) == 0 {
		return results, nil
	}

	retryCfg := memerrors.DefaultRetryConfig()
	retryCfg.MaxRetries = e.cfg.MaxRetries

	embeddings, err := memerrors.RetryWithResult(ctx, retryCfg, func() ([][]float32, error) {
		var out [][]float32
		err := e.breaker.Execute(func() error {
			var innerErr error
			out, innerErr = e.doRequest(ctx, pending)
			return innerErr
		})
		return out, err
	})
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeDownstream, err)
	}

	for j, idx := range pendingIdx {
		results[idx] = embeddings[j]
	}
	return results, nil
}

func (e *HTTPEmbedder) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(httpEmbedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed httpEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed endpoint returned %d vectors for %d inputs", len(parsed.Embeddings), len(texts))
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, emb := range parsed.Embeddings {
		v := make([]float32, len(emb))
		for j, f := range emb {
			v[j] = float32(f)
		}
		out[i] = normalizeVector(v)
	}
	return out, nil
}
