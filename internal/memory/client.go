// Package memory adapts the external semantic-memory HTTP service into the
// pipeline: writes are local-first and never block (C14), backed by a
// resilient HTTP client wrapping retry + circuit-breaking (C23).
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ronaldeddings/unified-agent/internal/resilience"
)

// HTTPClient is the resilient transport to the external memory service.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor[*http.Response]
}

// NewHTTPClient builds an HTTPClient wrapped in the teacher's retry +
// circuit-breaker Executor, so a flaky or down memory service degrades to
// fast failures instead of hanging writers.
func NewHTTPClient(baseURL string) *HTTPClient {
	breakerCfg := resilience.DefaultBreakerConfig("memory-client")
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		executor:   resilience.NewExecutor[*http.Response](resilience.DefaultRetryConfig, &breakerCfg),
	}
}

// Health reports whether the memory service's /api/health endpoint is
// reachable and returning success. Nothing in this tree calls it: the status
// API does not report it and searches are attempted without consulting it.
func (c *HTTPClient) Health(ctx context.Context) (bool, error) {
	resp, err := c.executor.Execute(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return false, fmt.Errorf("memory: health check: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// StoreObservation POSTs a single observation to the memory service. Body
// shape matches spec.md §6's POST /api/sessions/observations contract
// exactly (contentSessionId, cwd, tool_name, tool_input, tool_response).
func (c *HTTPClient) StoreObservation(ctx context.Context, obs Observation) error {
	body, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("memory: encode observation: %w", err)
	}

	resp, err := c.executor.Execute(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sessions/observations", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return fmt.Errorf("memory: store observation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("memory: store observation: status %d", resp.StatusCode)
	}
	return nil
}

// Search issues GET /api/search?query=...&limit=... per spec.md §6 and
// returns the "content" array's text blocks in rank order (highest-relevance
// first). Returns an empty slice, never an error surfaced past the caller's
// own logging — the search path of C14 treats any failure as "no memory
// hits" rather than a hard error.
func (c *HTTPClient) Search(ctx context.Context, query string, limit int) []string {
	resp, err := c.executor.Execute(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/search", nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("query", query)
		q.Set("limit", strconv.Itoa(limit))
		req.URL.RawQuery = q.Encode()
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil
	}
	if !gjson.ValidBytes(buf.Bytes()) {
		return nil
	}

	var texts []string
	gjson.GetBytes(buf.Bytes(), "content").ForEach(func(_, block gjson.Result) bool {
		if t := block.Get("text"); t.Exists() {
			texts = append(texts, t.String())
		}
		return true
	})
	return texts
}
