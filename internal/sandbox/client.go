// Package sandbox talks to the external code-execution service that runs
// coding answers against their test cases.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunRequest is one coding answer with its test suite.
type RunRequest struct {
	Language  string          `json:"language"`
	Code      string          `json:"code"`
	TestCases json.RawMessage `json:"test_cases"`
}

// RunResult counts passed test cases. A sandbox failure degrades to zero
// passed rather than an error; grading must not stall on the runner.
type RunResult struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// Summary renders the per-question result string stored as the graded
// answer, e.g. "3/5 Test Cases Passed".
func (r RunResult) Summary() string {
	return fmt.Sprintf("%d/%d Test Cases Passed", r.Passed, r.Total)
}

// Client is an HTTP client for the sandbox service.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient creates a sandbox client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "sandbox").Logger(),
	}
}

// Enabled reports whether a sandbox endpoint is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Run executes one coding answer. Errors and timeouts are logged and
// collapse to 0/N passed.
func (c *Client) Run(ctx context.Context, req RunRequest) RunResult {
	total := countTestCases(req.TestCases)
	failed := RunResult{Passed: 0, Total: total}

	if !c.Enabled() {
		return failed
	}

	body, err := json.Marshal(req)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal sandbox request")
		return failed
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		c.log.Error().Err(err).Msg("build sandbox request")
		return failed
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		c.log.Warn().Err(err).Msg("sandbox unreachable, grading answer as failed")
		return failed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("sandbox rejected run")
		return failed
	}

	var result RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.log.Warn().Err(err).Msg("malformed sandbox response")
		return failed
	}
	if result.Total == 0 {
		result.Total = total
	}
	if result.Passed < 0 || result.Passed > result.Total {
		return failed
	}
	return result
}

func countTestCases(raw json.RawMessage) int {
	var cases []json.RawMessage
	if err := json.Unmarshal(raw, &cases); err != nil {
		return 0
	}
	return len(cases)
}
