package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoCases = `[{"input":"1","output":"2"},{"input":"3","output":"6"}]`

func TestRunReturnsSandboxCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/run", r.URL.Path)

		var req RunRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "python", req.Language)

		json.NewEncoder(w).Encode(RunResult{Passed: 1, Total: 2})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	result := c.Run(context.Background(), RunRequest{
		Language:  "python",
		Code:      "print(int(input())*2)",
		TestCases: json.RawMessage(twoCases),
	})

	assert.Equal(t, RunResult{Passed: 1, Total: 2}, result)
	assert.Equal(t, "1/2 Test Cases Passed", result.Summary())
}

func TestRunUnreachableSandboxFailsAllCases(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	result := c.Run(context.Background(), RunRequest{TestCases: json.RawMessage(twoCases)})

	assert.Equal(t, RunResult{Passed: 0, Total: 2}, result)
	assert.Equal(t, "0/2 Test Cases Passed", result.Summary())
}

func TestRunTimeoutFailsAllCases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(RunResult{Passed: 2, Total: 2})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond)
	result := c.Run(context.Background(), RunRequest{TestCases: json.RawMessage(twoCases)})
	assert.Equal(t, RunResult{Passed: 0, Total: 2}, result)
}

func TestRunRejectsImpossibleCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RunResult{Passed: 9, Total: 2})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	result := c.Run(context.Background(), RunRequest{TestCases: json.RawMessage(twoCases)})
	assert.Equal(t, RunResult{Passed: 0, Total: 2}, result)
}

func TestRunDisabledWithoutEndpoint(t *testing.T) {
	c := NewClient("", time.Second)
	assert.False(t, c.Enabled())

	result := c.Run(context.Background(), RunRequest{TestCases: json.RawMessage(twoCases)})
	assert.Equal(t, RunResult{Passed: 0, Total: 2}, result)
}
