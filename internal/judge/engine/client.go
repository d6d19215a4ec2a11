package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appErr "efrog/pkg/errors"
)

// ClientConfig holds connection settings for the engine daemon.
type ClientConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

// Client implements Engine over the daemon's HTTP JSON API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an engine client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, appErr.Newf(appErr.EngineUnavailable, "engine baseURL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type compileRequest struct {
	SubmissionID        string `json:"submission_id"`
	Source              string `json:"source"`
	Language            string `json:"language"`
	EnableCustomChecker bool   `json:"enable_custom_checker"`
	CheckerLanguage     string `json:"checker_language,omitempty"`
	CheckerSource       string `json:"checker_source,omitempty"`
}

type compileResponse struct {
	Status      int    `json:"status"`
	Description string `json:"description"`
}

func (c *Client) Compile(ctx context.Context, req CompileRequest) (CompileResult, error) {
	var resp compileResponse
	err := c.post(ctx, "/compile", compileRequest{
		SubmissionID:        req.SubmissionID,
		Source:              req.Source,
		Language:            req.Language,
		EnableCustomChecker: req.EnableCustomChecker,
		CheckerLanguage:     req.CheckerLanguage,
		CheckerSource:       req.CheckerSource,
	}, &resp)
	if err != nil {
		return CompileResult{}, err
	}
	return CompileResult{Status: resp.Status, Description: resp.Description}, nil
}

type runCaseRequest struct {
	SubmissionID string  `json:"submission_id"`
	TestCaseID   int64   `json:"test_case_id"`
	Language     string  `json:"language"`
	Input        string  `json:"input"`
	Expected     string  `json:"expected"`
	TimeLimitS   float64 `json:"time_limit_s"`
	MemLimitMB   int     `json:"mem_limit_mb"`
	UseChecker   bool    `json:"use_checker"`
}

type runCaseResponse struct {
	Status    int   `json:"status"`
	TimeMs    int64 `json:"time_ms"`
	CPUTimeMs int64 `json:"cpu_time_ms"`
	MemoryKB  int64 `json:"memory_kb"`
}

func (c *Client) RunCase(ctx context.Context, req RunCaseRequest) (RunResult, error) {
	var resp runCaseResponse
	err := c.post(ctx, "/run", runCaseRequest{
		SubmissionID: req.SubmissionID,
		TestCaseID:   req.TestCaseID,
		Language:     req.Language,
		Input:        req.Input,
		Expected:     req.Expected,
		TimeLimitS:   req.TimeLimitS,
		MemLimitMB:   req.MemLimitMB,
		UseChecker:   req.UseChecker,
	}, &resp)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{
		Status:    resp.Status,
		TimeMs:    resp.TimeMs,
		CPUTimeMs: resp.CPUTimeMs,
		MemoryKB:  resp.MemoryKB,
	}, nil
}

type debugRunRequest struct {
	SubmissionID string  `json:"submission_id"`
	InputIndex   int     `json:"input_index"`
	Language     string  `json:"language"`
	Input        string  `json:"input"`
	TimeLimitS   float64 `json:"time_limit_s"`
	MemLimitMB   int     `json:"mem_limit_mb"`
}

type debugRunResponse struct {
	Status    int    `json:"status"`
	TimeMs    int64  `json:"time_ms"`
	CPUTimeMs int64  `json:"cpu_time_ms"`
	MemoryKB  int64  `json:"memory_kb"`
	Output    string `json:"output"`
}

func (c *Client) RunDebugInput(ctx context.Context, req DebugRunRequest) (DebugRunResult, error) {
	var resp debugRunResponse
	err := c.post(ctx, "/debug", debugRunRequest{
		SubmissionID: req.SubmissionID,
		InputIndex:   req.InputIndex,
		Language:     req.Language,
		Input:        req.Input,
		TimeLimitS:   req.TimeLimitS,
		MemLimitMB:   req.MemLimitMB,
	}, &resp)
	if err != nil {
		return DebugRunResult{}, err
	}
	return DebugRunResult{
		Status:    resp.Status,
		TimeMs:    resp.TimeMs,
		CPUTimeMs: resp.CPUTimeMs,
		MemoryKB:  resp.MemoryKB,
		Output:    resp.Output,
	}, nil
}

type cleanupRequest struct {
	SubmissionID string `json:"submission_id"`
}

func (c *Client) Cleanup(ctx context.Context, submissionID string) error {
	return c.post(ctx, "/cleanup", cleanupRequest{SubmissionID: submissionID}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "marshal engine request failed")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "build engine request failed")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return appErr.Wrapf(err, appErr.EngineUnavailable, "engine request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErr.Wrapf(err, appErr.EngineUnavailable, "read engine response failed")
	}
	if resp.StatusCode != http.StatusOK {
		return appErr.Newf(appErr.EngineUnavailable, "engine returned HTTP %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return appErr.Wrapf(err, appErr.EngineUnavailable, "decode engine response failed")
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...", b[:n])
}
