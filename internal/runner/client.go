package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Client talks to a Piston-compatible code execution API
// (POST /api/v2/execute).
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type execFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type execRequest struct {
	Language string     `json:"language"`
	Version  string     `json:"version"`
	Files    []execFile `json:"files"`
	Stdin    string     `json:"stdin"`
}

// StageResult is the outcome of one execution stage (compile or run).
type StageResult struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
	Code   int    `json:"code"`
}

// ExecResult is the engine's response for a single run.
type ExecResult struct {
	Run     StageResult  `json:"run"`
	Compile *StageResult `json:"compile,omitempty"`
}

// CompileFailed reports whether a compile stage ran and failed.
func (r *ExecResult) CompileFailed() bool {
	return r.Compile != nil && r.Compile.Code != 0
}

// Execute runs code in the given language feeding stdin to the program.
func (c *Client) Execute(ctx context.Context, language, code, stdin string) (*ExecResult, error) {
	req := execRequest{
		Language: language,
		Version:  "*",
		Files:    []execFile{{Name: sourceFileName(language), Content: code}},
		Stdin:    stdin,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encoding execute request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/execute", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building execute request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "calling execution engine")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("execution engine returned status %d", resp.StatusCode)
	}

	var result ExecResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "decoding execute response")
	}
	return &result, nil
}

func sourceFileName(language string) string {
	switch strings.ToLower(language) {
	case "java":
		return "Main.java"
	case "python", "py":
		return "main.py"
	case "go":
		return "main.go"
	default:
		return fmt.Sprintf("code.%s", strings.ToLower(language))
	}
}
