package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codeclub/liveclass/internal/submission"
)

type staticTests struct {
	tests []TestCase
}

func (s *staticTests) TaskTests(ctx context.Context, taskID int) ([]TestCase, error) {
	return s.tests, nil
}

type captureSink struct {
	results []submission.Submission
}

func (c *captureSink) RecordResult(ctx context.Context, sub *submission.Submission) error {
	c.results = append(c.results, *sub)
	return nil
}

// newExecServer returns a fake execution engine that echoes each request's
// stdin back as the run output.
func newExecServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/execute" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Stdin string `json:"stdin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(ExecResult{Run: StageResult{Output: req.Stdin + "\n"}})
	}))
}

func runService(t *testing.T, srv *httptest.Server, tests []TestCase) (*submission.Submission, *captureSink) {
	t.Helper()
	subs := submission.NewMemoryStore()
	sink := &captureSink{}
	svc := NewService(NewClient(srv.URL, time.Second), subs, &staticTests{tests: tests}, sink, 5*time.Second)

	sub := &submission.Submission{TeamID: 7, TaskID: 42, Code: "cat", Language: "python", Status: submission.New}
	if err := subs.Create(context.Background(), sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	svc.run(sub.ID)

	got, err := subs.Get(context.Background(), sub.ID)
	if err != nil || got == nil {
		t.Fatalf("Get after run failed: %v", err)
	}
	return got, sink
}

func TestRunAllTestsPass(t *testing.T) {
	srv := newExecServer(t)
	defer srv.Close()

	// The fake engine echoes stdin, so input==output passes.
	sub, sink := runService(t, srv, []TestCase{
		{Input: "1", Output: "1"},
		{Input: "2", Output: "2"},
	})

	if sub.Status != submission.Passed {
		t.Errorf("status = %v, want ok", sub.Status)
	}
	if sub.CompletionTime <= 0 {
		t.Error("completion time not recorded")
	}
	if len(sink.results) != 1 || sink.results[0].Status != submission.Passed {
		t.Errorf("sink results = %+v, want one passed result", sink.results)
	}
}

func TestRunFirstFailureShortCircuits(t *testing.T) {
	srv := newExecServer(t)
	defer srv.Close()

	sub, sink := runService(t, srv, []TestCase{
		{Input: "1", Output: "not-one"},
		{Input: "2", Output: "2"},
	})

	if sub.Status != submission.Failed {
		t.Errorf("status = %v, want failed", sub.Status)
	}
	if len(sink.results) != 1 {
		t.Errorf("sink received %d results, want 1", len(sink.results))
	}
}

func TestRunNoTestsPasses(t *testing.T) {
	srv := newExecServer(t)
	defer srv.Close()

	sub, _ := runService(t, srv, nil)
	if sub.Status != submission.Passed {
		t.Errorf("status with no tests = %v, want ok", sub.Status)
	}
}

func TestRunCompileErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ExecResult{
			Compile: &StageResult{Code: 1, Output: "syntax error"},
			Run:     StageResult{},
		})
	}))
	defer srv.Close()

	sub, _ := runService(t, srv, []TestCase{{Input: "1", Output: "1"}})
	if sub.Status != submission.Failed {
		t.Errorf("status after compile error = %v, want failed", sub.Status)
	}
}

func TestRunEngineErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sub, _ := runService(t, srv, []TestCase{{Input: "1", Output: "1"}})
	if sub.Status != submission.Failed {
		t.Errorf("status after engine error = %v, want failed", sub.Status)
	}
}
