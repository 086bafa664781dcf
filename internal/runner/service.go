package runner

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/codeclub/liveclass/internal/submission"
)

// TestCase is one input/expected-output pair for a task.
type TestCase struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
}

// TestSource supplies the tests assigned to a task.
type TestSource interface {
	TaskTests(ctx context.Context, taskID int) ([]TestCase, error)
}

// ResultSink receives the finished submission so the outcome lands in the
// event log.
type ResultSink interface {
	RecordResult(ctx context.Context, sub *submission.Submission) error
}

// Service runs submissions against their task's tests in the background. A
// run short-circuits on a compile error or the first failing test; a task
// with no tests passes trivially.
type Service struct {
	client  *Client
	subs    submission.Store
	tests   TestSource
	sink    ResultSink
	timeout time.Duration
}

func NewService(client *Client, subs submission.Store, tests TestSource, sink ResultSink, timeout time.Duration) *Service {
	return &Service{client: client, subs: subs, tests: tests, sink: sink, timeout: timeout}
}

// Execute schedules the submission run. Fire-and-forget: the caller already
// recorded the submission event, the result arrives as its own event.
func (s *Service) Execute(submissionID string) {
	go s.run(submissionID)
}

func (s *Service) run(submissionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	sub, err := s.subs.Get(ctx, submissionID)
	if err != nil || sub == nil {
		log.Printf("runner: submission %s not loadable: %v", submissionID, err)
		return
	}

	sub.Status = submission.InProcess
	if err := s.subs.Update(ctx, sub); err != nil {
		log.Printf("runner: marking submission %s in_process: %v", submissionID, err)
	}

	start := time.Now()
	passed := s.runTests(ctx, sub)

	sub.CompletionTime = time.Since(start)
	sub.Status = submission.Failed
	if passed {
		sub.Status = submission.Passed
	}
	if err := s.subs.Update(ctx, sub); err != nil {
		log.Printf("runner: storing result for submission %s: %v", submissionID, err)
	}
	if err := s.sink.RecordResult(ctx, sub); err != nil {
		log.Printf("runner: recording result event for submission %s: %v", submissionID, err)
	}
	log.Printf("runner: finished submission %s, status %s", submissionID, sub.Status)
}

func (s *Service) runTests(ctx context.Context, sub *submission.Submission) bool {
	tests, err := s.tests.TaskTests(ctx, sub.TaskID)
	if err != nil {
		log.Printf("runner: loading tests for task %d: %v", sub.TaskID, err)
		return false
	}
	if len(tests) == 0 {
		log.Printf("runner: task %d has no tests, marking ok", sub.TaskID)
		return true
	}

	for _, tc := range tests {
		result, err := s.client.Execute(ctx, sub.Language, sub.Code, tc.Input)
		if err != nil {
			log.Printf("runner: executing submission %s: %v", sub.ID, err)
			return false
		}
		if result.CompileFailed() {
			log.Printf("runner: submission %s compile error: %s", sub.ID, result.Compile.Output)
			return false
		}
		actual := strings.TrimSpace(result.Run.Output)
		expected := strings.TrimSpace(tc.Output)
		if actual != expected {
			log.Printf("runner: submission %s test failed, expected %q got %q", sub.ID, expected, actual)
			return false
		}
	}
	return true
}
