package submission

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the execution state of a submitted solution.
type Status int

const (
	New Status = iota + 1
	InProcess
	Passed
	Failed
)

var statusNames = map[Status]string{
	New:       "new",
	InProcess: "in_process",
	Passed:    "ok",
	Failed:    "failed",
}

var statusFromName = map[string]Status{
	"new":        New,
	"in_process": InProcess,
	"ok":         Passed,
	"failed":     Failed,
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if v, ok := statusFromName[str]; ok {
		*s = v
	}
	return nil
}

func (s Status) Value() (driver.Value, error) { return s.String(), nil }

func (s *Status) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = statusFromName[v]
	case []byte:
		*s = statusFromName[string(v)]
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}
	return nil
}

// Submission is a team's attempt at a task. Created as New when the elder
// submits; the execution runner moves it through InProcess to Passed or
// Failed and records how long the run took.
type Submission struct {
	ID             string        `json:"id" db:"id"`
	TeamID         int           `json:"teamId" db:"team_id"`
	TaskID         int           `json:"taskId" db:"task_id"`
	Code           string        `json:"code" db:"code"`
	Language       string        `json:"language" db:"language"`
	Status         Status        `json:"status" db:"status"`
	SubmittedAt    time.Time     `json:"submittedAt" db:"submitted_at"`
	CompletionTime time.Duration `json:"completionTimeNs" db:"completion_time"`
}

// Store persists submissions. Get returns (nil, nil) when the id is
// unknown; the caller decides whether that is a not-found error.
type Store interface {
	Create(ctx context.Context, sub *Submission) error
	Update(ctx context.Context, sub *Submission) error
	Get(ctx context.Context, id string) (*Submission, error)
	ByTeam(ctx context.Context, teamID int) ([]Submission, error)
}
