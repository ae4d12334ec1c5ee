package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Task records one asynchronous processing attempt.
//
// Lifecycle: QUEUED -> STARTED -> DONE | FAILED. DONE and FAILED are terminal;
// a terminal task is never reopened.
type Task struct {
	JobID   string          `json:"job_id"`
	Status  Status          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Service string          `json:"service"`
	Result  json.RawMessage `json:"result,omitempty"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

type Status string

const (
	StatusQueued  Status = "QUEUED"
	StatusStarted Status = "STARTED"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusStarted, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

func (t Task) Terminal() bool { return t.Status.Terminal() }

// URL is the locator handed back to API clients for polling.
func (t Task) URL() string { return URL(t.JobID) }

func URL(jobID string) string { return fmt.Sprintf("/task/%s", jobID) }

var (
	ErrNotFound      = errors.New("tasks: not found")
	ErrInvalidJobID  = errors.New("tasks: job_id required")
	ErrTaskTerminal  = errors.New("tasks: task already finished")
	ErrLocked        = errors.New("tasks: job is being processed elsewhere")
	ErrInvalidStatus = errors.New("tasks: invalid status")
)
