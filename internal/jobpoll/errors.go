package jobpoll

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingTaskID is returned when a submit response carries no task id.
	ErrMissingTaskID = errors.New("jobpoll: task id missing from submit response")
	// ErrResultMissing is returned when a job completed without any result URL.
	ErrResultMissing = errors.New("jobpoll: completed job has no result url")
	// ErrJobFailed matches every *JobFailedError.
	ErrJobFailed = errors.New("jobpoll: job failed")
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("jobpoll: job did not finish in time")
)

// TransportError reports a failed HTTP exchange: a network error or a
// non-2xx response.
type TransportError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: status %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// JobFailedError carries the provider's own status and message.
type JobFailedError struct {
	Provider string
	TaskID   string
	Status   string
	Message  string
}

func (e *JobFailedError) Error() string {
	msg := fmt.Sprintf("%s: task %s failed with status %q", e.Provider, e.TaskID, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

// TimeoutError is returned once every poll attempt saw a non-terminal status.
type TimeoutError struct {
	Provider   string
	TaskID     string
	Attempts   int
	Waited     time.Duration
	LastStatus string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: task %s still %q after %d attempts (%s)", e.Provider, e.TaskID, e.LastStatus, e.Attempts, e.Waited)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
