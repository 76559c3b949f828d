package remotejob

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCommunication   = errors.New("remote job communication error")
	ErrRemoteExecution = errors.New("remote job execution failed")
	ErrTimeout         = errors.New("remote job timed out")
	ErrNotConfigured   = errors.New("remote job endpoint not configured")
)

// CommunicationError covers transport failures, non-2xx responses and
// undecodable bodies on either the run or the status call.
type CommunicationError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *CommunicationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote job %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote job %s: %v", e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() []error { return []error{ErrCommunication, e.Err} }

// ExecutionError means the endpoint accepted the job and reported FAILED.
type ExecutionError struct {
	JobID  string
	Detail string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("remote job %s failed: %s", e.JobID, e.Detail)
}

func (e *ExecutionError) Unwrap() error { return ErrRemoteExecution }

type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
	Polls   int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("remote job %s timed out after %s (%d polls)", e.JobID, e.Elapsed.Round(time.Millisecond), e.Polls)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
