package domain

import (
	"errors"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusFailed     TaskStatus = "FAILED"
)

// Statuses lists every task status in lifecycle order.
var Statuses = []TaskStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type ErrorCode string

const (
	CodeTextTooShort      ErrorCode = "TEXT_TOO_SHORT"
	CodeInternalError     ErrorCode = "INTERNAL_ERROR"
	CodeTaskNotFound      ErrorCode = "TASK_NOT_FOUND"
	CodeInvalidBody       ErrorCode = "INVALID_BODY"
	CodeInvalidURL        ErrorCode = "INVALID_URL"
	CodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	CodeSTTFailure        ErrorCode = "STT_FAILURE"
	CodeDownloadFailure   ErrorCode = "DOWNLOAD_FAILURE"
	CodeWarmupFailed      ErrorCode = "WARMUP_FAILED"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
)

// TaskError is the {code, msg} pair stored on FAILED records and echoed to clients.
type TaskError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"msg"`
}

// TaskRecord is the lifecycle state of one submitted analysis.
type TaskRecord struct {
	ID        string          `json:"taskId"`
	Status    TaskStatus      `json:"status"`
	Result    *AnalysisResult `json:"result"`
	Error     *TaskError      `json:"error"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

var (
	ErrEmptyTaskID       = errors.New("task id is required")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrResultNotTerminal = errors.New("result or error set on non-terminal task")
	ErrCompletedNoResult = errors.New("completed task requires a result and no error")
	ErrFailedNoError     = errors.New("failed task requires an error and no result")
)

// Validate checks that exactly one of Result/Error is set, and only on terminal records.
func (r TaskRecord) Validate() error {
	if r.ID == "" {
		return ErrEmptyTaskID
	}
	switch r.Status {
	case StatusPending, StatusProcessing:
		if r.Result != nil || r.Error != nil {
			return ErrResultNotTerminal
		}
	case StatusCompleted:
		if r.Result == nil || r.Error != nil {
			return ErrCompletedNoResult
		}
	case StatusFailed:
		if r.Error == nil || r.Result != nil {
			return ErrFailedNoError
		}
	default:
		return ErrInvalidStatus
	}
	return nil
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (r TaskRecord) Clone() TaskRecord {
	out := r
	if r.Result != nil {
		res := r.Result.clone()
		out.Result = &res
	}
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	return out
}
