package services

import (
	"errors"
	"fmt"

	"github.com/imyme/imyme-ai/pkg/domain"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidInput = errors.New("invalid input")
)

// CodedError carries the client-facing error code alongside the cause.
type CodedError struct {
	Code    domain.ErrorCode
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error { return e.Err }

func (e *CodedError) TaskError() domain.TaskError {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return domain.TaskError{Code: e.Code, Message: msg}
}

func coded(code domain.ErrorCode, msg string, err error) *CodedError {
	return &CodedError{Code: code, Message: msg, Err: err}
}
