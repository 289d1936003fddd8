// Package chatlaberrors defines the typed error surface returned across
// the worker request boundary: pre-built sentinel values plus a
// classifier that maps internal Go errors onto the fixed code set.
package chatlaberrors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// Code is one of the fixed wire-level error codes.
type Code string

const (
	CodeUnrecognizedFormat Code = "unrecognized_format"
	CodeMixedPlatforms     Code = "mixed_platforms"
	CodeIOError            Code = "io_error"
	CodeParseError         Code = "parse_error"
	CodeMigrationRequired  Code = "migration_required"
	CodeCancelled          Code = "cancelled"
	CodeSQLError           Code = "sql_error"
	CodeNotFound           Code = "not_found"
)

// Error is the structured error surfaced to callers of the worker host.
type Error struct {
	Code      Code
	Message   string
	Diagnosis *model.Diagnosis
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ToWorkerError converts to the wire-level model.WorkerError.
func (e *Error) ToWorkerError() *model.WorkerError {
	if e == nil {
		return nil
	}
	return &model.WorkerError{Code: string(e.Code), Message: e.Message, Diagnosis: e.Diagnosis}
}

// New builds a plain coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a plain coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// UnrecognizedFormat builds the error carrying the sniffer's diagnosis.
func UnrecognizedFormat(diagnosis *model.Diagnosis) *Error {
	return &Error{
		Code:      CodeUnrecognizedFormat,
		Message:   "no registered format matched this file",
		Diagnosis: diagnosis,
	}
}

// MixedPlatforms is returned by the merger when sources disagree on platform.
var MixedPlatforms = &Error{
	Code:    CodeMixedPlatforms,
	Message: "sources being merged report more than one platform",
}

// Cancelled is returned when an abort signal interrupts a long request.
var Cancelled = &Error{
	Code:    CodeCancelled,
	Message: "operation cancelled",
}

// NotFound builds a not_found error for a missing session/member/etc.
func NotFound(what string) *Error {
	return Newf(CodeNotFound, "%s not found", what)
}

// Classify maps a generic Go error onto the fixed code set. It returns the
// error unchanged if it is already a *Error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("row")
	}
	return &Error{Code: CodeIOError, Message: err.Error()}
}
