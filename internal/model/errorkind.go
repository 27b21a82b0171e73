package model

import (
	"fmt"
	"net/http"
)

// ErrorKind is the closed classification of failure causes. It drives
// retry decisions in the download orchestrator and is shown in reports.
type ErrorKind int

const (
	// ErrorKindNone means no error occurred.
	ErrorKindNone ErrorKind = iota

	// ErrorKindNetwork covers connect failures, timeouts and resets. Retryable.
	ErrorKindNetwork

	// ErrorKindHTTP is a non-2xx response. Retryable only for 5xx.
	ErrorKindHTTP

	// ErrorKindInvalidContent is a magic-header or length mismatch.
	ErrorKindInvalidContent

	// ErrorKindFilesystem covers permission and disk space errors. Terminal.
	ErrorKindFilesystem

	// ErrorKindInvalidURL is a URL that cannot be requested. Terminal.
	ErrorKindInvalidURL

	// ErrorKindCorruptPDF marks a merge input that is not a well-formed PDF.
	ErrorKindCorruptPDF

	// ErrorKindEmptyPDF marks a merge input with zero pages.
	ErrorKindEmptyPDF

	// ErrorKindUnreadable marks a merge input that cannot be opened or is encrypted.
	ErrorKindUnreadable

	// ErrorKindNoValidInput means a merge run had zero valid units.
	ErrorKindNoValidInput

	// ErrorKindCancelled marks a task that never started because the run was cancelled.
	ErrorKindCancelled
)

// String returns the report name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "None"
	case ErrorKindNetwork:
		return "NetworkError"
	case ErrorKindHTTP:
		return "HttpError"
	case ErrorKindInvalidContent:
		return "InvalidContent"
	case ErrorKindFilesystem:
		return "FilesystemError"
	case ErrorKindInvalidURL:
		return "InvalidURL"
	case ErrorKindCorruptPDF:
		return "CorruptPdf"
	case ErrorKindEmptyPDF:
		return "EmptyPdf"
	case ErrorKindUnreadable:
		return "Unreadable"
	case ErrorKindNoValidInput:
		return "NoValidInput"
	case ErrorKindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so reports can be read
// back.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for v := ErrorKindNone; v <= ErrorKindCancelled; v++ {
		if v.String() == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// TaskError is the typed error recorded in a DownloadOutcome.
type TaskError struct {
	// Kind classifies the failure.
	Kind ErrorKind `json:"kind"`

	// StatusCode is set for ErrorKindHTTP.
	StatusCode int `json:"status_code,omitempty"`

	// Truncated marks InvalidContent caused by a stream that ended before
	// the announced length. Truncation is retryable; a bad magic header is not.
	Truncated bool `json:"truncated,omitempty"`

	// Message is the human-readable cause.
	Message string `json:"message"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// NewTaskError creates a TaskError of the given kind wrapping err.
func NewTaskError(kind ErrorKind, err error) *TaskError {
	te := &TaskError{Kind: kind, Err: err}
	if err != nil {
		te.Message = err.Error()
	}
	return te
}

// NewHTTPError creates an ErrorKindHTTP TaskError for status.
func NewHTTPError(status int) *TaskError {
	return &TaskError{
		Kind:       ErrorKindHTTP,
		StatusCode: status,
		Message:    fmt.Sprintf("unexpected status %d %s", status, http.StatusText(status)),
	}
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.Kind == ErrorKindHTTP {
		return fmt.Sprintf("%s{%d}: %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *TaskError) Retryable() bool {
	switch e.Kind {
	case ErrorKindNetwork:
		return true
	case ErrorKindHTTP:
		return e.StatusCode >= http.StatusInternalServerError
	case ErrorKindInvalidContent:
		return e.Truncated
	default:
		return false
	}
}
