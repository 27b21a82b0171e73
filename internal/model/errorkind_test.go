package model

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind ErrorKind
		want string
	}{
		{ErrorKindNetwork, "NetworkError"},
		{ErrorKindHTTP, "HttpError"},
		{ErrorKindInvalidContent, "InvalidContent"},
		{ErrorKindFilesystem, "FilesystemError"},
		{ErrorKindInvalidURL, "InvalidURL"},
		{ErrorKindCorruptPDF, "CorruptPdf"},
		{ErrorKindEmptyPDF, "EmptyPdf"},
		{ErrorKindUnreadable, "Unreadable"},
		{ErrorKindNoValidInput, "NoValidInput"},
		{ErrorKind(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTaskErrorRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *TaskError
		want bool
	}{
		{"network error is retryable", NewTaskError(ErrorKindNetwork, errors.New("reset")), true},
		{"503 is retryable", NewHTTPError(503), true},
		{"500 is retryable", NewHTTPError(500), true},
		{"404 is terminal", NewHTTPError(404), false},
		{"410 is terminal", NewHTTPError(410), false},
		{"invalid url is terminal", NewTaskError(ErrorKindInvalidURL, errors.New("bad")), false},
		{"filesystem is terminal", NewTaskError(ErrorKindFilesystem, errors.New("denied")), false},
		{"bad magic is terminal", NewTaskError(ErrorKindInvalidContent, errors.New("not a pdf")), false},
		{"truncated is retryable", &TaskError{Kind: ErrorKindInvalidContent, Truncated: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("expected Retryable() = %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTaskErrorError(t *testing.T) {
	t.Parallel()

	t.Run("http error includes status", func(t *testing.T) {
		t.Parallel()
		msg := NewHTTPError(503).Error()
		if !strings.HasPrefix(msg, "HttpError{503}") {
			t.Errorf("expected message to start with HttpError{503}, got %q", msg)
		}
	})

	t.Run("unwrap returns cause", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("connection reset")
		err := NewTaskError(ErrorKindNetwork, cause)
		if !errors.Is(err, cause) {
			t.Error("expected errors.Is to find the cause")
		}
	})
}
