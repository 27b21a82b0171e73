package model

import (
	"fmt"
	"time"
)

// DownloadStatus is the terminal status of a DownloadTask.
type DownloadStatus int

const (
	// StatusSuccess means a valid PDF was written to the target path.
	StatusSuccess DownloadStatus = iota

	// StatusFailed means every allowed attempt failed or a terminal error occurred.
	StatusFailed

	// StatusSkipped means the target already existed and overwrite is disabled.
	StatusSkipped
)

// String returns the report name of the status.
func (s DownloadStatus) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailed:
		return "Failed"
	case StatusSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DownloadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so reports can be read
// back.
func (s *DownloadStatus) UnmarshalText(text []byte) error {
	for v := StatusSuccess; v <= StatusSkipped; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown download status %q", text)
}

// DownloadTask is one unit of download work. TargetPath is fixed before any
// network activity so retries reuse it. Only Attempt and NextEligible change
// between attempts.
type DownloadTask struct {
	// Link is the accepted candidate this task downloads.
	Link CandidateLink `json:"link"`

	// TargetPath is the final location of the downloaded file.
	TargetPath string `json:"target_path"`

	// Attempt is the zero-based number of the current attempt.
	Attempt int `json:"attempt"`

	// NextEligible is the earliest time the next attempt may start.
	NextEligible time.Time `json:"-"`
}

// DownloadOutcome is the terminal result of one DownloadTask.
type DownloadOutcome struct {
	// Task is the task as it stood after its final attempt.
	Task DownloadTask `json:"task"`

	// Index is the position of the originating candidate in the input sequence.
	Index int `json:"index"`

	// Status is the terminal status.
	Status DownloadStatus `json:"status"`

	// Attempts is the number of attempts made. Zero for skipped tasks.
	Attempts int `json:"attempts"`

	// BytesWritten is the size of the file written by the final attempt.
	BytesWritten int64 `json:"bytes_written"`

	// Elapsed is the wall time from first attempt to terminal status.
	Elapsed time.Duration `json:"elapsed"`

	// Digest is the hex SHA3-256 of the written file, empty unless Success.
	Digest string `json:"digest,omitempty"`

	// Err is the last observed error, nil unless Failed.
	Err *TaskError `json:"error,omitempty"`
}
