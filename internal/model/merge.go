package model

import "fmt"

// MergeUnit is one validated input file of a merge run. It lives only for
// the duration of a single merge.
type MergeUnit struct {
	// Path is the file's location on disk.
	Path string `json:"path"`

	// PageCount is the number of pages found during validation.
	PageCount int `json:"page_count"`

	// OrderKey determines the concatenation order. It defaults to the
	// lower-cased file name and is compared with natural ordering.
	OrderKey string `json:"order_key"`
}

// SkipReason explains why a merge input was excluded.
type SkipReason int

const (
	// SkipCorrupt means the file is not a structurally valid PDF.
	SkipCorrupt SkipReason = iota

	// SkipEmpty means the PDF has zero pages or the file is empty.
	SkipEmpty

	// SkipUnreadable means the file could not be opened or is encrypted.
	SkipUnreadable
)

// String returns the report name of the reason.
func (r SkipReason) String() string {
	switch r {
	case SkipCorrupt:
		return "Corrupt"
	case SkipEmpty:
		return "Empty"
	case SkipUnreadable:
		return "Unreadable"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r SkipReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so reports can be read
// back.
func (r *SkipReason) UnmarshalText(text []byte) error {
	for v := SkipCorrupt; v <= SkipUnreadable; v++ {
		if v.String() == string(text) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown skip reason %q", text)
}

// ErrorKind maps the skip reason onto the error taxonomy.
func (r SkipReason) ErrorKind() ErrorKind {
	switch r {
	case SkipCorrupt:
		return ErrorKindCorruptPDF
	case SkipEmpty:
		return ErrorKindEmptyPDF
	default:
		return ErrorKindUnreadable
	}
}

// SkippedUnit records a merge input that failed validation.
type SkippedUnit struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// DeletionFailure records a source file that could not be removed after a
// successful merge.
type DeletionFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// MergeResult is produced once per merge invocation.
type MergeResult struct {
	// OutputPath is the written merged file.
	OutputPath string `json:"output_path"`

	// TotalPages is counted from the written output.
	TotalPages int `json:"total_pages"`

	// InputCount is the number of units that passed validation.
	InputCount int `json:"input_count"`

	// TotalBytes is the size of the written output.
	TotalBytes int64 `json:"total_bytes"`

	// Inputs lists the contributing files in concatenation order.
	Inputs []string `json:"inputs"`

	// Skipped lists invalid inputs in the order they were encountered.
	Skipped []SkippedUnit `json:"skipped"`

	// Deleted lists source files removed after the merge.
	Deleted []string `json:"deleted,omitempty"`

	// DeletionFailures lists source files that could not be removed.
	DeletionFailures []DeletionFailure `json:"deletion_failures,omitempty"`
}

// MergeState is a state of a merge run.
type MergeState int

const (
	MergeCollecting MergeState = iota
	MergeValidating
	MergeConcatenating
	MergeWriting
	MergeCleanup
	MergeDone
	MergeFailed
)

// String returns the state name.
func (s MergeState) String() string {
	switch s {
	case MergeCollecting:
		return "Collecting"
	case MergeValidating:
		return "Validating"
	case MergeConcatenating:
		return "Concatenating"
	case MergeWriting:
		return "Writing"
	case MergeCleanup:
		return "Cleanup"
	case MergeDone:
		return "Done"
	case MergeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
