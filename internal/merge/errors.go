package merge

import "errors"

var (
	// ErrNoValidInput is returned when no input passes validation.
	ErrNoValidInput = errors.New("no valid PDF input to merge")

	// ErrOutputExists is returned when the output file exists and force is off.
	ErrOutputExists = errors.New("output file already exists")

	// ErrWriteOutput is returned when the merged file cannot be written.
	ErrWriteOutput = errors.New("failed to write merged output")

	// ErrNotDirectory is returned when a folder merge target is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrUnknownOrder is returned by ParseOrder for unsupported values.
	ErrUnknownOrder = errors.New("unknown merge order")
)
