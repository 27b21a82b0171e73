package download

import "errors"

var (
	// ErrOutputDir is returned when the base output directory cannot be
	// created. No task is started in that case.
	ErrOutputDir = errors.New("cannot prepare output directory")

	// errNotPDF marks a stream that does not start with the PDF magic header.
	errNotPDF = errors.New("content does not start with %PDF-")

	// errLengthMismatch marks a stream whose size differs from Content-Length.
	errLengthMismatch = errors.New("content length mismatch")
)
