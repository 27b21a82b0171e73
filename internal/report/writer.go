package report

import (
	"io"

	"github.com/nao1215/pdfharvest/internal/model"
)

// Writer defines the interface for report output.
// Implementations write run results in various formats.
type Writer interface {
	// Write outputs a crawl run report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)

	// WriteMerge outputs the result of a standalone folder merge.
	WriteMerge(result *model.MergeResult) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteMerge outputs the merge result to all configured Writers.
func (m *MultiWriter) WriteMerge(result *model.MergeResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteMerge(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText returns a one-line status for the run.
func statusText(report *model.RunReport) string {
	switch {
	case report.Cancelled:
		return "CANCELLED (partial results)"
	case report.ErrorMessage != "":
		return "FAILED - " + report.ErrorMessage
	case report.FailedCount() > 0:
		return "Complete with failures"
	default:
		return "Complete"
	}
}

// displayName is the file name shown for an outcome.
func displayName(o model.DownloadOutcome) string {
	if o.Task.TargetPath != "" {
		return baseName(o.Task.TargetPath)
	}
	return o.Task.Link.URL
}
