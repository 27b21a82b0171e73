package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/pdfharvest/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is stamped into every document when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps the tool version into the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONSummary holds the derived counters of a run.
type JSONSummary struct {
	LinksFound         int     `json:"links_found"`
	Filtered           int     `json:"filtered"`
	TriggersResolved   int     `json:"triggers_resolved"`
	TriggersUnresolved int     `json:"triggers_unresolved"`
	Success            int     `json:"success"`
	Failed             int     `json:"failed"`
	Skipped            int     `json:"skipped"`
	ElapsedSeconds     float64 `json:"elapsed_seconds"`
}

// JSONReport wraps a run report with its summary and failure listing.
type JSONReport struct {
	// Version is the pdfharvest version that generated this report.
	Version string `json:"version,omitempty"`

	// Summary holds the derived counters.
	Summary JSONSummary `json:"summary"`

	// Failures enumerates every failed download and skipped merge input.
	Failures []model.Failure `json:"failures"`

	// Report is the full run report.
	Report *model.RunReport `json:"report"`
}

// NewJSONReport creates a JSONReport wrapper for report.
func NewJSONReport(report *model.RunReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: JSONSummary{
			LinksFound:         report.LinksFound,
			Filtered:           report.Filtered,
			TriggersResolved:   report.TriggersResolved,
			TriggersUnresolved: report.TriggersUnresolved,
			Success:            report.Succeeded(),
			Failed:             report.FailedCount(),
			Skipped:            report.SkippedCount(),
			ElapsedSeconds:     report.Elapsed().Round(time.Millisecond).Seconds(),
		},
		Failures: report.Failures(),
		Report:   report,
	}
}

// jsonMerge wraps a folder merge result.
type jsonMerge struct {
	Version string             `json:"version,omitempty"`
	Merge   *model.MergeResult `json:"merge"`
}

// Write outputs the run report in JSON format.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}

// WriteMerge outputs a folder merge result in JSON format.
func (w *JSONWriter) WriteMerge(result *model.MergeResult) (int, error) {
	return w.writeJSON(jsonMerge{Version: w.version, Merge: result})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
