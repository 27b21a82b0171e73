package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/pdfharvest/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose lists every download outcome, not only the failures.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeDiscovery(&sb, report)
	w.writeDownloads(&sb, report)
	w.writeFailures(&sb, report.Failures())
	if report.Merge != nil {
		w.writeMerge(&sb, report.Merge)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteMerge outputs a folder merge result in human-readable format.
func (w *SimpleWriter) WriteMerge(result *model.MergeResult) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	w.writeMerge(&sb, result)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                        PDFHARVEST REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:         %s\n", report.RunID)
	for i, src := range report.Sources {
		label := "Source:"
		if i > 0 {
			label = ""
		}
		fmt.Fprintf(sb, "%-16s%s\n", label, src)
	}
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:        %s\n", report.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeDiscovery(sb *strings.Builder, report *model.RunReport) {
	w.writeSection(sb, "DISCOVERY")

	policy := report.Policy.Mode.String()
	if len(report.Policy.Keywords) > 0 {
		policy += " (" + strings.Join(report.Policy.Keywords, ", ") + ")"
	}

	fmt.Fprintf(sb, "  Filter policy:        %s\n", policy)
	fmt.Fprintf(sb, "  Links found:          %d\n", report.LinksFound)
	fmt.Fprintf(sb, "  Accepted:             %d\n", report.Filtered)
	if report.TriggersResolved+report.TriggersUnresolved > 0 || w.showEmpty {
		fmt.Fprintf(sb, "  Triggers resolved:    %d\n", report.TriggersResolved)
		fmt.Fprintf(sb, "  Triggers unresolved:  %d\n", report.TriggersUnresolved)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDownloads(sb *strings.Builder, report *model.RunReport) {
	if len(report.Outcomes) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "DOWNLOADS")

	var total int64
	for _, o := range report.Outcomes {
		total += o.BytesWritten
	}

	fmt.Fprintf(sb, "  Output directory:  %s\n", report.OutputDir)
	fmt.Fprintf(sb, "  Success:           %d\n", report.Succeeded())
	fmt.Fprintf(sb, "  Failed:            %d\n", report.FailedCount())
	fmt.Fprintf(sb, "  Skipped:           %d\n", report.SkippedCount())
	fmt.Fprintf(sb, "  Downloaded:        %s\n", humanize.IBytes(uint64(max(total, 0))))
	sb.WriteString("\n")

	if !w.verbose {
		return
	}
	for _, o := range report.Outcomes {
		fmt.Fprintf(sb, "  [%-7s] %s\n", o.Status, displayName(o))
		fmt.Fprintf(sb, "            %s\n", o.Task.Link.URL)
		if o.Status == model.StatusSuccess {
			fmt.Fprintf(sb, "            %s in %s, %d attempt(s)\n",
				humanize.IBytes(uint64(max(o.BytesWritten, 0))), o.Elapsed.Round(time.Millisecond), o.Attempts)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, failures []model.Failure) {
	if len(failures) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "FAILURES")

	if len(failures) == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}

	for _, f := range failures {
		kind := f.Kind.String()
		if f.StatusCode != 0 {
			kind = fmt.Sprintf("%s %d", kind, f.StatusCode)
		}
		fmt.Fprintf(sb, "  [!] %s: %s\n", kind, f.Message)
		if f.URL != "" {
			fmt.Fprintf(sb, "      URL:  %s\n", f.URL)
		}
		fmt.Fprintf(sb, "      Path: %s\n", f.Path)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeMerge(sb *strings.Builder, result *model.MergeResult) {
	w.writeSection(sb, "MERGE")

	if result.OutputPath == "" || result.InputCount == 0 {
		sb.WriteString("  No merged file written\n")
	} else {
		fmt.Fprintf(sb, "  Output:       %s\n", result.OutputPath)
		fmt.Fprintf(sb, "  Inputs:       %d\n", result.InputCount)
		fmt.Fprintf(sb, "  Pages:        %d\n", result.TotalPages)
		fmt.Fprintf(sb, "  Size:         %s\n", humanize.IBytes(uint64(max(result.TotalBytes, 0))))
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(sb, "  Skipped:      %d\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Fprintf(sb, "    - %s (%s)\n", filepath.Base(s.Path), s.Reason)
		}
	}
	if len(result.Deleted) > 0 {
		fmt.Fprintf(sb, "  Deleted:      %d source file(s)\n", len(result.Deleted))
	}
	for _, d := range result.DeletionFailures {
		fmt.Fprintf(sb, "  [!] could not delete %s: %s\n", d.Path, d.Error)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by pdfharvest\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func baseName(path string) string {
	return filepath.Base(path)
}
