package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pdfharvest/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for sharing, with a
// mermaid pie chart of the download outcomes.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFailures(md, report.Failures())
	if report.Merge != nil {
		w.writeMerge(md, report.Merge)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteMerge outputs a folder merge result in Markdown format.
func (w *MarkdownWriter) WriteMerge(result *model.MergeResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("pdfharvest Merge")
	md.PlainText("")
	w.writeMerge(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("pdfharvest Report")
	md.PlainText("")

	rows := [][]string{
		{"Run ID", "`" + report.RunID + "`"},
	}
	for _, src := range report.Sources {
		rows = append(rows, []string{"Source", src})
	}
	rows = append(rows,
		[]string{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Elapsed", report.Elapsed().Round(time.Millisecond).String()},
		[]string{"Filter Policy", report.Policy.Mode.String()},
		[]string{"Output Directory", "`" + report.OutputDir + "`"},
		[]string{"Status", statusText(report)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Links found", strconv.Itoa(report.LinksFound)},
			{"Accepted by filter", strconv.Itoa(report.Filtered)},
			{"Triggers resolved", strconv.Itoa(report.TriggersResolved)},
			{"Triggers unresolved", strconv.Itoa(report.TriggersUnresolved)},
			{"Downloaded", strconv.Itoa(report.Succeeded())},
			{"Failed", strconv.Itoa(report.FailedCount())},
			{"Skipped (already present)", strconv.Itoa(report.SkippedCount())},
		},
	})
	md.PlainText("")

	if len(report.Outcomes) > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of the download outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.RunReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Download Outcomes"),
		piechart.WithShowData(true),
	)

	if n := report.Succeeded(); n > 0 {
		chart.LabelAndIntValue("Success", uint64(n))
	}
	if n := report.FailedCount(); n > 0 {
		chart.LabelAndIntValue("Failed", uint64(n))
	}
	if n := report.SkippedCount(); n > 0 {
		chart.LabelAndIntValue("Skipped", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport) {
	switch {
	case report.ErrorMessage != "":
		md.Cautionf("The run failed: %s", report.ErrorMessage)
	case report.Cancelled:
		md.Warning("The run was cancelled. Results are partial and no merge was performed.")
	case report.FailedCount() > 0:
		md.Importantf("%d of %d download(s) failed.", report.FailedCount(), len(report.Outcomes))
	default:
		md.Tip("All accepted links were downloaded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, failures []model.Failure) {
	md.H2("Failures")
	md.PlainText("")

	if len(failures) == 0 {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(failures))
	for i, f := range failures {
		status := "-"
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		url := f.URL
		if url == "" {
			url = "-"
		}
		rows[i] = []string{
			f.Kind.String(),
			status,
			truncateString(url, 60),
			"`" + baseName(f.Path) + "`",
			truncateString(f.Message, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Status", "URL", "File", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeMerge(md *markdown.Markdown, result *model.MergeResult) {
	md.H2("Merge")
	md.PlainText("")

	if result.InputCount == 0 {
		md.Warning("No valid input; no merged file was written.")
		md.PlainText("")
	} else {
		md.Table(markdown.TableSet{
			Header: []string{"Property", "Value"},
			Rows: [][]string{
				{"Output", "`" + result.OutputPath + "`"},
				{"Inputs", strconv.Itoa(result.InputCount)},
				{"Pages", strconv.Itoa(result.TotalPages)},
				{"Size", humanize.IBytes(uint64(max(result.TotalBytes, 0)))},
				{"Deleted sources", strconv.Itoa(len(result.Deleted))},
			},
		})
		md.PlainText("")

		inputs := make([]string, len(result.Inputs))
		for i, in := range result.Inputs {
			inputs[i] = baseName(in)
		}
		md.Details("Inputs in merge order", joinLines(inputs))
		md.PlainText("")
	}

	if len(result.Skipped) > 0 {
		md.H3("Skipped Inputs")
		md.PlainText("")
		rows := make([][]string, len(result.Skipped))
		for i, s := range result.Skipped {
			rows[i] = []string{"`" + baseName(s.Path) + "`", s.Reason.String(), truncateString(s.Detail, 60)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"File", "Reason", "Detail"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	for _, d := range result.DeletionFailures {
		md.Warningf("Could not delete %s: %s", d.Path, d.Error)
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pdfharvest](https://github.com/nao1215/pdfharvest)*")
}

// joinLines renders lines as a numbered list.
func joinLines(lines []string) string {
	numbered := make([]string, len(lines))
	for i, l := range lines {
		numbered[i] = strconv.Itoa(i+1) + ". " + l
	}
	return strings.Join(numbered, "\n")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
