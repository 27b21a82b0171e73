// Package report renders run reports and merge results.
//
// Writers for three formats implement the Writer interface:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with a mermaid chart of download outcomes
//
// Writers only read model.RunReport and model.MergeResult; they never
// influence the run itself.
package report
