// Package merge concatenates PDF files into one document in a
// deterministic order.
//
// A merge run moves through the states Collecting, Validating,
// Concatenating, Writing, an optional Cleanup, and Done. Each input is
// validated with pdfcpu before it is used; invalid inputs are skipped with a
// reason (Corrupt, Empty, Unreadable) instead of failing the run. The run
// fails only when no input is valid or the output cannot be written.
//
// Inputs are sorted by a case-insensitive, numeric-aware file name order, so
// the output does not depend on the order in which downloads completed.
//
// # Usage
//
//	m := merge.New(merge.WithDeleteSources(true))
//	result, err := m.MergeDir(ctx, "downloads", merge.OutputPath("downloads", ""))
package merge
