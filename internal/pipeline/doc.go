// Package pipeline sequences a harvesting run.
//
// A run is a Pipeline of Steps that share one model.RunReport:
//
//	discover -> resolve_triggers -> classify -> download -> merge (optional)
//
// The Controller builds that pipeline from an immutable Options value and
// is the only component that talks to the page renderer. Cancellation is
// checked between steps, so a cancelled run never reaches the merge step.
//
// BatchProcessor runs several sources concurrently with errgroup, one run
// and one output subdirectory per source.
package pipeline
