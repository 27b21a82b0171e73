package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/pdfharvest/internal/classify"
	"github.com/nao1215/pdfharvest/internal/download"
	"github.com/nao1215/pdfharvest/internal/merge"
	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/render"
)

// DiscoverStep walks every source page and records the candidates and
// triggers found.
type DiscoverStep struct {
	walker *render.Walker
	logger *slog.Logger
}

// NewDiscoverStep creates a discovery step.
func NewDiscoverStep(walker *render.Walker, logger *slog.Logger) *DiscoverStep {
	return &DiscoverStep{walker: walker, logger: logger}
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do executes the discovery step. A source that cannot be rendered is
// logged; the step fails only when every source failed.
func (s *DiscoverStep) Do(ctx context.Context, report *model.RunReport) error {
	var errs []error
	for _, source := range report.Sources {
		d, err := s.walker.Walk(ctx, source)
		if d != nil {
			report.Candidates = append(report.Candidates, d.Links...)
			report.Triggers = append(report.Triggers, d.Triggers...)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("discovery failed", "source", source, "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) == len(report.Sources) && len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrDiscovery, errors.Join(errs...))
	}
	return nil
}

// ResolveTriggersStep turns click triggers into candidate links by
// simulating the click in the renderer.
type ResolveTriggersStep struct {
	renderer render.Renderer
	logger   *slog.Logger
}

// NewResolveTriggersStep creates a trigger resolution step.
func NewResolveTriggersStep(renderer render.Renderer, logger *slog.Logger) *ResolveTriggersStep {
	return &ResolveTriggersStep{renderer: renderer, logger: logger}
}

// Name returns the step name.
func (s *ResolveTriggersStep) Name() string {
	return "resolve_triggers"
}

// Do executes the trigger resolution step. Unresolvable triggers are counted
// and logged, never fatal.
func (s *ResolveTriggersStep) Do(ctx context.Context, report *model.RunReport) error {
	for _, trigger := range report.Triggers {
		if ctx.Err() != nil {
			return nil
		}

		target, err := s.renderer.SimulateClick(ctx, trigger)
		if err != nil {
			report.TriggersUnresolved++
			level := slog.LevelWarn
			if errors.Is(err, render.ErrClickUnsupported) {
				level = slog.LevelDebug
			}
			s.logger.Log(ctx, level, "trigger not resolved",
				"selector", trigger.Selector,
				"text", trigger.Text,
				"page", trigger.SourcePage,
				"error", err,
			)
			continue
		}

		report.TriggersResolved++
		report.Candidates = append(report.Candidates, trigger.Resolve(target))
	}

	if report.TriggersUnresolved > 0 {
		s.logger.Info("some triggers could not be resolved",
			"unresolved", report.TriggersUnresolved,
			"resolved", report.TriggersResolved,
		)
	}
	return nil
}

// ClassifyStep applies the filter policy to the discovered candidates.
type ClassifyStep struct {
	policy model.FilterPolicy
	logger *slog.Logger
}

// NewClassifyStep creates a classification step.
func NewClassifyStep(policy model.FilterPolicy, logger *slog.Logger) *ClassifyStep {
	return &ClassifyStep{policy: policy, logger: logger}
}

// Name returns the step name.
func (s *ClassifyStep) Name() string {
	return "classify"
}

// Do executes the classification step. Zero accepted candidates fails the
// run with ErrNoCandidates.
func (s *ClassifyStep) Do(_ context.Context, report *model.RunReport) error {
	report.Policy = s.policy
	report.LinksFound = len(report.Candidates)
	report.Accepted = classify.Classify(report.Candidates, s.policy)
	report.Filtered = len(report.Accepted)

	s.logger.Info("classified links",
		"policy", s.policy.Mode.String(),
		"found", report.LinksFound,
		"accepted", report.Filtered,
	)

	if report.Filtered == 0 {
		return fmt.Errorf("%w (policy %s, %d links found)", ErrNoCandidates, s.policy.Mode, report.LinksFound)
	}
	return nil
}

// DownloadStep downloads the accepted candidates.
type DownloadStep struct {
	orchestrator *download.Orchestrator
	outputDir    string
	logger       *slog.Logger
}

// NewDownloadStep creates a download step writing into outputDir.
func NewDownloadStep(orchestrator *download.Orchestrator, outputDir string, logger *slog.Logger) *DownloadStep {
	return &DownloadStep{orchestrator: orchestrator, outputDir: outputDir, logger: logger}
}

// Name returns the step name.
func (s *DownloadStep) Name() string {
	return "download"
}

// Do executes the download step. Per-task failures are recorded in the
// outcomes. Cancellation is recorded on the report and ends the run before
// the next step.
func (s *DownloadStep) Do(ctx context.Context, report *model.RunReport) error {
	report.OutputDir = s.outputDir

	outcomes, err := s.orchestrator.Run(ctx, report.Accepted)
	if outcomes != nil {
		report.Outcomes = outcomes
	}
	if err != nil {
		if ctx.Err() != nil {
			report.Cancelled = true
			s.logger.Warn("downloads cancelled",
				"finished", report.Succeeded()+report.SkippedCount(),
				"total", len(report.Accepted),
			)
			return nil
		}
		return err
	}

	s.logger.Info("downloads complete",
		"success", report.Succeeded(),
		"failed", report.FailedCount(),
		"skipped", report.SkippedCount(),
	)
	return nil
}

// MergeStep merges the files downloaded successfully in this run.
type MergeStep struct {
	merger     *merge.Merger
	outputName string
	logger     *slog.Logger
}

// NewMergeStep creates a merge step. outputName is the merged file name
// inside the run's output directory.
func NewMergeStep(merger *merge.Merger, outputName string, logger *slog.Logger) *MergeStep {
	return &MergeStep{merger: merger, outputName: outputName, logger: logger}
}

// Name returns the step name.
func (s *MergeStep) Name() string {
	return "merge"
}

// Do executes the merge step. Only Success outcomes of this run are merged;
// files skipped because they already existed belong to earlier runs.
func (s *MergeStep) Do(ctx context.Context, report *model.RunReport) error {
	if report.Cancelled {
		return nil
	}

	paths := report.SucceededPaths()
	out := merge.OutputPath(report.OutputDir, s.outputName)

	result, err := s.merger.Merge(ctx, paths, out)
	report.Merge = result
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	return nil
}
