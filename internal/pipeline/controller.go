package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/pdfharvest/internal/download"
	"github.com/nao1215/pdfharvest/internal/merge"
	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/render"
)

// Options is the immutable run configuration handed to the controller.
// Nothing in the core reads process state; everything comes from here.
type Options struct {
	// Policy selects which discovered links are downloaded.
	Policy model.FilterPolicy

	// OutputDir receives the downloaded files.
	OutputDir string

	// Concurrency, RetryLimit and ChunkSize tune the orchestrator.
	Concurrency int
	RetryLimit  int
	ChunkSize   int

	// Overwrite re-downloads files that already exist.
	Overwrite bool

	// Backoff is the retry delay policy.
	Backoff download.Backoff

	// MaxDepth, MaxPages and PageDelay bound the same-site walk.
	MaxDepth  int
	MaxPages  int
	PageDelay time.Duration

	// Merge enables the merge step after downloading.
	Merge bool

	// DeleteSources removes merged inputs after a successful merge.
	DeleteSources bool

	// MergeOutputName is the merged file name; empty means the default.
	MergeOutputName string

	// MergeOrder selects the concatenation order.
	MergeOrder merge.Order

	// ForceMerge lets MergeFolder replace an existing merged file. A crawl
	// always replaces the merged file it produces.
	ForceMerge bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Policy:          model.ChartPrefixPolicy(),
		OutputDir:       "downloads",
		Concurrency:     download.DefaultConcurrency,
		RetryLimit:      download.DefaultRetryLimit,
		ChunkSize:       download.DefaultChunkSize,
		Backoff:         download.DefaultBackoff(),
		MaxPages:        20,
		MergeOutputName: merge.DefaultOutputName,
	}
}

// Controller sequences discovery, trigger resolution, classification,
// download and the optional merge. It is the only component that talks to
// the renderer.
type Controller struct {
	renderer      render.Renderer
	client        *http.Client
	opts          Options
	clock         download.Clock
	observer      download.Observer
	mergeObserver merge.Observer
	progress      download.ProgressFunc
	logger        *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock sets the clock used for download backoff.
func WithClock(c download.Clock) ControllerOption {
	return func(ctl *Controller) {
		ctl.clock = c
	}
}

// WithDownloadObserver registers a download event observer.
func WithDownloadObserver(obs download.Observer) ControllerOption {
	return func(ctl *Controller) {
		ctl.observer = obs
	}
}

// WithMergeObserver registers a merge observer.
func WithMergeObserver(obs merge.Observer) ControllerOption {
	return func(ctl *Controller) {
		ctl.mergeObserver = obs
	}
}

// WithProgress registers a per-download progress callback.
func WithProgress(fn download.ProgressFunc) ControllerOption {
	return func(ctl *Controller) {
		ctl.progress = fn
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(ctl *Controller) {
		ctl.logger = logger
	}
}

// NewController creates a Controller. client is used for downloads; the
// renderer fetches pages with its own transport.
func NewController(renderer render.Renderer, client *http.Client, opts Options, ctlOpts ...ControllerOption) *Controller {
	ctl := &Controller{
		renderer: renderer,
		client:   client,
		opts:     opts,
	}

	for _, opt := range ctlOpts {
		opt(ctl)
	}

	if ctl.logger == nil {
		ctl.logger = slog.Default()
	}

	return ctl
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Crawl runs the full sequence for sources and returns the report. The
// report is always returned, also on failure; the error is the run-level
// failure recorded in it. Partial download failures are not errors.
func (c *Controller) Crawl(ctx context.Context, sources ...string) (*model.RunReport, error) {
	return c.crawl(ctx, c.opts.OutputDir, sources...)
}

func (c *Controller) crawl(ctx context.Context, outputDir string, sources ...string) (*model.RunReport, error) {
	report := model.NewRunReport(NewRunID(), sources...)
	report.Policy = c.opts.Policy
	report.OutputDir = outputDir

	if len(sources) == 0 {
		report.SetError(ErrNoSources)
		report.Finish()
		return report, ErrNoSources
	}

	p := c.buildPipeline(outputDir)
	err := p.Execute(ctx, report)
	report.Finish()

	c.logger.Info("run finished",
		"run_id", report.RunID,
		"links_found", report.LinksFound,
		"filtered", report.Filtered,
		"success", report.Succeeded(),
		"failed", report.FailedCount(),
		"skipped", report.SkippedCount(),
		"cancelled", report.Cancelled,
		"elapsed", report.Elapsed(),
	)

	return report, err
}

func (c *Controller) buildPipeline(outputDir string) *Pipeline {
	walker := render.NewWalker(c.renderer,
		render.WithMaxDepth(c.opts.MaxDepth),
		render.WithMaxPages(c.opts.MaxPages),
		render.WithDelay(c.opts.PageDelay),
		render.WithWalkerLogger(c.logger),
	)

	dlOpts := []download.Option{
		download.WithConcurrency(c.opts.Concurrency),
		download.WithRetryLimit(c.opts.RetryLimit),
		download.WithChunkSize(c.opts.ChunkSize),
		download.WithOverwrite(c.opts.Overwrite),
		download.WithBackoff(c.opts.Backoff),
		download.WithLogger(c.logger),
	}
	if c.clock != nil {
		dlOpts = append(dlOpts, download.WithClock(c.clock))
	}
	if c.observer != nil {
		dlOpts = append(dlOpts, download.WithObserver(c.observer))
	}
	if c.progress != nil {
		dlOpts = append(dlOpts, download.WithProgress(c.progress))
	}
	orchestrator := download.New(c.client, outputDir, dlOpts...)

	p := New(WithLogger(c.logger))
	p.AddSteps(
		NewDiscoverStep(walker, c.logger),
		NewResolveTriggersStep(c.renderer, c.logger),
		NewClassifyStep(c.opts.Policy, c.logger),
		NewDownloadStep(orchestrator, outputDir, c.logger),
	)
	if c.opts.Merge {
		// The merged file of a crawl belongs to the run and is always replaced.
		p.AddStep(NewMergeStep(c.newMerger(true), c.opts.MergeOutputName, c.logger))
	}
	return p
}

func (c *Controller) newMerger(force bool) *merge.Merger {
	return merge.New(
		merge.WithDeleteSources(c.opts.DeleteSources),
		merge.WithForce(force),
		merge.WithOrder(c.opts.MergeOrder),
		merge.WithObserver(c.mergeObserver),
		merge.WithLogger(c.logger),
	)
}

// MergeFolder merges the PDFs directly inside dir into the configured
// output file in the same directory. keywords restrict the inputs to names
// containing one of them.
func (c *Controller) MergeFolder(ctx context.Context, dir string, keywords ...string) (*model.MergeResult, error) {
	out := merge.OutputPath(dir, c.opts.MergeOutputName)
	return c.newMerger(c.opts.ForceMerge).MergeDir(ctx, dir, out, keywords...)
}
