package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/naming"
)

// BatchProcessor crawls several sources concurrently, one run per source.
// Each run writes into its own subdirectory of the output directory, named
// after the source host, so file name claims never cross runs.
type BatchProcessor struct {
	// controller executes each run.
	controller *Controller

	// concurrency is the maximum number of concurrent runs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed run reports.
	// Access is synchronized via mutex.
	results []*model.RunReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Default is 2 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor running on controller.
func NewBatchProcessor(controller *Controller, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		controller:  controller,
		concurrency: 2,
		results:     make([]*model.RunReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// SourceDirs returns the per-source output directories under baseDir, in
// source order. Names are derived from the source host and port and are
// distinct.
func SourceDirs(baseDir string, sources []string) []string {
	claimer := naming.NewClaimer()
	dirs := make([]string, len(sources))
	for i, source := range sources {
		name := ""
		if u, err := url.Parse(source); err == nil {
			// Dots become underscores so Claim sees no extension.
			name = strings.ReplaceAll(naming.Sanitize(u.Host), ".", "_")
		}
		if name == "" {
			name = "site"
		}
		dirs[i] = claimer.Claim(baseDir, name)
	}
	return dirs
}

// ProcessBatch crawls every source and returns one report per source, in
// source order. Runs that fail keep their error in their report; the error
// return is set only when the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sources []string) ([]*model.RunReport, error) {
	return bp.process(ctx, sources, nil)
}

// ProcessBatchWithCallback is ProcessBatch with a callback invoked as each
// run completes. The callback is called from the goroutine that ran the
// crawl, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	sources []string,
	callback func(report *model.RunReport, index int),
) error {
	_, err := bp.process(ctx, sources, callback)
	return err
}

func (bp *BatchProcessor) process(
	ctx context.Context,
	sources []string,
	callback func(report *model.RunReport, index int),
) ([]*model.RunReport, error) {
	bp.logger.Info("starting batch processing",
		"total_sources", len(sources),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	dirs := SourceDirs(bp.controller.opts.OutputDir, sources)

	// Pre-allocate results slice to maintain order
	bp.mu.Lock()
	bp.results = make([]*model.RunReport, len(sources))
	bp.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, source := range sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			bp.logger.Info("crawling source",
				"source", source,
				"index", i+1,
				"total", len(sources),
				"dir", dirs[i],
			)

			report, err := bp.controller.crawl(ctx, dirs[i], source)

			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("run failed", "source", source, "error", err)
			}
			if callback != nil {
				callback(report, i)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // runs never return errors; cancellation is checked below

	bp.logger.Info("batch processing complete",
		"total_sources", len(sources),
		"elapsed", time.Since(startTime),
	)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, ctx.Err()
}
