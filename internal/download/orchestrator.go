// Package download executes a finite set of PDF downloads with bounded
// concurrency, per-task retry with exponential backoff, and a typed outcome
// for every task.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/naming"
)

// Default orchestrator settings.
const (
	DefaultConcurrency = 8
	DefaultRetryLimit  = 3
	DefaultChunkSize   = 8192
)

// Observer receives download events. The metrics package implements it.
type Observer interface {
	// ObserveAttempt is called before every network attempt.
	ObserveAttempt()

	// ObserveOutcome is called once per terminal outcome.
	ObserveOutcome(outcome model.DownloadOutcome)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt()                       {}
func (nopObserver) ObserveOutcome(_ model.DownloadOutcome) {}

// ProgressFunc is called after each outcome with the number of finished
// tasks and the total. Calls are serialized.
type ProgressFunc func(done, total int, outcome model.DownloadOutcome)

// Orchestrator runs download tasks on a bounded worker pool.
type Orchestrator struct {
	client      *http.Client
	baseDir     string
	concurrency int
	retryLimit  int
	chunkSize   int
	overwrite   bool
	backoff     Backoff
	clock       Clock
	observer    Observer
	progress    ProgressFunc
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets the maximum number of tasks running in parallel.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.concurrency = n
		}
	}
}

// WithRetryLimit sets how many retries follow the first attempt.
// Negative values are ignored.
func WithRetryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.retryLimit = n
		}
	}
}

// WithChunkSize sets the copy buffer size in bytes.
func WithChunkSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithOverwrite makes existing target files be downloaded again instead of
// being skipped.
func WithOverwrite(overwrite bool) Option {
	return func(o *Orchestrator) {
		o.overwrite = overwrite
	}
}

// WithBackoff sets the retry backoff policy.
func WithBackoff(b Backoff) Option {
	return func(o *Orchestrator) {
		o.backoff = b
	}
}

// WithClock sets the clock used for backoff scheduling.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an Orchestrator that downloads into baseDir using client.
func New(client *http.Client, baseDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:      client,
		baseDir:     baseDir,
		concurrency: DefaultConcurrency,
		retryLimit:  DefaultRetryLimit,
		chunkSize:   DefaultChunkSize,
		backoff:     DefaultBackoff(),
		clock:       RealClock(),
		observer:    nopObserver{},
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		o.client = http.DefaultClient
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// Plan builds one DownloadTask per candidate. Target paths are derived and
// claimed here, before any network activity, so they are pairwise distinct
// and retries reuse them.
func (o *Orchestrator) Plan(candidates []model.CandidateLink) []model.DownloadTask {
	claimer := naming.NewClaimer()
	tasks := make([]model.DownloadTask, len(candidates))
	for i, c := range candidates {
		tasks[i] = model.DownloadTask{
			Link:       c,
			TargetPath: claimer.Claim(o.baseDir, naming.Derive(c.URL, c.AnchorText)),
		}
	}
	return tasks
}

// Run downloads every candidate and returns exactly one outcome per
// candidate, in input order. Outcome.Index maps back to the candidate.
//
// Per-task failures are recorded in the outcomes and never abort siblings.
// Run returns an error wrapping ErrOutputDir, before any task starts, when
// the base directory cannot be created.
//
// When ctx is cancelled no new task or retry is started. Requests already
// in flight are not interrupted. Tasks that never started get a Failed
// outcome of kind Cancelled, and Run returns ctx.Err() together with the
// outcomes.
func (o *Orchestrator) Run(ctx context.Context, candidates []model.CandidateLink) ([]model.DownloadOutcome, error) {
	if err := os.MkdirAll(o.baseDir, 0750); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOutputDir, o.baseDir, err)
	}

	tasks := o.Plan(candidates)
	outcomes := make([]model.DownloadOutcome, len(tasks))

	o.logger.Info("starting downloads",
		"tasks", len(tasks),
		"concurrency", o.concurrency,
		"retry_limit", o.retryLimit,
		"dir", o.baseDir,
	)

	var (
		mu   sync.Mutex
		done int
	)
	record := func(i int, outcome model.DownloadOutcome) {
		o.observer.ObserveOutcome(outcome)

		mu.Lock()
		defer mu.Unlock()
		outcomes[i] = outcome
		done++
		if o.progress != nil {
			o.progress(done, len(tasks), outcome)
		}
	}

	// In-flight requests must survive cancellation of the run.
	requestCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, task := range tasks {
		if ctx.Err() != nil {
			record(i, cancelledOutcome(i, task))
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				record(i, cancelledOutcome(i, task))
				return nil
			}
			record(i, o.execute(ctx, requestCtx, i, task))
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // tasks never return errors

	o.logger.Info("downloads finished", "tasks", len(tasks))

	return outcomes, ctx.Err()
}

// execute drives one task through its attempts. The task carries its own
// retry state (Attempt, NextEligible); the loop waits on the clock until the
// task is eligible, attempts it, and either finishes or schedules the next
// attempt.
func (o *Orchestrator) execute(runCtx, requestCtx context.Context, index int, task model.DownloadTask) model.DownloadOutcome {
	start := o.clock.Now()
	outcome := model.DownloadOutcome{Index: index}

	if !o.overwrite {
		if info, err := os.Stat(task.TargetPath); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			o.logger.Debug("target exists, skipping", "path", task.TargetPath)
			outcome.Task = task
			outcome.Status = model.StatusSkipped
			outcome.BytesWritten = info.Size()
			return outcome
		}
	}

	task.NextEligible = start
	for {
		if wait := task.NextEligible.Sub(o.clock.Now()); wait > 0 {
			select {
			case <-runCtx.Done():
				o.logger.Debug("retry abandoned after cancellation", "url", task.Link.URL)
				return o.fail(outcome, task, start)
			case <-o.clock.After(wait):
			}
		}

		outcome.Attempts++
		o.observer.ObserveAttempt()

		res, terr := o.fetch(requestCtx, task)
		if terr == nil {
			outcome.Task = task
			outcome.Status = model.StatusSuccess
			outcome.BytesWritten = res.bytesWritten
			outcome.Digest = res.digest
			outcome.Elapsed = o.clock.Now().Sub(start)
			o.logger.Info("downloaded",
				"url", task.Link.URL,
				"path", task.TargetPath,
				"bytes", res.bytesWritten,
				"attempts", outcome.Attempts,
				"digest", res.digest,
			)
			return outcome
		}

		outcome.Err = terr
		if !terr.Retryable() || task.Attempt >= o.retryLimit {
			o.logger.Warn("download failed",
				"url", task.Link.URL,
				"kind", terr.Kind.String(),
				"status", terr.StatusCode,
				"attempts", outcome.Attempts,
				"error", terr.Message,
			)
			return o.fail(outcome, task, start)
		}

		delay := o.backoff.Delay(task.Attempt)
		task.Attempt++
		task.NextEligible = o.clock.Now().Add(delay)
		o.logger.Debug("retrying download",
			"url", task.Link.URL,
			"attempt", task.Attempt,
			"delay", delay,
			"error", terr.Message,
		)
	}
}

func (o *Orchestrator) fail(outcome model.DownloadOutcome, task model.DownloadTask, start time.Time) model.DownloadOutcome {
	outcome.Task = task
	outcome.Status = model.StatusFailed
	outcome.Elapsed = o.clock.Now().Sub(start)
	if outcome.Err == nil {
		outcome.Err = model.NewTaskError(model.ErrorKindCancelled, context.Canceled)
	}
	return outcome
}

func cancelledOutcome(index int, task model.DownloadTask) model.DownloadOutcome {
	return model.DownloadOutcome{
		Task:   task,
		Index:  index,
		Status: model.StatusFailed,
		Err:    model.NewTaskError(model.ErrorKindCancelled, context.Canceled),
	}
}
