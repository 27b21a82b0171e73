package merge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/nao1215/pdfharvest/internal/model"
)

// DefaultOutputName is the merged file name used when none is configured.
const DefaultOutputName = "merged_pdfs"

// Order selects how merge units are sorted before concatenation.
type Order int

const (
	// OrderByName sorts by file name, case-insensitive and numeric-aware.
	OrderByName Order = iota

	// OrderByModTime sorts by modification time, oldest first, with the
	// file name as tie breaker.
	OrderByModTime
)

// String returns the flag value of the order.
func (o Order) String() string {
	if o == OrderByModTime {
		return "mtime"
	}
	return "name"
}

// ParseOrder parses "name" or "mtime".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name":
		return OrderByName, nil
	case "mtime", "time", "modtime":
		return OrderByModTime, nil
	default:
		return OrderByName, fmt.Errorf("%w: %q", ErrUnknownOrder, s)
	}
}

// Observer receives the result of every successful merge. The metrics
// package implements it.
type Observer interface {
	ObserveMerge(result *model.MergeResult)
}

// Merger concatenates PDF files into a single document.
type Merger struct {
	deleteSources bool
	force         bool
	order         Order
	conf          *pdfmodel.Configuration
	observer      Observer
	onState       func(model.MergeState)
	logger        *slog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithDeleteSources removes contributing inputs after a successful write.
func WithDeleteSources(del bool) Option {
	return func(m *Merger) {
		m.deleteSources = del
	}
}

// WithForce allows an existing output file to be replaced.
func WithForce(force bool) Option {
	return func(m *Merger) {
		m.force = force
	}
}

// WithOrder sets the concatenation order.
func WithOrder(order Order) Option {
	return func(m *Merger) {
		m.order = order
	}
}

// WithObserver registers a merge observer.
func WithObserver(obs Observer) Option {
	return func(m *Merger) {
		m.observer = obs
	}
}

// WithStateHook registers a function called on every state transition.
func WithStateHook(fn func(model.MergeState)) Option {
	return func(m *Merger) {
		m.onState = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Merger) {
		m.logger = logger
	}
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{
		order: OrderByName,
		conf:  newConfiguration(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}

	return m
}

// OutputPath returns the merged file location for dir and name. The .pdf
// extension is added when missing; an empty name means DefaultOutputName.
func OutputPath(dir, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultOutputName
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return filepath.Join(dir, name)
}

type collected struct {
	path    string
	modTime time.Time
}

// Merge validates paths, concatenates the valid ones in order into
// outputPath and returns the result.
//
// Invalid inputs are recorded in MergeResult.Skipped and do not abort the
// run. If none validates, Merge returns ErrNoValidInput together with the
// partial result. Totals are read back from the written file. When source
// deletion is enabled, only contributing inputs are removed, and only after
// the output is in place; deletion failures are reported, not returned.
func (m *Merger) Merge(ctx context.Context, paths []string, outputPath string) (*model.MergeResult, error) {
	result := &model.MergeResult{
		OutputPath: outputPath,
		Inputs:     make([]string, 0, len(paths)),
		Skipped:    make([]model.SkippedUnit, 0),
	}

	if !m.force {
		if _, err := os.Stat(outputPath); err == nil {
			return result, fmt.Errorf("%w: %s (use --force to replace it)", ErrOutputExists, outputPath)
		}
	}

	m.enter(model.MergeCollecting)
	inputs := m.collect(paths, outputPath, result)
	if len(inputs) == 0 {
		m.enter(model.MergeFailed)
		return result, ErrNoValidInput
	}

	m.enter(model.MergeValidating)
	units := make([]model.MergeUnit, 0, len(inputs))
	modTimes := make(map[string]time.Time, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			m.enter(model.MergeFailed)
			return result, err
		}

		pages, reason, err := inspect(in.path, m.conf)
		if err != nil {
			m.logger.Warn("skipping merge input",
				"path", in.path,
				"reason", reason.String(),
				"error", err,
			)
			result.Skipped = append(result.Skipped, model.SkippedUnit{
				Path:   in.path,
				Reason: reason,
				Detail: err.Error(),
			})
			continue
		}

		units = append(units, model.MergeUnit{
			Path:      in.path,
			PageCount: pages,
			OrderKey:  strings.ToLower(filepath.Base(in.path)),
		})
		modTimes[in.path] = in.modTime
	}

	if len(units) == 0 {
		m.enter(model.MergeFailed)
		return result, ErrNoValidInput
	}

	m.enter(model.MergeConcatenating)
	m.sort(units, modTimes)
	for _, u := range units {
		result.Inputs = append(result.Inputs, u.Path)
	}
	result.InputCount = len(units)

	m.enter(model.MergeWriting)
	if err := m.write(result.Inputs, outputPath); err != nil {
		m.enter(model.MergeFailed)
		return result, err
	}

	pages, err := api.PageCountFile(outputPath)
	if err != nil {
		m.enter(model.MergeFailed)
		return result, fmt.Errorf("%w: cannot read back %s: %w", ErrWriteOutput, outputPath, err)
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		m.enter(model.MergeFailed)
		return result, fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	result.TotalPages = pages
	result.TotalBytes = info.Size()

	m.logger.Info("merged PDFs",
		"output", outputPath,
		"inputs", result.InputCount,
		"pages", result.TotalPages,
		"bytes", result.TotalBytes,
		"skipped", len(result.Skipped),
	)

	if m.deleteSources {
		m.enter(model.MergeCleanup)
		m.removeSources(units, result)
	}

	m.enter(model.MergeDone)
	if m.observer != nil {
		m.observer.ObserveMerge(result)
	}

	return result, nil
}

// MergeDir merges the PDF files directly inside dir. When keywords are
// given only files whose name contains one of them are used.
func (m *Merger) MergeDir(ctx context.Context, dir, outputPath string, keywords ...string) (*model.MergeResult, error) {
	paths, err := ListPDFs(dir, outputPath, keywords...)
	if err != nil {
		return nil, err
	}
	return m.Merge(ctx, paths, outputPath)
}

// collect removes duplicates and the output file from paths. Inputs that
// cannot be stat'ed are recorded as unreadable.
func (m *Merger) collect(paths []string, outputPath string, result *model.MergeResult) []collected {
	seen := make(map[string]struct{}, len(paths))
	outAbs, _ := filepath.Abs(outputPath) //nolint:errcheck // comparison only
	inputs := make([]collected, 0, len(paths))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if abs == outAbs {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}

		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			detail := "not a regular file"
			if err != nil {
				detail = err.Error()
			}
			result.Skipped = append(result.Skipped, model.SkippedUnit{
				Path:   p,
				Reason: model.SkipUnreadable,
				Detail: detail,
			})
			continue
		}
		inputs = append(inputs, collected{path: p, modTime: info.ModTime()})
	}

	return inputs
}

func (m *Merger) sort(units []model.MergeUnit, modTimes map[string]time.Time) {
	slices.SortStableFunc(units, func(a, b model.MergeUnit) int {
		if m.order == OrderByModTime {
			if c := modTimes[a.Path].Compare(modTimes[b.Path]); c != 0 {
				return c
			}
		}
		switch {
		case NaturalLess(a.OrderKey, b.OrderKey):
			return -1
		case NaturalLess(b.OrderKey, a.OrderKey):
			return 1
		default:
			return 0
		}
	})
}

// write produces outputPath via a temporary file in the same directory so
// a failed write never leaves a partial output behind.
func (m *Merger) write(inFiles []string, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	tmp := filepath.Join(dir, ".pdfharvest-merge-"+uuid.NewString()+".pdf")
	defer func() {
		_ = os.Remove(tmp) //nolint:errcheck // gone after a successful rename
	}()

	var err error
	if len(inFiles) == 1 {
		err = copyFile(inFiles[0], tmp)
	} else {
		err = api.MergeCreateFile(inFiles, tmp, false, m.conf)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	if err := os.Rename(tmp, outputPath); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}

func (m *Merger) removeSources(units []model.MergeUnit, result *model.MergeResult) {
	for _, u := range units {
		if u.PageCount == 0 {
			continue
		}
		if err := os.Remove(u.Path); err != nil {
			m.logger.Warn("failed to delete merged source", "path", u.Path, "error", err)
			result.DeletionFailures = append(result.DeletionFailures, model.DeletionFailure{
				Path:  u.Path,
				Error: err.Error(),
			})
			continue
		}
		result.Deleted = append(result.Deleted, u.Path)
	}
}

func (m *Merger) enter(state model.MergeState) {
	m.logger.Debug("merge state", "state", state.String())
	if m.onState != nil {
		m.onState(state)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // validated merge input
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // temp file in output dir
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close() //nolint:errcheck // already failing
		return err
	}
	return out.Close()
}
