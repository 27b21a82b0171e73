package model

import "time"

// RunReport is the structured result of a crawl, download and merge run.
// It is the only contract between the core and the reporting layer.
type RunReport struct {
	// RunID uniquely identifies the run in the history database.
	RunID string `json:"run_id"`

	// Sources are the pages the run started from.
	Sources []string `json:"sources"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Policy is the filter policy that was active.
	Policy FilterPolicy `json:"policy"`

	// LinksFound is the number of candidate links discovered before filtering.
	LinksFound int `json:"links_found"`

	// Filtered is the number of candidates accepted by the filter policy.
	Filtered int `json:"filtered"`

	// TriggersResolved and TriggersUnresolved count click triggers.
	TriggersResolved   int `json:"triggers_resolved"`
	TriggersUnresolved int `json:"triggers_unresolved"`

	// Candidates are all discovered links, in discovery order.
	Candidates []CandidateLink `json:"-"`

	// Triggers are discovered elements that need a click to yield a URL.
	Triggers []Trigger `json:"-"`

	// Accepted are the links selected for download.
	Accepted []CandidateLink `json:"accepted"`

	// OutputDir is the directory downloads were written to.
	OutputDir string `json:"output_dir"`

	// Outcomes holds one entry per accepted link.
	Outcomes []DownloadOutcome `json:"outcomes"`

	// Merge is set when the merge step ran.
	Merge *MergeResult `json:"merge,omitempty"`

	// Cancelled is true when the run was interrupted.
	Cancelled bool `json:"cancelled"`

	// PerformedSteps lists completed pipeline step names.
	PerformedSteps []string `json:"performed_steps"`

	// Error is the run-level failure, if any.
	Error error `json:"-"`

	// ErrorMessage is Error rendered for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// Failure is one row of the failure listing in a report.
type Failure struct {
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"status_code,omitempty"`
	URL        string    `json:"url,omitempty"`
	Path       string    `json:"path"`
	Message    string    `json:"message"`
}

// NewRunReport creates an empty report for the given sources.
func NewRunReport(runID string, sources ...string) *RunReport {
	return &RunReport{
		RunID:          runID,
		Sources:        sources,
		StartedAt:      time.Now(),
		Candidates:     make([]CandidateLink, 0),
		Triggers:       make([]Trigger, 0),
		Accepted:       make([]CandidateLink, 0),
		Outcomes:       make([]DownloadOutcome, 0),
		PerformedSteps: make([]string, 0),
	}
}

// SetError records a run-level failure.
func (r *RunReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Finish stamps the finish time.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

// Elapsed returns the execution time of the run.
func (r *RunReport) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded returns the number of successful downloads.
func (r *RunReport) Succeeded() int {
	return r.countStatus(StatusSuccess)
}

// FailedCount returns the number of failed downloads.
func (r *RunReport) FailedCount() int {
	return r.countStatus(StatusFailed)
}

// SkippedCount returns the number of skipped downloads.
func (r *RunReport) SkippedCount() int {
	return r.countStatus(StatusSkipped)
}

func (r *RunReport) countStatus(status DownloadStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// SucceededPaths returns the target paths of successful downloads.
func (r *RunReport) SucceededPaths() []string {
	paths := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Status == StatusSuccess {
			paths = append(paths, o.Task.TargetPath)
		}
	}
	return paths
}

// Failures enumerates every failed download and every skipped merge input.
func (r *RunReport) Failures() []Failure {
	failures := make([]Failure, 0)
	for _, o := range r.Outcomes {
		if o.Status != StatusFailed || o.Err == nil {
			continue
		}
		failures = append(failures, Failure{
			Kind:       o.Err.Kind,
			StatusCode: o.Err.StatusCode,
			URL:        o.Task.Link.URL,
			Path:       o.Task.TargetPath,
			Message:    o.Err.Message,
		})
	}
	if r.Merge != nil {
		for _, s := range r.Merge.Skipped {
			failures = append(failures, Failure{
				Kind:    s.Reason.ErrorKind(),
				Path:    s.Path,
				Message: s.Detail,
			})
		}
	}
	return failures
}

// Successful reports whether the run completed without a run-level failure.
// Partial download failures do not make a run unsuccessful.
func (r *RunReport) Successful() bool {
	return r.Error == nil && !r.Cancelled
}
