package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSource is returned when no page URL is given.
	ErrNoSource = errors.New("no source specified: provide at least one page URL")

	// ErrInvalidMaxWorkers is returned when max_workers is not positive.
	ErrInvalidMaxWorkers = errors.New("invalid max_workers: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidChunkSize is returned when chunk_size is not positive.
	ErrInvalidChunkSize = errors.New("invalid chunk_size: must be positive")

	// ErrInvalidRetryTimes is returned when retry_times is negative.
	ErrInvalidRetryTimes = errors.New("invalid retry_times: must be non-negative")

	// ErrInvalidFilterMode is returned for an unknown filter_mode.
	ErrInvalidFilterMode = errors.New("invalid filter_mode")

	// ErrNoKeywords is returned when custom_keywords mode has no keywords.
	ErrNoKeywords = errors.New("filter_mode custom_keywords requires at least one keyword")

	// ErrEmptyBaseDir is returned when output.base_dir is empty.
	ErrEmptyBaseDir = errors.New("output.base_dir must not be empty")

	// ErrInvalidMergeName is returned when merge.output_name is empty or
	// contains a path separator.
	ErrInvalidMergeName = errors.New("invalid merge.output_name: must be a plain file name")

	// ErrInvalidMergeOrder is returned for an unknown merge.order.
	ErrInvalidMergeOrder = errors.New("invalid merge.order")

	// ErrInvalidBackoff is returned when backoff durations are negative or
	// max is below base.
	ErrInvalidBackoff = errors.New("invalid backoff: durations must be non-negative and max >= base")

	// ErrInvalidJitter is returned when backoff.jitter is outside [0, 1].
	ErrInvalidJitter = errors.New("invalid backoff.jitter: must be between 0 and 1")

	// ErrInvalidRenderMode is returned for a render mode other than static or browser.
	ErrInvalidRenderMode = errors.New("invalid render.mode: must be static or browser")

	// ErrInvalidDepth is returned when render.depth is negative.
	ErrInvalidDepth = errors.New("invalid render.depth: must be non-negative")

	// ErrInvalidMaxPages is returned when render.max_pages is not positive.
	ErrInvalidMaxPages = errors.New("invalid render.max_pages: must be positive")

	// ErrInvalidWait is returned when render.wait or render.delay is negative.
	ErrInvalidWait = errors.New("invalid render wait: must be non-negative")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log.format: must be text or json")

	// ErrConflictingProxies is returned when both --proxy and --tor are set.
	ErrConflictingProxies = errors.New("conflicting proxies: --proxy and --tor cannot be used together")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
