package pipeline

import "errors"

var (
	// ErrNoCandidates is returned when no link survives the filter policy.
	ErrNoCandidates = errors.New("no candidate links after filtering")

	// ErrDiscovery is returned when no source page could be rendered.
	ErrDiscovery = errors.New("link discovery failed")

	// ErrNoSources is returned when a crawl is started without source URLs.
	ErrNoSources = errors.New("no source URL given")
)
