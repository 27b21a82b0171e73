package render

import "errors"

var (
	// ErrInvalidURL is returned for page URLs that cannot be rendered.
	ErrInvalidURL = errors.New("invalid page URL")

	// ErrPageStatus is returned when a page responds with a non-2xx status.
	ErrPageStatus = errors.New("unexpected page status")

	// ErrClickUnsupported is returned by renderers that cannot execute scripts.
	ErrClickUnsupported = errors.New("renderer cannot simulate clicks")

	// ErrNoNavigation is returned when a click caused neither a navigation
	// nor a download within the wait time.
	ErrNoNavigation = errors.New("click did not lead to a document")

	// ErrPageNotFound is returned by Fake for unknown pages.
	ErrPageNotFound = errors.New("page not found")

	// ErrInvalidSelector is returned for CSS selectors that do not parse.
	ErrInvalidSelector = errors.New("invalid CSS selector")
)
