package render

import (
	"context"
	"strings"

	"github.com/nao1215/pdfharvest/internal/model"
)

// Snapshot is what a Renderer returns for one page.
type Snapshot struct {
	// URL is the final page URL after redirects.
	URL string

	// Title is the page title.
	Title string

	// DOM is the (rendered) HTML of the page.
	DOM string

	// Links are PDF candidates found on the page, in document order.
	Links []model.CandidateLink

	// Triggers are elements that must be clicked to reveal a URL.
	Triggers []model.Trigger

	// Pages are same-site HTML links that a walker may follow.
	Pages []string
}

// Renderer turns a URL into a Snapshot and can resolve click triggers.
type Renderer interface {
	// Render loads pageURL and extracts candidates from its DOM.
	Render(ctx context.Context, pageURL string) (*Snapshot, error)

	// SimulateClick clicks the trigger's element on its source page and
	// returns the URL of the navigation or download it caused.
	SimulateClick(ctx context.Context, trigger model.Trigger) (string, error)

	// Close releases resources such as a browser process.
	Close() error
}

// buildSnapshot parses dom and applies the extra selectors.
func buildSnapshot(pageURL, dom string, selectors []string) (*Snapshot, error) {
	parser, err := NewParser(pageURL)
	if err != nil {
		return nil, err
	}
	result, err := parser.Parse(strings.NewReader(dom))
	if err != nil {
		return nil, err
	}

	links := result.Links
	if len(selectors) > 0 {
		extra, err := SelectLinks(dom, pageURL, selectors)
		if err != nil {
			return nil, err
		}
		links = append(links, extra...)
	}

	return &Snapshot{
		URL:      pageURL,
		Title:    result.Title,
		DOM:      dom,
		Links:    links,
		Triggers: result.Triggers,
		Pages:    result.Pages,
	}, nil
}
