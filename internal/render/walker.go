package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/pdfharvest/internal/model"
)

// Walker discovers candidates on a start page and, optionally, on the
// same-site pages it links to, breadth-first.
type Walker struct {
	renderer Renderer

	// maxDepth limits how far to follow links from the start page.
	// 0 means only the start page.
	maxDepth int

	// maxPages limits the total number of pages rendered.
	maxPages int

	// delay is the pause between page renders.
	delay time.Duration

	logger *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithMaxDepth sets the maximum walk depth.
func WithMaxDepth(depth int) WalkerOption {
	return func(w *Walker) {
		if depth >= 0 {
			w.maxDepth = depth
		}
	}
}

// WithMaxPages sets the maximum number of pages to render.
func WithMaxPages(maxPages int) WalkerOption {
	return func(w *Walker) {
		if maxPages > 0 {
			w.maxPages = maxPages
		}
	}
}

// WithDelay sets the delay between page renders.
func WithDelay(d time.Duration) WalkerOption {
	return func(w *Walker) {
		w.delay = d
	}
}

// WithWalkerLogger sets the logger.
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		w.logger = logger
	}
}

// NewWalker creates a Walker over renderer.
func NewWalker(renderer Renderer, opts ...WalkerOption) *Walker {
	w := &Walker{
		renderer: renderer,
		maxDepth: 0,
		maxPages: 20,
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = slog.Default()
	}

	return w
}

// Discovery is the aggregated result of a walk.
type Discovery struct {
	// Pages are the pages rendered, in visit order.
	Pages []string

	// Links are all candidates in discovery order.
	Links []model.CandidateLink

	// Triggers are all click triggers in discovery order.
	Triggers []model.Trigger
}

type queueItem struct {
	url   string
	depth int
}

// Walk renders startURL and follows same-site links up to the configured
// depth and page limits. A failure on the start page is returned; failures
// on sub-pages are logged and skipped. On cancellation the partial
// discovery is returned with ctx.Err().
func (w *Walker) Walk(ctx context.Context, startURL string) (*Discovery, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, startURL)
	}

	d := &Discovery{
		Pages:    make([]string, 0),
		Links:    make([]model.CandidateLink, 0),
		Triggers: make([]model.Trigger, 0),
	}

	visited := make(map[string]bool)
	queue := []queueItem{{url: start.String(), depth: 0}}

	for len(queue) > 0 && len(d.Pages) < w.maxPages {
		select {
		case <-ctx.Done():
			return d, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		key := normalizePageURL(item.url)
		if visited[key] {
			continue
		}
		visited[key] = true

		snap, err := w.renderer.Render(ctx, item.url)
		if err != nil {
			if item.depth == 0 {
				return nil, err
			}
			w.logger.Warn("failed to render page", "url", item.url, "error", err)
			continue
		}

		d.Pages = append(d.Pages, item.url)
		d.Links = append(d.Links, snap.Links...)
		d.Triggers = append(d.Triggers, snap.Triggers...)

		if item.depth < w.maxDepth {
			for _, link := range snap.Pages {
				if !visited[normalizePageURL(link)] && isSameHost(start.Host, link) {
					queue = append(queue, queueItem{url: link, depth: item.depth + 1})
				}
			}
		}

		if w.delay > 0 && len(queue) > 0 {
			select {
			case <-ctx.Done():
				return d, ctx.Err()
			case <-time.After(w.delay):
			}
		}
	}

	w.logger.Info("discovery finished",
		"start", startURL,
		"pages", len(d.Pages),
		"links", len(d.Links),
		"triggers", len(d.Triggers),
	)

	return d, nil
}

// normalizePageURL normalizes a URL for the visited set.
func normalizePageURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

func isSameHost(baseHost, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, baseHost)
}
