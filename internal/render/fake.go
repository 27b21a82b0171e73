package render

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nao1215/pdfharvest/internal/model"
)

// Fake is a deterministic Renderer backed by in-memory pages. It never
// touches the network.
type Fake struct {
	mu sync.Mutex

	// Pages maps a page URL to its snapshot.
	Pages map[string]*Snapshot

	// Clicks maps a trigger selector to the URL the click reveals.
	Clicks map[string]string

	rendered []string
	clicked  []string
	closed   bool
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{
		Pages:  make(map[string]*Snapshot),
		Clicks: make(map[string]string),
	}
}

// AddPage registers a page and returns the Fake for chaining. The snapshot
// URL is set to pageURL.
func (f *Fake) AddPage(pageURL string, snap *Snapshot) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap.URL = pageURL
	f.Pages[pageURL] = snap
	return f
}

// AddClick registers the URL revealed by clicking selector.
func (f *Fake) AddClick(selector, target string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clicks[selector] = target
	return f
}

// Render returns a copy of the registered snapshot.
func (f *Fake) Render(ctx context.Context, pageURL string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.rendered = append(f.rendered, pageURL)
	snap, ok := f.Pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, pageURL)
	}

	cp := *snap
	cp.Links = slices.Clone(snap.Links)
	cp.Triggers = slices.Clone(snap.Triggers)
	cp.Pages = slices.Clone(snap.Pages)
	return &cp, nil
}

// SimulateClick returns the URL registered for the trigger's selector.
func (f *Fake) SimulateClick(ctx context.Context, trigger model.Trigger) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.clicked = append(f.clicked, trigger.Selector)
	target, ok := f.Clicks[trigger.Selector]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoNavigation, trigger.Selector)
	}
	return target, nil
}

// Close marks the Fake closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Rendered returns the page URLs passed to Render, in call order.
func (f *Fake) Rendered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.rendered)
}

// Clicked returns the selectors passed to SimulateClick, in call order.
func (f *Fake) Clicked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.clicked)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
