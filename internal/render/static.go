package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/nao1215/pdfharvest/internal/model"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// defaultMaxBodySize caps the page size read by Static.
const defaultMaxBodySize = 10 * 1024 * 1024

// Static renders pages by fetching their HTML over HTTP. It does not run
// scripts, so it cannot resolve triggers.
type Static struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	selectors   []string
	logger      *slog.Logger
}

// StaticOption configures a Static renderer.
type StaticOption func(*Static)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) StaticOption {
	return func(s *Static) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum page size in bytes.
func WithMaxBodySize(size int64) StaticOption {
	return func(s *Static) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithSelectors adds CSS selectors whose matches become candidates.
func WithSelectors(selectors ...string) StaticOption {
	return func(s *Static) {
		s.selectors = append(s.selectors, selectors...)
	}
}

// WithStaticLogger sets the logger.
func WithStaticLogger(logger *slog.Logger) StaticOption {
	return func(s *Static) {
		s.logger = logger
	}
}

// NewStatic creates a Static renderer using client.
func NewStatic(client *http.Client, opts ...StaticOption) *Static {
	s := &Static{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: defaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Render fetches pageURL and parses it. A URL that serves a PDF directly
// yields a snapshot whose only candidate is the URL itself.
func (s *Static) Render(ctx context.Context, pageURL string) (*Snapshot, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned %d", ErrPageStatus, pageURL, resp.StatusCode)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")) //nolint:errcheck // empty on failure
	if mediaType == "application/pdf" {
		s.logger.Debug("page is a PDF document", "url", finalURL)
		return &Snapshot{
			URL: finalURL,
			Links: []model.CandidateLink{{
				URL:        finalURL,
				SourcePage: finalURL,
			}},
			Triggers: make([]model.Trigger, 0),
			Pages:    make([]string, 0),
		}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	snap, err := buildSnapshot(finalURL, string(body), s.selectors)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("rendered page",
		"url", finalURL,
		"links", len(snap.Links),
		"triggers", len(snap.Triggers),
		"pages", len(snap.Pages),
	)

	return snap, nil
}

// SimulateClick always fails: static HTML cannot run click handlers.
func (s *Static) SimulateClick(_ context.Context, trigger model.Trigger) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrClickUnsupported, trigger.Selector)
}

// Close is a no-op.
func (s *Static) Close() error {
	return nil
}
