package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nao1215/pdfharvest/internal/model"
)

// Default browser settings.
const (
	DefaultSettleWait   = 2 * time.Second
	DefaultClickTimeout = 15 * time.Second
)

// Browser renders pages in headless Chromium via go-rod. The browser is
// launched lazily on first use and shared by all calls until Close.
//
// ROD_BROWSER_BIN selects a Chrome binary and ROD_NO_SANDBOX=1 disables the
// sandbox, matching go-rod's conventions for containers.
type Browser struct {
	bin          string
	userDataDir  string
	proxy        string
	userAgent    string
	headless     bool
	noSandbox    bool
	settle       time.Duration
	clickTimeout time.Duration
	selectors    []string
	logger       *slog.Logger

	mu          sync.Mutex
	launcher    *launcher.Launcher
	browser     *rod.Browser
	downloadDir string
}

// BrowserOption configures a Browser.
type BrowserOption func(*Browser)

// WithBrowserBin sets the Chrome executable.
func WithBrowserBin(bin string) BrowserOption {
	return func(b *Browser) {
		b.bin = bin
	}
}

// WithUserDataDir sets the browser profile directory.
func WithUserDataDir(dir string) BrowserOption {
	return func(b *Browser) {
		b.userDataDir = dir
	}
}

// WithBrowserProxy routes browser traffic through a proxy such as
// socks5://127.0.0.1:9050.
func WithBrowserProxy(proxy string) BrowserOption {
	return func(b *Browser) {
		b.proxy = proxy
	}
}

// WithBrowserUserAgent overrides the browser user agent.
func WithBrowserUserAgent(ua string) BrowserOption {
	return func(b *Browser) {
		b.userAgent = ua
	}
}

// WithHeadless toggles headless mode.
func WithHeadless(headless bool) BrowserOption {
	return func(b *Browser) {
		b.headless = headless
	}
}

// WithSettleWait sets how long to wait after load for scripts to add links.
func WithSettleWait(d time.Duration) BrowserOption {
	return func(b *Browser) {
		if d >= 0 {
			b.settle = d
		}
	}
}

// WithClickTimeout sets how long a click may take to cause a navigation or
// download.
func WithClickTimeout(d time.Duration) BrowserOption {
	return func(b *Browser) {
		if d > 0 {
			b.clickTimeout = d
		}
	}
}

// WithBrowserSelectors adds CSS selectors whose matches become candidates.
func WithBrowserSelectors(selectors ...string) BrowserOption {
	return func(b *Browser) {
		b.selectors = append(b.selectors, selectors...)
	}
}

// WithBrowserLogger sets the logger.
func WithBrowserLogger(logger *slog.Logger) BrowserOption {
	return func(b *Browser) {
		b.logger = logger
	}
}

// NewBrowser creates a Browser renderer. No process is started until the
// first Render or SimulateClick.
func NewBrowser(opts ...BrowserOption) *Browser {
	b := &Browser{
		bin:          os.Getenv("ROD_BROWSER_BIN"),
		headless:     true,
		noSandbox:    os.Getenv("ROD_NO_SANDBOX") == "1",
		settle:       DefaultSettleWait,
		clickTimeout: DefaultClickTimeout,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b
}

// connect launches the browser on first use.
func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().Headless(b.headless).NoSandbox(b.noSandbox)
	if b.bin != "" {
		l = l.Bin(b.bin)
	} else if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}
	if b.userDataDir != "" {
		l = l.UserDataDir(b.userDataDir)
	}
	if b.proxy != "" {
		l = l.Proxy(b.proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	downloadDir, err := os.MkdirTemp("", "pdfharvest-browser-*")
	if err != nil {
		_ = browser.Close() //nolint:errcheck // already failing
		l.Kill()
		return nil, fmt.Errorf("failed to create browser download dir: %w", err)
	}

	err = proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath:  downloadDir,
		EventsEnabled: true,
	}.Call(browser)
	if err != nil {
		b.logger.Debug("download events unavailable", "error", err)
	}

	b.logger.Debug("browser started", "control_url", controlURL, "headless", b.headless)

	b.launcher = l
	b.browser = browser
	b.downloadDir = downloadDir
	return browser, nil
}

// open creates a page in the browser, bound to ctx, and navigates to
// pageURL.
func (b *Browser) open(ctx context.Context, pageURL string) (*rod.Page, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if b.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
			_ = page.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	if err := page.Navigate(pageURL); err != nil {
		_ = page.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		_ = page.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	if b.settle > 0 {
		select {
		case <-ctx.Done():
			_ = page.Close() //nolint:errcheck // cancelled
			return nil, ctx.Err()
		case <-time.After(b.settle):
		}
	}

	return page, nil
}

// Render loads pageURL, waits for scripts to settle and parses the
// rendered DOM.
func (b *Browser) Render(ctx context.Context, pageURL string) (*Snapshot, error) {
	page, err := b.open(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer page.Close() //nolint:errcheck // best effort

	dom, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read DOM of %s: %w", pageURL, err)
	}

	finalURL := pageURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	snap, err := buildSnapshot(finalURL, dom, b.selectors)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("rendered page in browser",
		"url", finalURL,
		"links", len(snap.Links),
		"triggers", len(snap.Triggers),
	)

	return snap, nil
}

// SimulateClick opens the trigger's source page, clicks the element and
// returns the URL of the first top-level navigation or download that
// follows.
func (b *Browser) SimulateClick(ctx context.Context, trigger model.Trigger) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.clickTimeout+b.settle)
	defer cancel()

	page, err := b.open(ctx, trigger.SourcePage)
	if err != nil {
		return "", err
	}
	defer page.Close() //nolint:errcheck // best effort

	before := trigger.SourcePage
	if info, err := page.Info(); err == nil {
		before = info.URL
	}

	found := make(chan string, 2)
	send := func(u string) {
		select {
		case found <- u:
		default:
		}
	}

	b.mu.Lock()
	browser := b.browser
	b.mu.Unlock()

	waitDownload := browser.Context(ctx).EachEvent(func(e *proto.BrowserDownloadWillBegin) bool {
		send(e.URL)
		return true
	})
	waitNavigation := page.EachEvent(func(e *proto.PageFrameNavigated) bool {
		if e.Frame == nil || e.Frame.ParentID != "" || e.Frame.URL == before {
			return false
		}
		send(e.Frame.URL)
		return true
	})
	go waitDownload()
	go waitNavigation()

	el, err := page.Element(trigger.Selector)
	if err != nil {
		return "", fmt.Errorf("trigger element %q not found: %w", trigger.Selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("failed to click %q: %w", trigger.Selector, err)
	}

	select {
	case u := <-found:
		b.logger.Debug("trigger resolved", "selector", trigger.Selector, "url", u)
		return u, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s", ErrNoNavigation, trigger.Selector)
		}
		return "", ctx.Err()
	}
}

// Close shuts the browser down and removes its download directory.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}

	err := b.browser.Close()
	b.launcher.Kill()
	if b.downloadDir != "" {
		_ = os.RemoveAll(b.downloadDir) //nolint:errcheck // temp dir
	}
	b.browser = nil
	b.launcher = nil
	b.downloadDir = ""
	return err
}
