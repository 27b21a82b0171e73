package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRedirects is the number of redirects followed per request.
	DefaultMaxRedirects = 10

	// checkProxyTimeout bounds the SOCKS5 handshake probe.
	checkProxyTimeout = 2 * time.Second
)

// Site holds credentials sent only to one host.
type Site struct {
	// Cookie is a raw cookie string such as "session=abc; theme=dark".
	Cookie string

	// Headers are set on every request to the host.
	Headers map[string]string
}

// Options configures the HTTP client built by New.
type Options struct {
	// Timeout is the whole-request timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	// UserAgent is sent unless the request already carries one.
	UserAgent string

	// VerifyTLS enables certificate verification.
	VerifyTLS bool

	// Proxy is an optional SOCKS5 proxy address in host:port form.
	Proxy string

	// MaxRedirects limits redirects. Zero means DefaultMaxRedirects.
	MaxRedirects int

	// Default applies to every host without an entry in Sites.
	Default Site

	// Sites maps a host name (without port) to its credentials.
	Sites map[string]Site
}

// New builds an HTTP client with a cookie jar, the redirect limit and the
// configured header injection. With Proxy set every connection is dialed
// through SOCKS5.
func New(opts Options) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	base := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	base.MaxIdleConnsPerHost = 8
	base.IdleConnTimeout = 30 * time.Second
	if !opts.VerifyTLS {
		base.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in via verify_tls: false
		}
	}

	if opts.Proxy != "" {
		dialer, err := socksDialer(opts.Proxy)
		if err != nil {
			return nil, err
		}
		base.Proxy = nil
		base.DialContext = dialer.DialContext
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:      base,
			userAgent: opts.UserAgent,
			fallback:  opts.Default,
			sites:     normalizeSites(opts.Sites),
		},
		Timeout: timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}, nil
}

// socksDialer returns a context-aware SOCKS5 dialer for addr.
func socksDialer(addr string) (proxy.ContextDialer, error) {
	if !ValidProxyAddress(addr) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, addr)
	}

	d, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("SOCKS5 dialer does not support contexts")
	}
	return cd, nil
}

// ValidProxyAddress reports whether addr is a non-empty host with a port in
// 1..65535.
func ValidProxyAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

func normalizeSites(sites map[string]Site) map[string]Site {
	out := make(map[string]Site, len(sites))
	for host, s := range sites {
		out[strings.ToLower(host)] = s
	}
	return out
}

// headerInjectingTransport wraps an http.RoundTripper to inject the user
// agent and per-host cookies and headers into every request, redirects
// included.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	fallback  Site
	sites     map[string]Site
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	site, ok := t.sites[strings.ToLower(clone.URL.Hostname())]
	if !ok {
		site = t.fallback
	}

	if site.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+site.Cookie)
		} else {
			clone.Header.Set("Cookie", site.Cookie)
		}
	}
	for key, value := range site.Headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}

// CheckProxy performs a SOCKS5 greeting against addr and reports whether the
// peer accepts unauthenticated SOCKS5 sessions.
func CheckProxy(ctx context.Context, addr string) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ProxyStatusCannotConnect
	}

	// version 5, one method offered, "no authentication"
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if resp[0] != 0x05 || resp[1] != 0x00 {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}
