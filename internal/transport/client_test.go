package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:1080", true},
		{"[::1]:9050", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:70000", false},
		{"127.0.0.1:abc", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			t.Parallel()
			if got := ValidProxyAddress(tt.addr); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewRejectsInvalidProxy(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Proxy: "no-port"})
	if !errors.Is(err, ErrInvalidProxyAddress) {
		t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
	}
}

func TestHeaderInjection(t *testing.T) {
	t.Parallel()

	got := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Run("default site", func(t *testing.T) {
		client, err := New(Options{
			UserAgent: "pdfharvest-test",
			Default: Site{
				Cookie:  "session=abc",
				Headers: map[string]string{"X-Token": "t1"},
			},
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		resp, err := client.Get(srv.URL) //nolint:noctx // test
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		h := <-got
		if h.Get("User-Agent") != "pdfharvest-test" {
			t.Errorf("expected user agent, got %q", h.Get("User-Agent"))
		}
		if h.Get("Cookie") != "session=abc" {
			t.Errorf("expected cookie, got %q", h.Get("Cookie"))
		}
		if h.Get("X-Token") != "t1" {
			t.Errorf("expected X-Token t1, got %q", h.Get("X-Token"))
		}
	})

	t.Run("per-site entry wins over default", func(t *testing.T) {
		client, err := New(Options{
			Default: Site{Cookie: "session=default"},
			Sites: map[string]Site{
				"127.0.0.1": {Cookie: "session=site", Headers: map[string]string{"Authorization": "Bearer x"}},
			},
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("User-Agent", "caller")
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		h := <-got
		if h.Get("Cookie") != "session=site" {
			t.Errorf("expected site cookie, got %q", h.Get("Cookie"))
		}
		if h.Get("Authorization") != "Bearer x" {
			t.Errorf("expected authorization header, got %q", h.Get("Authorization"))
		}
		if h.Get("User-Agent") != "caller" {
			t.Errorf("expected caller user agent to be kept, got %q", h.Get("User-Agent"))
		}
		if req.Header.Get("Cookie") != "" {
			t.Error("expected original request to be left untouched")
		}
	})
}

func TestRedirectLimit(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n")) //nolint:errcheck // zero on first hop
		http.Redirect(w, r, srv.URL+"/?n="+strconv.Itoa(n+1), http.StatusFound)
	}))
	defer srv.Close()

	client, err := New(Options{MaxRedirects: 3})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	_, err = client.Get(srv.URL) //nolint:noctx,bodyclose // test, error path
	if err == nil {
		t.Fatal("expected redirect error")
	}
}

func TestVerifyTLS(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	strict, err := New(Options{VerifyTLS: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := strict.Get(srv.URL); err == nil { //nolint:noctx,bodyclose // test, error path
		t.Error("expected certificate error with verification enabled")
	}

	lax, err := New(Options{VerifyTLS: false})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := lax.Get(srv.URL) //nolint:noctx // test
	if err != nil {
		t.Fatalf("expected success without verification, got %v", err)
	}
	resp.Body.Close()
}

// socks5Server is a minimal unauthenticated SOCKS5 CONNECT proxy.
func socks5Server(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSOCKS(conn)
		}
	}()
	return ln
}

func serveSOCKS(conn net.Conn) {
	defer conn.Close()

	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return
	}
	if _, err := io.ReadFull(conn, make([]byte, hdr[1])); err != nil {
		return
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	req := make([]byte, 4)
	if _, err := io.ReadFull(conn, req); err != nil {
		return
	}
	var host string
	switch req[3] {
	case 0x01:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 0x03:
		l := make([]byte, 1)
		if _, err := io.ReadFull(conn, l); err != nil {
			return
		}
		name := make([]byte, l[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	default:
		return
	}
	pb := make([]byte, 2)
	if _, err := io.ReadFull(conn, pb); err != nil {
		return
	}
	target, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(pb)))))
	if err != nil {
		_, _ = conn.Write([]byte{0x05, 0x05, 0x00, 0x01, 0, 0, 0, 0, 0, 0}) //nolint:errcheck // closing anyway
		return
	}
	defer target.Close()

	if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}
	go func() { _, _ = io.Copy(target, conn) }() //nolint:errcheck // relay
	_, _ = io.Copy(conn, target)                 //nolint:errcheck // relay
}

func TestNewThroughSOCKS5(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("via proxy")) //nolint:errcheck // test
	}))
	defer srv.Close()

	ln := socks5Server(t)
	defer ln.Close()

	client, err := New(Options{Proxy: ln.Addr().String()})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	resp, err := client.Get(srv.URL) //nolint:noctx // test
	if err != nil {
		t.Fatalf("request through proxy failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "via proxy" {
		t.Errorf("expected %q, got %q", "via proxy", body)
	}
}

func TestCheckProxy(t *testing.T) {
	t.Parallel()

	t.Run("SOCKS5 proxy", func(t *testing.T) {
		t.Parallel()
		ln := socks5Server(t)
		defer ln.Close()

		if got := CheckProxy(context.Background(), ln.Addr().String()); got != ProxyStatusOK {
			t.Errorf("expected OK, got %s", got)
		}
	})

	t.Run("HTTP server is not SOCKS5", func(t *testing.T) {
		t.Parallel()
		// An HTTP server answers the SOCKS greeting with a 400 and hangs up.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer ln.Close()
		go func() {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			greeting := make([]byte, 3)
			if _, err := io.ReadFull(conn, greeting); err != nil {
				return
			}
			_, _ = conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		}()

		got := CheckProxy(context.Background(), ln.Addr().String())
		if got != ProxyStatusWrongType {
			t.Errorf("expected wrong type, got %s", got)
		}
		if !errors.Is(got.Err(), ErrProxyNotSOCKS5) {
			t.Errorf("expected ErrProxyNotSOCKS5, got %v", got.Err())
		}
	})

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := ln.Addr().String()
		ln.Close()

		if got := CheckProxy(context.Background(), addr); got != ProxyStatusCannotConnect {
			t.Errorf("expected cannot connect, got %s", got)
		}
	})
}

func TestProxyStatusString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ProxyStatus
		want   string
	}{
		{ProxyStatusOK, "OK"},
		{ProxyStatusWrongType, "not a SOCKS5 proxy"},
		{ProxyStatusCannotConnect, "cannot connect"},
		{ProxyStatusTimeout, "timeout"},
		{ProxyStatus(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
	if ProxyStatusOK.Err() != nil {
		t.Error("expected nil error for OK")
	}
}

func TestTorStopWhenNotRunning(t *testing.T) {
	t.Parallel()

	var tor Tor
	if err := tor.Stop(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if _, err := tor.SocksAddr(); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("expected ErrTorNotRunning, got %v", err)
	}
}
