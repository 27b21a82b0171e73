// Package transport builds the HTTP client shared by discovery and
// downloads.
//
// The client carries a cookie jar, a redirect limit and a RoundTripper that
// injects the user agent plus per-host cookies and headers. It can dial
// through a SOCKS5 proxy, including an embedded Tor daemon started with
// StartTor.
package transport
