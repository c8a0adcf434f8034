// Package httpclient builds the *http.Client used by the crawler.
//
// The client separates the connection budget (dial and TLS handshake) from
// the read budget (response headers), keeps cookies across requests with a
// public-suffix-aware jar, can route through a SOCKS5 proxy, and injects
// per-site credentials into every request.
package httpclient
