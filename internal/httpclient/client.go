package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// DefaultMaxRedirects is the number of redirects followed before the last
// response is returned as is.
const DefaultMaxRedirects = 10

// checkProxyTimeout bounds CheckProxy when the caller gives no timeout.
const checkProxyTimeout = 2 * time.Second

// Options configures New.
type Options struct {
	// ConnectTimeout bounds DNS resolution, TCP connect and TLS handshake.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the wait for response headers once the request is sent.
	ReadTimeout time.Duration
	// MaxRedirects overrides DefaultMaxRedirects when positive.
	MaxRedirects int

	// ProxyAddress routes every connection through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// Cookie is a raw Cookie header value added to every request.
	Cookie string
	// Headers are set on every request.
	Headers map[string]string
	// Username and Password enable HTTP Basic authentication.
	Username string
	Password string
	// AuthHost restricts the credentials above to one host. Empty means all hosts.
	AuthHost string
}

// New builds an HTTP client from opts.
func New(opts Options) (*http.Client, error) {
	if opts.ConnectTimeout <= 0 || opts.ReadTimeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		// The fetcher negotiates and decodes gzip, deflate and br itself.
		DisableCompression: true,
	}

	if opts.ProxyAddress != "" {
		dial, err := socks5DialContext(opts.ProxyAddress, dialer)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dial
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	var rt http.RoundTripper = transport
	if opts.Cookie != "" || len(opts.Headers) > 0 || opts.Username != "" {
		rt = &credentialTransport{
			base:     transport,
			cookie:   opts.Cookie,
			headers:  opts.Headers,
			username: opts.Username,
			password: opts.Password,
			host:     opts.AuthHost,
		}
	}

	return &http.Client{
		Transport: rt,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

func socks5DialContext(address string, forward *net.Dialer) (func(context.Context, string, string) (net.Conn, error), error) {
	if !ValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}
	d, err := proxy.SOCKS5("tcp", address, nil, forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}

// ValidProxyAddress reports whether address is "host:port" with a non-empty
// host and a port in 1..65535.
func ValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// credentialTransport adds the configured cookie, headers and Basic auth to
// every request, including the ones issued while following redirects.
type credentialTransport struct {
	base     http.RoundTripper
	cookie   string
	headers  map[string]string
	username string
	password string
	host     string
}

// RoundTrip implements http.RoundTripper.
func (t *credentialTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.host != "" && req.URL.Host != t.host {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	if t.username != "" && clone.Header.Get("Authorization") == "" {
		clone.SetBasicAuth(t.username, t.password)
	}
	return t.base.RoundTrip(clone)
}

// SOCKS5 handshake bytes used by CheckProxy.
const (
	socks5Version  = 0x05
	socks5AuthNone = 0x00
)

// CheckProxy verifies that a SOCKS5 proxy is listening at address and
// accepts clients without authentication. It only performs the method
// negotiation; no connection is requested through the proxy.
func CheckProxy(ctx context.Context, address string, timeout time.Duration) ProxyStatus {
	if timeout <= 0 {
		timeout = checkProxyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
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

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
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
	if resp[0] != socks5Version || resp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}
