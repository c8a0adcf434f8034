package crawler

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptrace"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/crypto/sha3"

	"github.com/nao1215/linkwalk/internal/model"
)

// ErrReadTimeout is recorded when a response does not arrive in full within
// the read budget.
var ErrReadTimeout = errors.New("read timeout")

// errTooManyRedirects matches the default *http.Client redirect limit, which
// a replaced CheckRedirect would otherwise drop.
var errTooManyRedirects = errors.New("stopped after 10 redirects")

// Fetcher retrieves one URL. It never returns an error: every failure is
// folded into the returned FetchResult. The body is non-nil only for an HTML
// response, whatever its status code.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (model.FetchResult, []byte)
}

// HTTPFetcher fetches pages with an *http.Client. The client owns the
// connect budget; the fetcher arms the read budget as soon as a connection
// is obtained, so a stalled header wait or body transfer both end the
// request.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	readTimeout time.Duration
	headProbe   bool
	logger      *slog.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize truncates bodies larger than size bytes.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithReadTimeout sets the read budget. Zero disables it.
func WithReadTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.readTimeout = d
	}
}

// WithHeadProbe toggles the HEAD request sent before each GET.
func WithHeadProbe(enabled bool) FetcherOption {
	return func(f *HTTPFetcher) {
		f.headProbe = enabled
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewHTTPFetcher creates a fetcher that sends requests through client.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      client,
		userAgent:   "linkwalk/1.0",
		maxBodySize: 5 * 1024 * 1024,
		readTimeout: 15 * time.Second,
		headProbe:   true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.client = scopedRedirects(client)
	return f
}

type redirectScopeKey struct{}

// withRedirectScope makes fetches under ctx stop at any redirect whose
// target inScope rejects. The redirect response itself is then the result.
func withRedirectScope(ctx context.Context, inScope func(*neturl.URL) bool) context.Context {
	return context.WithValue(ctx, redirectScopeKey{}, inScope)
}

// scopedRedirects returns a shallow copy of client whose redirect policy
// honours withRedirectScope before the client's own policy.
func scopedRedirects(client *http.Client) *http.Client {
	c := *client
	next := client.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if inScope, ok := req.Context().Value(redirectScopeKey{}).(func(*neturl.URL) bool); ok && !inScope(req.URL) {
			return http.ErrUseLastResponse
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= 10 {
			return errTooManyRedirects
		}
		return nil
	}
	return &c
}

// Fetch probes url with HEAD, then GETs it. A successful non-HTML response
// is reported as skipped without reading its body; any other non-HTML
// response keeps its literal status. Transport failures are reported as
// OutcomeError with zero elapsed time. There are no retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (model.FetchResult, []byte) {
	result := model.FetchResult{URL: url, FetchedAt: time.Now()}

	if f.headProbe {
		done, err := f.probe(ctx, &result)
		if err != nil {
			return failed(result, err), nil
		}
		if done {
			return result, nil
		}
	}

	start := time.Now()
	resp, x, err := f.roundTrip(ctx, http.MethodGet, url)
	if err != nil {
		return failed(result, err), nil
	}
	defer x.release()

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")
	result.FinalURL = finalURL(resp, url)
	if !isHTML(result.ContentType) {
		_ = resp.Body.Close()
		result.Outcome = nonHTMLOutcome(resp.StatusCode)
		result.Elapsed = time.Since(start)
		return result, nil
	}

	body, err := f.readBody(resp)
	if err != nil {
		return failed(result, x.wrap(err)), nil
	}
	result.Outcome = model.OutcomeHTTP
	result.Elapsed = time.Since(start)
	sum := sha3.Sum256(body)
	result.ContentHash = hex.EncodeToString(sum[:])
	return result, body
}

// probe sends the HEAD request. It reports true when the probe alone settles
// the result, which happens for a non-HTML Content-Type. Servers that reject
// HEAD fall through to GET.
func (f *HTTPFetcher) probe(ctx context.Context, result *model.FetchResult) (bool, error) {
	start := time.Now()
	resp, x, err := f.roundTrip(ctx, http.MethodHead, result.URL)
	if err != nil {
		return false, err
	}
	defer x.release()
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		f.logger.Debug("HEAD not supported, using GET", "url", result.URL, "status", resp.StatusCode)
		return false, nil
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" || isHTML(ct) {
		return false, nil
	}
	result.Outcome = nonHTMLOutcome(resp.StatusCode)
	result.StatusCode = resp.StatusCode
	result.ContentType = ct
	result.FinalURL = finalURL(resp, result.URL)
	result.Elapsed = time.Since(start)
	return true, nil
}

// nonHTMLOutcome classifies a response that carries no HTML. Only a 2xx is
// a skipped resource; an error page or an unfollowed redirect is still
// reported by its status code.
func nonHTMLOutcome(status int) model.Outcome {
	if status >= 200 && status < 300 {
		return model.OutcomeSkippedNonHTML
	}
	return model.OutcomeHTTP
}

// finalURL returns the address that produced resp, or "" when that is the
// requested url.
func finalURL(resp *http.Response, requested string) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	if u := resp.Request.URL.String(); u != requested {
		return u
	}
	return ""
}

// exchange tracks one request's read budget.
type exchange struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   chan struct{}
	once   sync.Once
}

// release disarms the read budget and frees the request context. It must be
// called once the response body is no longer needed.
func (x *exchange) release() {
	x.once.Do(func() { close(x.stop) })
	x.cancel(nil)
}

// wrap replaces a bare cancellation caused by the read budget with
// ErrReadTimeout.
func (x *exchange) wrap(err error) error {
	if errors.Is(context.Cause(x.ctx), ErrReadTimeout) {
		return fmt.Errorf("%w: %w", ErrReadTimeout, err)
	}
	return err
}

// roundTrip sends one request with the read budget armed from the moment a
// connection is obtained.
func (f *HTTPFetcher) roundTrip(ctx context.Context, method, url string) (*http.Response, *exchange, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	x := &exchange{ctx: reqCtx, cancel: cancel, stop: make(chan struct{})}

	if f.readTimeout > 0 {
		var armed sync.Once
		trace := &httptrace.ClientTrace{
			GotConn: func(httptrace.GotConnInfo) {
				armed.Do(func() { go f.watchRead(x) })
			},
		}
		reqCtx = httptrace.WithClientTrace(reqCtx, trace)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		x.release()
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		err = x.wrap(err)
		x.release()
		return nil, nil, err
	}
	return resp, x, nil
}

func (f *HTTPFetcher) watchRead(x *exchange) {
	timer := time.NewTimer(f.readTimeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		x.cancel(ErrReadTimeout)
	case <-x.stop:
	}
}

// readBody decodes the Content-Encoding and reads at most maxBodySize bytes.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func failed(result model.FetchResult, err error) model.FetchResult {
	result.Outcome = model.OutcomeError
	result.StatusCode = 0
	result.Elapsed = 0
	result.Error = err.Error()
	return result
}

// isHTML reports whether contentType may hold an HTML document. A missing
// Content-Type is given the benefit of the doubt.
func isHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
