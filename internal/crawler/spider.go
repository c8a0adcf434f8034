package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/linkwalk/internal/model"
)

// Phase is the lifecycle state of a crawl.
type Phase int32

const (
	// PhaseIdle is before Crawl is called.
	PhaseIdle Phase = iota
	// PhaseRunning means workers are claiming and fetching URLs.
	PhaseRunning
	// PhaseDraining means a worker saw an empty frontier with nothing in
	// flight and is confirming it over one more tick.
	PhaseDraining
	// PhaseDone means every worker has exited.
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Observer receives each result as soon as its URL is marked visited.
// It is called from worker goroutines and must be safe for concurrent use.
type Observer func(model.FetchResult)

// Spider crawls every same-origin page reachable from a seed with a fixed
// pool of workers sharing one Frontier. Each Crawl starts from fresh state,
// so a Spider can be reused sequentially; Phase reports the most recent run.
type Spider struct {
	fetcher   Fetcher
	extractor Extractor

	workers         int
	delay           time.Duration
	idleWait        time.Duration
	maxDepth        int
	maxPages        int
	rateLimit       float64
	allowSubdomains bool
	filter          pathFilter

	logger   *slog.Logger
	observer Observer

	phase atomic.Int32
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithDelay sets the pause each worker takes after its own fetch.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithIdleWait sets how long a worker facing an empty frontier waits
// before checking again.
func WithIdleWait(d time.Duration) SpiderOption {
	return func(s *Spider) {
		if d > 0 {
			s.idleWait = d
		}
	}
}

// WithMaxDepth limits how many links from the seed are followed.
// Negative means unlimited; 0 fetches only the seed.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages caps the number of distinct URLs admitted. 0 means no cap.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithRateLimit caps the crawl at rps requests per second across all
// workers. 0 disables the cap.
func WithRateLimit(rps float64) SpiderOption {
	return func(s *Spider) {
		s.rateLimit = rps
	}
}

// WithSubdomains lets the crawl follow hosts that share a registrable label
// with the seed.
func WithSubdomains(allow bool) SpiderOption {
	return func(s *Spider) {
		s.allowSubdomains = allow
	}
}

// WithIgnorePatterns skips URLs whose path matches any glob pattern
// (e.g. "/admin/*", "*.pdf").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.filter.ignore = patterns
	}
}

// WithFollowPatterns restricts the crawl to URLs whose path matches at least
// one glob pattern. The seed is always fetched.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.filter.follow = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers a callback for every visited URL.
func WithObserver(fn Observer) SpiderOption {
	return func(s *Spider) {
		s.observer = fn
	}
}

// NewSpider creates a Spider that fetches with fetcher and finds links with
// extractor.
func NewSpider(fetcher Fetcher, extractor Extractor, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:   fetcher,
		extractor: extractor,
		workers:   5,
		delay:     500 * time.Millisecond,
		idleWait:  250 * time.Millisecond,
		maxDepth:  -1,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the lifecycle state of the most recent crawl.
func (s *Spider) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Spider) setPhase(from, to Phase) {
	if s.phase.CompareAndSwap(int32(from), int32(to)) {
		s.logger.Debug("crawl phase changed", "from", from, "to", to)
	}
}

// Crawl fetches every URL reachable from seed exactly once and returns one
// result per visited URL.
//
// The crawl ends when the frontier is empty and nothing is in flight. When
// ctx is cancelled, workers stop claiming new URLs, fetches already in flight
// run to completion or to their own timeouts, and the partial report is
// returned together with ctx.Err(). A double completion is fatal and is
// returned with the partial report as well.
func (s *Spider) Crawl(ctx context.Context, seed string) (*model.CrawlReport, error) {
	norm, err := NewNormalizer(seed, s.allowSubdomains)
	if err != nil {
		return nil, err
	}

	report := model.NewCrawlReport(norm.Seed(), norm.Host())
	report.StartedAt = time.Now()

	run := &crawlRun{
		spider:   s,
		norm:     norm,
		frontier: NewFrontier(WithMaxURLs(s.maxPages)),
		fetchCtx: withRedirectScope(context.WithoutCancel(ctx), norm.InScope),
	}
	if s.rateLimit > 0 {
		run.limiter = rate.NewLimiter(rate.Limit(s.rateLimit), 1)
	}
	run.frontier.OfferLinks(0, norm.SeedLink())

	s.phase.Store(int32(PhaseIdle))
	s.setPhase(PhaseIdle, PhaseRunning)
	s.logger.Debug("crawl started", "seed", norm.Seed(), "workers", s.workers)

	g, gctx := errgroup.WithContext(ctx)
	for id := range s.workers {
		g.Go(func() error {
			return run.work(gctx, id)
		})
	}
	err = g.Wait()

	s.phase.Store(int32(PhaseDone))
	report.FinishedAt = time.Now()
	report.Results = run.frontier.Results()
	report.SkippedByLimit = run.frontier.Skipped()

	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		report.Cancelled = true
		s.logger.Warn("crawl cancelled", "seed", norm.Seed(), "visited", len(report.Results))
		return report, ctxErr
	}
	s.logger.Debug("crawl finished", "seed", norm.Seed(), "visited", len(report.Results),
		"duration", report.Duration())
	return report, nil
}

// crawlRun is the state of one Crawl call.
type crawlRun struct {
	spider   *Spider
	norm     *Normalizer
	frontier *Frontier
	limiter  *rate.Limiter

	// fetchCtx is detached from cancellation so that a claimed URL is always
	// fetched and completed.
	fetchCtx context.Context
}

// work is the loop of one worker.
func (r *crawlRun) work(ctx context.Context, id int) error {
	s := r.spider
	for {
		if ctx.Err() != nil {
			return nil
		}

		item, ok := r.frontier.ClaimNext()
		if !ok {
			if r.waitForWork(ctx) {
				s.logger.Debug("worker exiting", "worker", id)
				return nil
			}
			continue
		}

		result := r.visit(item)
		if err := r.frontier.Complete(item.URL, result); err != nil {
			return err
		}
		if s.observer != nil {
			s.observer(result)
		}

		if !sleep(ctx, s.delay) {
			return nil
		}
	}
}

// waitForWork is called after an empty claim. It reports true when the worker
// should exit: the crawl reached its fixed point and stayed there for one
// more tick, or ctx was cancelled.
func (r *crawlRun) waitForWork(ctx context.Context) bool {
	s := r.spider
	changed := r.frontier.Changed()

	if r.frontier.Idle() {
		s.setPhase(PhaseRunning, PhaseDraining)
		if !sleep(ctx, s.idleWait) {
			return true
		}
		return r.frontier.Idle()
	}

	timer := time.NewTimer(s.idleWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-changed:
	case <-timer.C:
	}
	return false
}

// visit fetches one claimed URL and offers the links it contains. Links are
// offered before the URL is completed, so the frontier never looks idle
// while discovered work is still unrecorded.
//
// Relative links resolve against the address that served the body. A body
// served from another origin is not searched for links.
func (r *crawlRun) visit(item Item) model.FetchResult {
	s := r.spider

	if r.limiter != nil {
		_ = r.limiter.Wait(r.fetchCtx)
	}
	target := item.FetchURL()
	result, body := s.fetcher.Fetch(r.fetchCtx, target)
	result.URL = item.URL
	result.Depth = item.Depth
	base := target
	if result.FinalURL != "" {
		base = result.FinalURL
	}
	if c, ok := Canonical(base); ok && c == item.URL {
		result.FinalURL = ""
	}

	s.logger.Debug("fetched", "url", item.URL, "status", result.StatusText(), "elapsed", result.Elapsed)
	if result.Outcome == model.OutcomeError {
		s.logger.Debug("fetch failed", "url", item.URL, "error", result.Error)
	}

	if body == nil || (s.maxDepth >= 0 && item.Depth >= s.maxDepth) {
		return result
	}
	page, err := url.Parse(base)
	if err != nil {
		return result
	}
	if !r.norm.InScope(page) {
		s.logger.Debug("body served from another origin, links ignored", "url", item.URL, "final", base)
		return result
	}

	seen := make(map[string]struct{})
	var links []Link
	for _, href := range s.extractor.Extract(body, result.ContentType) {
		l, ok := r.norm.Resolve(page, href)
		if !ok || !s.filter.allows(l.URL) {
			continue
		}
		if _, dup := seen[l.URL]; dup {
			continue
		}
		seen[l.URL] = struct{}{}
		links = append(links, l)
	}
	result.LinksFound = len(links)
	if added := r.frontier.OfferLinks(item.Depth+1, links...); added > 0 {
		s.logger.Debug("links queued", "url", item.URL, "found", len(links), "new", added)
	}
	return result
}

// sleep waits for d or until ctx is done, and reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
