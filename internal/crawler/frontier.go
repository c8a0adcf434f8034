package crawler

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/nao1215/linkwalk/internal/model"
)

var (
	// ErrDoubleCompletion is returned when a URL is completed a second time.
	// It means the scheduler handed the same URL to two workers and is fatal
	// for the crawl.
	ErrDoubleCompletion = errors.New("url completed twice")

	// ErrNotInFlight is returned when a URL is completed without being claimed.
	ErrNotInFlight = errors.New("url completed without being claimed")
)

// Item is a URL waiting in, or claimed from, the frontier. URL is the
// canonical key; Target is the address to request, when it differs.
type Item struct {
	URL    string
	Target string
	Depth  int
}

// FetchURL returns the address to request for the item.
func (i Item) FetchURL() string {
	if i.Target != "" {
		return i.Target
	}
	return i.URL
}

type urlState int

const (
	statePending urlState = iota + 1
	stateInFlight
	stateVisited
)

// Frontier owns the crawl state of one run: the pending queue, the in-flight
// set, the visited set and the recorded results. Every URL is in at most one
// of the three sets and never leaves the visited set. All methods are safe
// for concurrent use.
type Frontier struct {
	mu       sync.Mutex
	queue    []Item
	state    map[string]urlState
	results  map[string]model.FetchResult
	inFlight int
	maxURLs  int
	refused  map[string]struct{}
	changed  chan struct{}
}

// FrontierOption configures a Frontier.
type FrontierOption func(*Frontier)

// WithMaxURLs caps the number of distinct URLs the frontier admits.
// Zero or less means no cap.
func WithMaxURLs(n int) FrontierOption {
	return func(f *Frontier) {
		f.maxURLs = n
	}
}

// NewFrontier creates an empty frontier.
func NewFrontier(opts ...FrontierOption) *Frontier {
	f := &Frontier{
		state:   make(map[string]urlState),
		results: make(map[string]model.FetchResult),
		refused: make(map[string]struct{}),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Offer admits every URL that is not already pending, in flight or visited,
// and returns how many were admitted. URLs must already be normalized.
func (f *Frontier) Offer(depth int, urls ...string) int {
	links := make([]Link, len(urls))
	for i, u := range urls {
		links[i] = Link{URL: u}
	}
	return f.OfferLinks(depth, links...)
}

// OfferLinks is Offer for links that carry a request target. The first
// target offered for a URL is the one fetched.
func (f *Frontier) OfferLinks(depth int, links ...Link) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	added := 0
	for _, l := range links {
		if _, seen := f.state[l.URL]; seen {
			continue
		}
		if f.maxURLs > 0 && len(f.state) >= f.maxURLs {
			f.refused[l.URL] = struct{}{}
			continue
		}
		f.state[l.URL] = statePending
		f.queue = append(f.queue, Item{URL: l.URL, Target: l.Target, Depth: depth})
		added++
	}
	if added > 0 {
		f.notifyLocked()
	}
	return added
}

// ClaimNext moves the oldest pending URL to the in-flight set.
// It reports false when nothing is pending.
func (f *Frontier) ClaimNext() (Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return Item{}, false
	}
	item := f.queue[0]
	f.queue[0] = Item{}
	f.queue = f.queue[1:]
	f.state[item.URL] = stateInFlight
	f.inFlight++
	return item, true
}

// Complete moves url from in flight to visited and records its result.
// Completing a visited URL returns ErrDoubleCompletion; completing a URL that
// was never claimed returns ErrNotInFlight. Neither changes any state.
func (f *Frontier) Complete(url string, result model.FetchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state[url] {
	case stateInFlight:
	case stateVisited:
		return fmt.Errorf("%w: %s", ErrDoubleCompletion, url)
	default:
		return fmt.Errorf("%w: %s", ErrNotInFlight, url)
	}
	f.state[url] = stateVisited
	f.inFlight--
	f.results[url] = result
	f.notifyLocked()
	return nil
}

// Idle reports whether nothing is pending and nothing is in flight.
// Once true it stays true, since only in-flight work offers new URLs.
func (f *Frontier) Idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0 && f.inFlight == 0
}

// Changed returns a channel that is closed at the next Offer that admits
// something or the next Complete.
func (f *Frontier) Changed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

func (f *Frontier) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// FrontierCounts is a snapshot of the set sizes.
type FrontierCounts struct {
	Pending  int
	InFlight int
	Visited  int
}

// Counts returns the current set sizes.
func (f *Frontier) Counts() FrontierCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FrontierCounts{
		Pending:  len(f.queue),
		InFlight: f.inFlight,
		Visited:  len(f.results),
	}
}

// Results returns a copy of the recorded results keyed by URL.
func (f *Frontier) Results() map[string]model.FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.results)
}

// Skipped returns how many distinct URLs the WithMaxURLs cap refused.
func (f *Frontier) Skipped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refused)
}
