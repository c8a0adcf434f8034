package model

import (
	"cmp"
	"maps"
	"slices"
	"time"
)

// DefaultSlowestCount is the number of slowest pages kept in a Summary.
const DefaultSlowestCount = 5

// CrawlReport is the outcome of crawling one seed.
type CrawlReport struct {
	// ID is the database identifier once the report has been persisted.
	ID int64 `json:"id,omitempty"`

	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// Host is the seed's host, used as the key for history and site settings.
	Host string `json:"host"`

	// StartedAt and FinishedAt bound the crawl.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Results maps each visited URL to its fetch result.
	Results map[string]FetchResult `json:"results"`

	// Cancelled is true when the crawl was interrupted before reaching its
	// fixed point; Results then holds what was collected so far.
	Cancelled bool `json:"cancelled"`

	// SkippedByLimit counts URLs refused because the page cap was reached.
	SkippedByLimit int `json:"skipped_by_limit,omitempty"`

	// Error describes a fatal crawl failure, if any.
	Error string `json:"error,omitempty"`
}

// NewCrawlReport creates an empty report for seed.
func NewCrawlReport(seed, host string) *CrawlReport {
	return &CrawlReport{
		Seed:    seed,
		Host:    host,
		Results: make(map[string]FetchResult),
	}
}

// Duration is the wall-clock length of the crawl.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Sorted returns the results ordered by URL.
func (r *CrawlReport) Sorted() []FetchResult {
	keys := slices.Sorted(maps.Keys(r.Results))
	out := make([]FetchResult, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.Results[k])
	}
	return out
}

// Summary aggregates a report for display.
type Summary struct {
	Total          int                 `json:"total"`
	ByClass        map[StatusClass]int `json:"-"`
	ByBand         map[LatencyBand]int `json:"-"`
	Broken         int                 `json:"broken"`
	AverageElapsed time.Duration       `json:"average_elapsed"`
	Slowest        []FetchResult       `json:"slowest"`
}

// Summary computes counts per status class and latency band, the average
// latency over results that have one, and the slowest pages.
func (r *CrawlReport) Summary() Summary {
	s := Summary{
		ByClass: make(map[StatusClass]int),
		ByBand:  make(map[LatencyBand]int),
	}

	var total time.Duration
	timed := 0
	all := r.Sorted()
	for _, res := range all {
		s.Total++
		s.ByClass[res.Class()]++
		if res.IsBroken() {
			s.Broken++
		}
		if res.Outcome == OutcomeError {
			continue
		}
		s.ByBand[BandFor(res.Elapsed)]++
		total += res.Elapsed
		timed++
	}
	if timed > 0 {
		s.AverageElapsed = total / time.Duration(timed)
	}

	slices.SortStableFunc(all, func(a, b FetchResult) int {
		return cmp.Compare(b.Elapsed, a.Elapsed)
	})
	n := min(DefaultSlowestCount, len(all))
	for _, res := range all[:n] {
		if res.Elapsed > 0 {
			s.Slowest = append(s.Slowest, res)
		}
	}
	return s
}

// BrokenResults returns the 4xx, 5xx and transport-error results, sorted by URL.
func (r *CrawlReport) BrokenResults() []FetchResult {
	var out []FetchResult
	for _, res := range r.Sorted() {
		if res.IsBroken() {
			out = append(out, res)
		}
	}
	return out
}
