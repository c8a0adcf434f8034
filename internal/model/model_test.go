package model

import (
	"testing"
	"time"
)

func TestFetchResultStatusText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result FetchResult
		want   string
	}{
		{"http 200", FetchResult{Outcome: OutcomeHTTP, StatusCode: 200}, "200"},
		{"http 404", FetchResult{Outcome: OutcomeHTTP, StatusCode: 404}, "404"},
		{"skipped ignores probe status", FetchResult{Outcome: OutcomeSkippedNonHTML, StatusCode: 200}, "skipped-non-html"},
		{"error", FetchResult{Outcome: OutcomeError}, "error"},
		{"empty outcome is an error", FetchResult{}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.result.StatusText(); got != tt.want {
				t.Errorf("StatusText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchResultClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		result FetchResult
		want   StatusClass
		broken bool
	}{
		{FetchResult{Outcome: OutcomeHTTP, StatusCode: 204}, ClassSuccess, false},
		{FetchResult{Outcome: OutcomeHTTP, StatusCode: 301}, ClassRedirect, false},
		{FetchResult{Outcome: OutcomeHTTP, StatusCode: 404}, ClassClientError, true},
		{FetchResult{Outcome: OutcomeHTTP, StatusCode: 503}, ClassServerError, true},
		{FetchResult{Outcome: OutcomeHTTP, StatusCode: 101}, ClassOther, false},
		{FetchResult{Outcome: OutcomeSkippedNonHTML}, ClassSkipped, false},
		{FetchResult{Outcome: OutcomeError}, ClassError, true},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			t.Parallel()
			if got := tt.result.Class(); got != tt.want {
				t.Errorf("Class() = %v, want %v", got, tt.want)
			}
			if got := tt.result.IsBroken(); got != tt.broken {
				t.Errorf("IsBroken() = %v, want %v", got, tt.broken)
			}
		})
	}
}

func TestBandFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want LatencyBand
	}{
		{0, BandFast},
		{time.Second, BandFast},
		{time.Second + time.Millisecond, BandModerate},
		{3 * time.Second, BandModerate},
		{3*time.Second + time.Millisecond, BandSlow},
	}

	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			t.Parallel()
			if got := BandFor(tt.d); got != tt.want {
				t.Errorf("BandFor(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}

func TestCrawlReportSummary(t *testing.T) {
	t.Parallel()

	report := NewCrawlReport("https://example.com/", "example.com")
	add := func(r FetchResult) { report.Results[r.URL] = r }
	add(FetchResult{URL: "https://example.com/", Outcome: OutcomeHTTP, StatusCode: 200, Elapsed: 100 * time.Millisecond})
	add(FetchResult{URL: "https://example.com/a", Outcome: OutcomeHTTP, StatusCode: 404, Elapsed: 2 * time.Second})
	add(FetchResult{URL: "https://example.com/b", Outcome: OutcomeError})
	add(FetchResult{URL: "https://example.com/c.pdf", Outcome: OutcomeSkippedNonHTML, Elapsed: 300 * time.Millisecond})

	s := report.Summary()
	if s.Total != 4 {
		t.Errorf("Total = %d, want 4", s.Total)
	}
	if s.Broken != 2 {
		t.Errorf("Broken = %d, want 2", s.Broken)
	}
	if s.ByClass[ClassSuccess] != 1 || s.ByClass[ClassClientError] != 1 || s.ByClass[ClassError] != 1 || s.ByClass[ClassSkipped] != 1 {
		t.Errorf("unexpected class counts: %v", s.ByClass)
	}
	if s.ByBand[BandFast] != 2 || s.ByBand[BandModerate] != 1 {
		t.Errorf("unexpected band counts: %v", s.ByBand)
	}
	if s.AverageElapsed != 800*time.Millisecond {
		t.Errorf("AverageElapsed = %v, want 800ms", s.AverageElapsed)
	}
	if len(s.Slowest) != 3 || s.Slowest[0].URL != "https://example.com/a" {
		t.Errorf("unexpected slowest list: %+v", s.Slowest)
	}
}

func TestCrawlReportSortedAndBroken(t *testing.T) {
	t.Parallel()

	report := NewCrawlReport("https://example.com/", "example.com")
	for _, u := range []string{"https://example.com/z", "https://example.com/a", "https://example.com/m"} {
		report.Results[u] = FetchResult{URL: u, Outcome: OutcomeHTTP, StatusCode: 500}
	}

	sorted := report.Sorted()
	if sorted[0].URL != "https://example.com/a" || sorted[2].URL != "https://example.com/z" {
		t.Errorf("results not sorted: %+v", sorted)
	}
	if got := len(report.BrokenResults()); got != 3 {
		t.Errorf("BrokenResults() len = %d, want 3", got)
	}
}

func TestCrawlReportDuration(t *testing.T) {
	t.Parallel()

	report := NewCrawlReport("https://example.com/", "example.com")
	if report.Duration() != 0 {
		t.Error("expected zero duration before the crawl finishes")
	}
	report.StartedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(90 * time.Second)
	if report.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", report.Duration())
	}
}
