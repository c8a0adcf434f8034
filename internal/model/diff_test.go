package model

import (
	"slices"
	"testing"
)

func reportWith(results ...FetchResult) *CrawlReport {
	r := NewCrawlReport("https://example.com/", "example.com")
	for _, res := range results {
		r.Results[res.URL] = res
	}
	return r
}

func page(url string, status int, hash string) FetchResult {
	return FetchResult{URL: url, Outcome: OutcomeHTTP, StatusCode: status, ContentHash: hash}
}

func TestCompareReports(t *testing.T) {
	t.Parallel()

	t.Run("classifies every URL", func(t *testing.T) {
		t.Parallel()

		previous := reportWith(
			page("https://example.com/", 200, "a"),
			page("https://example.com/old", 200, "b"),
			page("https://example.com/flaky", 200, "c"),
			page("https://example.com/edited", 200, "d"),
		)
		current := reportWith(
			page("https://example.com/", 200, "a"),
			page("https://example.com/new", 200, "e"),
			page("https://example.com/flaky", 503, "c"),
			page("https://example.com/edited", 200, "d2"),
		)

		diff := CompareReports(previous, current)
		if !slices.Equal(diff.NewURLs, []string{"https://example.com/new"}) {
			t.Errorf("NewURLs = %v", diff.NewURLs)
		}
		if !slices.Equal(diff.VanishedURLs, []string{"https://example.com/old"}) {
			t.Errorf("VanishedURLs = %v", diff.VanishedURLs)
		}
		want := []StatusChange{{URL: "https://example.com/flaky", Previous: "200", Current: "503"}}
		if !slices.Equal(diff.StatusChanges, want) {
			t.Errorf("StatusChanges = %v", diff.StatusChanges)
		}
		if !slices.Equal(diff.ContentChanges, []string{"https://example.com/edited"}) {
			t.Errorf("ContentChanges = %v", diff.ContentChanges)
		}
		if diff.UnchangedCount != 1 {
			t.Errorf("UnchangedCount = %d, want 1", diff.UnchangedCount)
		}
		if diff.Trend != TrendWorsened {
			t.Errorf("Trend = %q, want worsened", diff.Trend)
		}
		if !diff.HasChanges() {
			t.Error("expected changes")
		}
	})

	t.Run("identical runs have no changes", func(t *testing.T) {
		t.Parallel()

		r := reportWith(page("https://example.com/", 200, "a"))
		diff := CompareReports(r, r)
		if diff.HasChanges() || diff.Trend != TrendUnchanged || diff.UnchangedCount != 1 {
			t.Errorf("unexpected diff: %+v", diff)
		}
	})

	t.Run("fixing a broken page improves the trend", func(t *testing.T) {
		t.Parallel()

		previous := reportWith(page("https://example.com/x", 404, ""))
		current := reportWith(page("https://example.com/x", 200, "h"))
		diff := CompareReports(previous, current)
		if diff.Trend != TrendImproved {
			t.Errorf("Trend = %q, want improved", diff.Trend)
		}
		if len(diff.ContentChanges) != 0 {
			t.Error("a missing previous hash is not a content change")
		}
	})
}
