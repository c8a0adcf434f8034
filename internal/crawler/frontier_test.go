package crawler

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/linkwalk/internal/model"
)

func TestFrontier(t *testing.T) {
	t.Parallel()

	t.Run("claims in FIFO order", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Offer(0, "https://example.com/a", "https://example.com/b")
		f.Offer(1, "https://example.com/c")

		for _, want := range []string{"/a", "/b", "/c"} {
			item, ok := f.ClaimNext()
			if !ok || item.URL != "https://example.com"+want {
				t.Fatalf("ClaimNext() = %+v, %v; want %s", item, ok, want)
			}
		}
		if _, ok := f.ClaimNext(); ok {
			t.Error("expected empty frontier")
		}
	})

	t.Run("offer is idempotent across all three sets", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		u := "https://example.com/"
		if got := f.Offer(0, u, u); got != 1 {
			t.Fatalf("first Offer admitted %d, want 1", got)
		}
		if got := f.Offer(0, u); got != 0 {
			t.Errorf("Offer of pending URL admitted %d", got)
		}

		item, _ := f.ClaimNext()
		if got := f.Offer(0, u); got != 0 {
			t.Errorf("Offer of in-flight URL admitted %d", got)
		}
		if err := f.Complete(item.URL, model.FetchResult{URL: u}); err != nil {
			t.Fatalf("Complete() error: %v", err)
		}
		if got := f.Offer(0, u); got != 0 {
			t.Errorf("Offer of visited URL admitted %d", got)
		}
		if c := f.Counts(); c != (FrontierCounts{Visited: 1}) {
			t.Errorf("Counts() = %+v", c)
		}
	})

	t.Run("double completion is an error and changes nothing", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		u := "https://example.com/"
		f.Offer(0, u)
		item, _ := f.ClaimNext()
		first := model.FetchResult{URL: u, Outcome: model.OutcomeHTTP, StatusCode: 200}
		if err := f.Complete(item.URL, first); err != nil {
			t.Fatalf("Complete() error: %v", err)
		}

		err := f.Complete(item.URL, model.FetchResult{URL: u, Outcome: model.OutcomeError})
		if !errors.Is(err, ErrDoubleCompletion) {
			t.Fatalf("expected ErrDoubleCompletion, got %v", err)
		}
		if got := f.Results()[u]; got.StatusCode != 200 {
			t.Errorf("recorded result was overwritten: %+v", got)
		}
	})

	t.Run("completing an unclaimed URL is an error", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Offer(0, "https://example.com/pending")
		for _, u := range []string{"https://example.com/pending", "https://example.com/unknown"} {
			if err := f.Complete(u, model.FetchResult{}); !errors.Is(err, ErrNotInFlight) {
				t.Errorf("Complete(%s) error = %v, want ErrNotInFlight", u, err)
			}
		}
	})

	t.Run("idle only with nothing pending and nothing in flight", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		if !f.Idle() {
			t.Error("empty frontier should be idle")
		}
		f.Offer(0, "https://example.com/")
		if f.Idle() {
			t.Error("frontier with pending work is not idle")
		}
		item, _ := f.ClaimNext()
		if f.Idle() {
			t.Error("frontier with in-flight work is not idle")
		}
		_ = f.Complete(item.URL, model.FetchResult{})
		if !f.Idle() {
			t.Error("expected idle after completion")
		}
	})

	t.Run("max URLs caps admission", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(WithMaxURLs(2))
		if got := f.Offer(0, "https://e.com/1", "https://e.com/2", "https://e.com/3"); got != 2 {
			t.Errorf("Offer admitted %d, want 2", got)
		}
		if f.Skipped() != 1 {
			t.Errorf("Skipped() = %d, want 1", f.Skipped())
		}
	})

	t.Run("a refused URL offered again is counted once", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(WithMaxURLs(1))
		f.Offer(0, "https://e.com/")
		for range 3 {
			f.Offer(1, "https://e.com/a", "https://e.com/b")
		}
		if f.Skipped() != 2 {
			t.Errorf("Skipped() = %d, want 2", f.Skipped())
		}
	})

	t.Run("claimed item carries the first offered target", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.OfferLinks(0, Link{URL: "https://e.com/docs", Target: "https://e.com/docs/"})
		f.OfferLinks(0, Link{URL: "https://e.com/docs", Target: "https://e.com/docs"})
		item, ok := f.ClaimNext()
		if !ok || item.FetchURL() != "https://e.com/docs/" {
			t.Errorf("FetchURL() = %q, want the trailing-slash target", item.FetchURL())
		}
		if _, ok := f.ClaimNext(); ok {
			t.Error("expected the second offer to be deduplicated")
		}
		if got := (Item{URL: "https://e.com/a"}).FetchURL(); got != "https://e.com/a" {
			t.Errorf("FetchURL() without target = %q", got)
		}
	})

	t.Run("changed channel closes on offer and complete", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		ch := f.Changed()
		f.Offer(0, "https://example.com/")
		assertClosed(t, ch)

		ch = f.Changed()
		item, _ := f.ClaimNext()
		_ = f.Complete(item.URL, model.FetchResult{})
		assertClosed(t, ch)

		ch = f.Changed()
		f.Offer(0, "https://example.com/")
		select {
		case <-ch:
			t.Error("offer that admitted nothing should not signal")
		default:
		}
	})
}

// TestFrontierConcurrentClaims checks that concurrent workers never claim the
// same URL and that the sets stay disjoint.
func TestFrontierConcurrentClaims(t *testing.T) {
	t.Parallel()

	const urls = 500
	f := NewFrontier()
	for i := range urls {
		f.Offer(0, fmt.Sprintf("https://example.com/%d", i))
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, ok := f.ClaimNext()
				if !ok {
					return
				}
				mu.Lock()
				claimed[item.URL]++
				mu.Unlock()
				// Re-offering must never resurrect a claimed URL.
				f.Offer(1, item.URL)
				if err := f.Complete(item.URL, model.FetchResult{URL: item.URL}); err != nil {
					t.Errorf("Complete() error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if len(claimed) != urls {
		t.Errorf("claimed %d distinct URLs, want %d", len(claimed), urls)
	}
	for u, n := range claimed {
		if n != 1 {
			t.Errorf("%s claimed %d times", u, n)
		}
	}
	if c := f.Counts(); c.Pending != 0 || c.InFlight != 0 || c.Visited != urls {
		t.Errorf("Counts() = %+v", c)
	}
}

func assertClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Error("expected channel to be closed")
	}
}
