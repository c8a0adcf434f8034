package model

import (
	"cmp"
	"slices"
	"time"
)

// Trend directions of a RunDiff.
const (
	TrendImproved  = "improved"
	TrendWorsened  = "worsened"
	TrendUnchanged = "unchanged"
)

// RunInfo identifies one side of a comparison.
type RunInfo struct {
	ID        int64     `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Pages     int       `json:"pages"`
	Broken    int       `json:"broken"`
}

// StatusChange records a URL whose status text differs between two runs.
type StatusChange struct {
	URL      string `json:"url"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// RunDiff is the page-by-page difference between two crawls of one host.
type RunDiff struct {
	Host     string  `json:"host"`
	Previous RunInfo `json:"previous"`
	Current  RunInfo `json:"current"`

	NewURLs        []string       `json:"new_urls,omitempty"`
	VanishedURLs   []string       `json:"vanished_urls,omitempty"`
	StatusChanges  []StatusChange `json:"status_changes,omitempty"`
	ContentChanges []string       `json:"content_changes,omitempty"`
	UnchangedCount int            `json:"unchanged_count"`

	// Trend compares the number of broken pages.
	Trend string `json:"trend"`
}

// HasChanges reports whether anything differs between the two runs.
func (d *RunDiff) HasChanges() bool {
	return len(d.NewURLs) > 0 || len(d.VanishedURLs) > 0 ||
		len(d.StatusChanges) > 0 || len(d.ContentChanges) > 0
}

func runInfo(r *CrawlReport) RunInfo {
	return RunInfo{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		Pages:     len(r.Results),
		Broken:    len(r.BrokenResults()),
	}
}

// CompareReports lists the URLs that appeared, vanished, changed status or
// changed content between previous and current. All lists are sorted.
func CompareReports(previous, current *CrawlReport) *RunDiff {
	diff := &RunDiff{
		Host:     current.Host,
		Previous: runInfo(previous),
		Current:  runInfo(current),
	}

	for u, cur := range current.Results {
		prev, ok := previous.Results[u]
		if !ok {
			diff.NewURLs = append(diff.NewURLs, u)
			continue
		}
		changed := false
		if prev.StatusText() != cur.StatusText() {
			diff.StatusChanges = append(diff.StatusChanges, StatusChange{
				URL:      u,
				Previous: prev.StatusText(),
				Current:  cur.StatusText(),
			})
			changed = true
		}
		if prev.ContentHash != "" && cur.ContentHash != "" && prev.ContentHash != cur.ContentHash {
			diff.ContentChanges = append(diff.ContentChanges, u)
			changed = true
		}
		if !changed {
			diff.UnchangedCount++
		}
	}
	for u := range previous.Results {
		if _, ok := current.Results[u]; !ok {
			diff.VanishedURLs = append(diff.VanishedURLs, u)
		}
	}

	slices.Sort(diff.NewURLs)
	slices.Sort(diff.VanishedURLs)
	slices.Sort(diff.ContentChanges)
	slices.SortFunc(diff.StatusChanges, func(a, b StatusChange) int {
		return cmp.Compare(a.URL, b.URL)
	})

	switch {
	case diff.Current.Broken < diff.Previous.Broken:
		diff.Trend = TrendImproved
	case diff.Current.Broken > diff.Previous.Broken:
		diff.Trend = TrendWorsened
	default:
		diff.Trend = TrendUnchanged
	}
	return diff
}
