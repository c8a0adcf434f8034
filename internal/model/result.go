package model

import (
	"strconv"
	"time"
)

// FetchResult is the record of one fetch attempt for one URL.
// Exactly one exists per visited URL and it is not modified after the URL
// is marked visited.
type FetchResult struct {
	// URL is the normalized URL that was fetched.
	URL string `json:"url"`

	// FinalURL is the address that answered after redirects, when it is not
	// URL itself.
	FinalURL string `json:"final_url,omitempty"`

	// Outcome says whether a response arrived, the resource was skipped,
	// or the transport failed.
	Outcome Outcome `json:"outcome"`

	// StatusCode is the HTTP status for OutcomeHTTP. For a skipped resource it
	// carries the probe's status when one was received; otherwise it is zero.
	StatusCode int `json:"status_code,omitempty"`

	// Elapsed is the wall-clock duration of the request. Zero on transport errors.
	Elapsed time.Duration `json:"elapsed"`

	// ContentType is the response Content-Type header.
	ContentType string `json:"content_type,omitempty"`

	// Error is the transport error message for OutcomeError.
	Error string `json:"error,omitempty"`

	// LinksFound is the number of same-origin links accepted from this page.
	LinksFound int `json:"links_found"`

	// ContentHash is the hex SHA3-256 of the response body, when one was read.
	ContentHash string `json:"content_hash,omitempty"`

	// Depth is the number of links followed from the seed to reach the URL.
	Depth int `json:"depth"`

	// FetchedAt is when the fetch started.
	FetchedAt time.Time `json:"fetched_at"`
}

// StatusText renders the classification written to the CSV and console:
// the decimal status code, "skipped-non-html" or "error".
func (r FetchResult) StatusText() string {
	switch r.Outcome {
	case OutcomeHTTP:
		return strconv.Itoa(r.StatusCode)
	case OutcomeSkippedNonHTML, OutcomeError:
		return string(r.Outcome)
	default:
		return string(OutcomeError)
	}
}

// Class returns the status class of the result.
func (r FetchResult) Class() StatusClass {
	switch r.Outcome {
	case OutcomeSkippedNonHTML:
		return ClassSkipped
	case OutcomeHTTP:
	default:
		return ClassError
	}
	switch {
	case r.StatusCode >= 200 && r.StatusCode < 300:
		return ClassSuccess
	case r.StatusCode >= 300 && r.StatusCode < 400:
		return ClassRedirect
	case r.StatusCode >= 400 && r.StatusCode < 500:
		return ClassClientError
	case r.StatusCode >= 500 && r.StatusCode < 600:
		return ClassServerError
	default:
		return ClassOther
	}
}

// IsBroken reports whether the page failed from a visitor's point of view:
// a 4xx, a 5xx or a transport error.
func (r FetchResult) IsBroken() bool {
	switch r.Class() {
	case ClassClientError, ClassServerError, ClassError:
		return true
	default:
		return false
	}
}
