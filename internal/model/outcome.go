package model

import "time"

// Outcome classifies how a fetch attempt concluded.
type Outcome string

const (
	// OutcomeHTTP means a response was received; StatusCode holds the code.
	OutcomeHTTP Outcome = "http"

	// OutcomeSkippedNonHTML means the resource was not HTML and was not parsed.
	OutcomeSkippedNonHTML Outcome = "skipped-non-html"

	// OutcomeError means the request failed below HTTP: DNS, connect,
	// timeout or a broken body transfer.
	OutcomeError Outcome = "error"
)

// StatusClass groups results for coloring and summaries.
type StatusClass int

const (
	// ClassSuccess is any 2xx response.
	ClassSuccess StatusClass = iota
	// ClassRedirect is any 3xx response that was not followed.
	ClassRedirect
	// ClassClientError is any 4xx response.
	ClassClientError
	// ClassServerError is any 5xx response.
	ClassServerError
	// ClassOther is a 1xx or out-of-range code.
	ClassOther
	// ClassSkipped is a non-HTML resource.
	ClassSkipped
	// ClassError is a transport failure.
	ClassError
)

// String returns the label used in reports.
func (c StatusClass) String() string {
	switch c {
	case ClassSuccess:
		return "2xx"
	case ClassRedirect:
		return "3xx"
	case ClassClientError:
		return "4xx"
	case ClassServerError:
		return "5xx"
	case ClassOther:
		return "other"
	case ClassSkipped:
		return string(OutcomeSkippedNonHTML)
	case ClassError:
		return string(OutcomeError)
	default:
		return "unknown"
	}
}

// AllStatusClasses lists the classes in report order.
var AllStatusClasses = []StatusClass{
	ClassSuccess, ClassRedirect, ClassClientError, ClassServerError,
	ClassOther, ClassSkipped, ClassError,
}

// LatencyBand buckets a response time.
type LatencyBand int

const (
	// BandFast is at most one second.
	BandFast LatencyBand = iota
	// BandModerate is above one second and at most three.
	BandModerate
	// BandSlow is above three seconds.
	BandSlow
)

// Latency band boundaries.
const (
	FastLatency     = time.Second
	ModerateLatency = 3 * time.Second
)

// BandFor returns the band that d falls into.
func BandFor(d time.Duration) LatencyBand {
	switch {
	case d <= FastLatency:
		return BandFast
	case d <= ModerateLatency:
		return BandModerate
	default:
		return BandSlow
	}
}

// String returns a human-readable band name.
func (b LatencyBand) String() string {
	switch b {
	case BandFast:
		return "fast"
	case BandModerate:
		return "moderate"
	case BandSlow:
		return "slow"
	default:
		return "unknown"
	}
}
