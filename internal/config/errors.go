package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when no seed hostname is given.
	ErrNoTarget = errors.New("no hostname specified: usage: linkwalk crawl https://example.com")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the connect or read timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: connect and read timeouts must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidIdleWait is returned when the idle wait is not positive.
	ErrInvalidIdleWait = errors.New("invalid idle wait: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrPasswordWithoutUser is returned when a password is set without a username.
	ErrPasswordWithoutUser = errors.New("invalid credentials: --password requires --user")
)
