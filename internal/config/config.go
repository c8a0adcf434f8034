package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "linkwalk"

	// DefaultWorkers is the size of the fixed worker pool for a single crawl.
	DefaultWorkers = 5

	// DefaultConnectTimeout bounds TCP connect and TLS handshake for each request.
	DefaultConnectTimeout = 3 * time.Second

	// DefaultReadTimeout bounds the wait for response headers and, separately,
	// the transfer of the response body.
	DefaultReadTimeout = 15 * time.Second

	// DefaultCrawlDelay is the pause each worker takes after its own fetch.
	// It is a per-worker pause, not a global one.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultIdleWait is how long a worker that found the frontier empty
	// waits before checking again.
	DefaultIdleWait = 250 * time.Millisecond

	// DefaultMaxDepth of -1 means link depth is not limited.
	DefaultMaxDepth = -1

	// DefaultMaxPages of 0 means the number of crawled URLs is not limited.
	DefaultMaxPages = 0

	// DefaultBatchSize is the number of seeds crawled concurrently when more
	// than one hostname is given.
	DefaultBatchSize = 2

	// DefaultUserAgent identifies linkwalk in HTTP requests.
	DefaultUserAgent = "linkwalk/1.0 (+https://github.com/nao1215/linkwalk)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Config holds every option for a linkwalk run.
// It is populated from CLI flags and the optional YAML file, then passed
// explicitly to the components that need it. Nothing reads it from globals.
type Config struct {
	// Targets is the list of seed hostnames (e.g. "https://example.com").
	Targets []string

	// Workers is the number of concurrent fetch workers per crawl.
	Workers int

	// ConnectTimeout is the per-request connect budget.
	ConnectTimeout time.Duration

	// ReadTimeout is the per-request read budget.
	ReadTimeout time.Duration

	// CrawlDelay is the pause a worker takes between its own fetches.
	CrawlDelay time.Duration

	// IdleWait is the recheck interval for workers facing an empty frontier.
	IdleWait time.Duration

	// MaxDepth limits how many links away from the seed a page may be.
	// Negative means unlimited, 0 means only the seed.
	MaxDepth int

	// MaxPages caps the number of URLs admitted to a crawl. 0 is unlimited.
	MaxPages int

	// RateLimit is a shared requests-per-second ceiling for one crawl.
	// 0 disables it.
	RateLimit float64

	// ExcludeSubstrings drops any href containing one of these substrings,
	// e.g. "/admin".
	ExcludeSubstrings []string

	// AllowSubdomains relaxes the same-origin policy to hosts that share a
	// registrable label with the seed.
	AllowSubdomains bool

	// DisableHeadProbe skips the HEAD request made before each GET.
	DisableHeadProbe bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// Username and Password are sent as HTTP Basic credentials when set.
	Username string
	Password string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Larger bodies are truncated.
	MaxBodySize int64

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// NoColor disables colorized progress output.
	NoColor bool

	// Quiet suppresses the per-fetch progress lines.
	Quiet bool

	// ConfigFilePath is the path to the YAML configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds per-host settings loaded from the configuration file.
	SiteConfigs *File

	// JSONReport selects the JSON summary format.
	JSONReport bool

	// MarkdownReport selects the Markdown summary format.
	MarkdownReport bool

	// ReportFile writes the summary to a file instead of stdout.
	ReportFile string

	// CSVDir is the directory that receives the timestamped CSV file.
	CSVDir string

	// NoCSV disables the CSV export.
	NoCSV bool

	// DBDir is the directory holding the crawl history database.
	DBDir string

	// SaveToDB stores each finished crawl in the history database.
	SaveToDB bool
}

// NewConfig creates a Config populated with default values.
func NewConfig() *Config {
	return &Config{
		Workers:        DefaultWorkers,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		CrawlDelay:     DefaultCrawlDelay,
		IdleWait:       DefaultIdleWait,
		MaxDepth:       DefaultMaxDepth,
		MaxPages:       DefaultMaxPages,
		BatchSize:      DefaultBatchSize,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		CSVDir:         ".",
		SaveToDB:       true,
	}
}

// XDGDataDir returns the XDG data directory for linkwalk.
// On Linux: ~/.local/share/linkwalk
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkwalk.
// On Linux: ~/.config/linkwalk
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
// It runs once after flag parsing, before any crawl state exists.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.IdleWait <= 0 {
		return ErrInvalidIdleWait
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Password != "" && c.Username == "" {
		return ErrPasswordWithoutUser
	}
	return nil
}
