package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/linkwalk/internal/config"
	"github.com/nao1215/linkwalk/internal/crawler"
	"github.com/nao1215/linkwalk/internal/database"
	"github.com/nao1215/linkwalk/internal/httpclient"
	applog "github.com/nao1215/linkwalk/internal/log"
	"github.com/nao1215/linkwalk/internal/model"
	"github.com/nao1215/linkwalk/internal/pipeline"
	"github.com/nao1215/linkwalk/internal/report"
)

// errInterrupted is returned after an interrupted crawl has been reported.
var errInterrupted = errors.New("crawl interrupted: partial results were reported")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <hostname> [hostname...]",
		Short: "Crawl a website and report the status of every page",
		Long: `Crawl fetches the seed URL, follows every anchor that stays on the same
origin, and records the status code and response time of each page.

Each visited URL is printed as soon as it is fetched. When the crawl ends,
or when it is interrupted with Ctrl-C, a summary is printed, the results are
written to linkwalk_<host>_<timestamp>.csv and the run is saved to the
history database.

Examples:
  # Crawl a site with the defaults
  linkwalk crawl https://example.com

  # Ten workers, no pause, skip the admin area
  linkwalk crawl -w 10 --delay 0 --exclude /admin https://example.com

  # Crawl two sites at once and write a Markdown summary
  linkwalk crawl --markdown -o report.md https://a.example https://b.example

  # Crawl through a SOCKS5 proxy with Basic auth
  linkwalk crawl --proxy 127.0.0.1:1080 --user alice --password s3cret https://intranet.example`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Scheduling
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Number of concurrent fetch workers")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay, "Pause each worker takes after its own fetch")
	cmd.Flags().Duration("idle-wait", config.DefaultIdleWait, "Recheck interval for workers facing an empty queue")
	cmd.Flags().Float64("rate", 0, "Requests per second across all workers (0 = unlimited)")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth, "Maximum link depth from the seed (-1 = unlimited)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages, "Maximum number of URLs per crawl (0 = unlimited)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of sites crawled concurrently")

	// Scope
	cmd.Flags().StringArrayP("exclude", "x", nil, "Skip hrefs containing this substring (repeatable)")
	cmd.Flags().Bool("subdomains", false, "Also follow subdomains of the seed's domain")

	// HTTP
	cmd.Flags().Duration("connect-timeout", config.DefaultConnectTimeout, "Connect timeout per request")
	cmd.Flags().Duration("read-timeout", config.DefaultReadTimeout, "Read timeout per request")
	cmd.Flags().Bool("no-head", false, "Do not probe with HEAD before GET")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")
	cmd.Flags().StringP("user", "u", "", "HTTP Basic auth username")
	cmd.Flags().String("password", "", "HTTP Basic auth password")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header")

	// Configuration file
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .linkwalk in current or home directory)")

	// Output
	cmd.Flags().String("csv-dir", ".", "Directory for the CSV file")
	cmd.Flags().Bool("no-csv", false, "Do not write a CSV file")
	cmd.Flags().BoolP("json", "j", false, "Write the summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Write the summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write the summary to a file (creates directories if needed)")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print a line per fetched URL")
	cmd.Flags().Bool("no-db", false, "Do not save the run to the history database")
	cmd.Flags().Bool("log-json", false, "Write logs as JSON")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrNoTarget) {
			return err
		}
		return fmt.Errorf("configuration error: %w", err)
	}

	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, logJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag reads --verbose from the command or the root.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from flags and the configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.IdleWait, err = flags.GetDuration("idle-wait"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ExcludeSubstrings, err = flags.GetStringArray("exclude"); err != nil {
		return nil, err
	}
	if cfg.AllowSubdomains, err = flags.GetBool("subdomains"); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = flags.GetDuration("connect-timeout"); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = flags.GetDuration("read-timeout"); err != nil {
		return nil, err
	}
	if cfg.DisableHeadProbe, err = flags.GetBool("no-head"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.Username, err = flags.GetString("user"); err != nil {
		return nil, err
	}
	if cfg.Password, err = flags.GetString("password"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.CSVDir, err = flags.GetString("csv-dir"); err != nil {
		return nil, err
	}
	if cfg.NoCSV, err = flags.GetBool("no-csv"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.NoColor, err = flags.GetBool("no-color"); err != nil {
		return nil, err
	}
	if cfg.Quiet, err = flags.GetBool("quiet"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	// An explicit --config must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		if cfg.SiteConfigs, err = config.LoadConfigFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = args
	return cfg, nil
}

// setupLogger creates the credential-scrubbing logger on w.
func setupLogger(w io.Writer, verbose, jsonOutput bool) *slog.Logger {
	if jsonOutput {
		return applog.NewSecureJSONLogger(w, verbose)
	}
	return applog.NewSecureLogger(w, verbose)
}

// runCrawl crawls every target and reports the results to out.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}

	if cfg.ProxyAddress != "" {
		if ps := httpclient.CheckProxy(ctx, cfg.ProxyAddress, cfg.ConnectTimeout); ps != httpclient.ProxyStatusOK {
			return fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, ps.Err())
		}
		logger.Debug("proxy verified", "address", cfg.ProxyAddress)
	}

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	// A JSON or Markdown summary on stdout keeps stdout clean; everything
	// else goes to stderr then.
	structuredStdout := cfg.ReportFile == "" && (cfg.JSONReport || cfg.MarkdownReport)
	status := out
	if structuredStdout {
		status = errOut
	}
	colored := useColor(cfg, status)
	// Progress lines, summaries and notices of concurrent crawls share one
	// stream.
	status = &syncWriter{w: status}
	var progress *report.Progress
	if !cfg.Quiet {
		progress = report.NewProgress(status, colored)
	}

	summaryOut := status
	if structuredStdout {
		summaryOut = out
	}
	summary, closeSummary, err := summaryWriter(cfg, summaryOut)
	if err != nil {
		return err
	}
	defer closeSummary()

	factory := func(seed string) (*pipeline.Pipeline, error) {
		return newPipeline(cfg, seed, db, summary, progress, logger, status)
	}

	start := time.Now()
	fmt.Fprintf(status, "Crawling %d site(s) with %d worker(s) each...\n", len(cfg.Targets), cfg.Workers)

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	reports, err := bp.ProcessBatch(ctx, cfg.Targets)
	fmt.Fprintf(status, "Finished in %s\n", time.Since(start).Round(time.Millisecond))

	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
			fmt.Fprintf(errOut, "crawl of %s failed: %s\n", r.Seed, r.Error)
		}
	}
	if err != nil || anyCancelled(reports) {
		return errInterrupted
	}
	if failed == len(reports) {
		return fmt.Errorf("all %d crawls failed", failed)
	}
	return nil
}

func anyCancelled(reports []*model.CrawlReport) bool {
	for _, r := range reports {
		if r.Cancelled {
			return true
		}
	}
	return false
}

// newPipeline builds the crawl, persist and export steps for one seed with
// the seed's site settings applied.
func newPipeline(
	cfg *config.Config,
	seed string,
	db *database.CrawlDB,
	summary report.Writer,
	progress *report.Progress,
	logger *slog.Logger,
	out io.Writer,
) (*pipeline.Pipeline, error) {
	norm, err := crawler.NewNormalizer(seed, cfg.AllowSubdomains)
	if err != nil {
		return nil, err
	}
	site := cfg.SiteConfigs.GetSiteConfig(norm.Host())

	client, err := httpclient.New(clientOptions(cfg, site, norm))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	fetcher := crawler.NewHTTPFetcher(client,
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithReadTimeout(cfg.ReadTimeout),
		crawler.WithHeadProbe(!cfg.DisableHeadProbe),
		crawler.WithFetcherLogger(logger),
	)
	exclude := append(append([]string(nil), cfg.ExcludeSubstrings...), site.Exclude...)
	extractor := crawler.NewLinkExtractor(exclude...)

	spider := crawler.NewSpider(fetcher, extractor, spiderOptions(cfg, site, progress, logger)...)

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddStep(pipeline.NewCrawlStep(spider, logger))
	if db != nil {
		p.AddStep(pipeline.NewPersistStep(db, logger))
	}

	exportOpts := []pipeline.ExportOption{
		pipeline.WithWriter(summary),
		pipeline.WithExportLogger(logger),
	}
	if cfg.NoCSV {
		exportOpts = append(exportOpts, pipeline.WithoutCSV())
	} else {
		exportOpts = append(exportOpts,
			pipeline.WithCSVDir(cfg.CSVDir),
			pipeline.WithCSVCallback(func(path string) {
				fmt.Fprintf(out, "CSV written to %s\n", path)
			}),
		)
	}
	p.AddStep(pipeline.NewExportStep(exportOpts...))
	return p, nil
}

// clientOptions resolves HTTP settings. Flags win over the site file, which
// wins over credentials embedded in the seed URL. Credentials are only sent
// to the seed's host.
func clientOptions(cfg *config.Config, site config.SiteConfig, norm *crawler.Normalizer) httpclient.Options {
	opts := httpclient.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		ProxyAddress:   cfg.ProxyAddress,
		Cookie:         site.Cookie,
		Headers:        site.Headers,
		AuthHost:       norm.Host(),
	}
	switch {
	case cfg.Username != "":
		opts.Username, opts.Password = cfg.Username, cfg.Password
	case site.BasicAuth != nil:
		opts.Username, opts.Password = site.BasicAuth.Username, site.BasicAuth.Password
	default:
		if user, pass, ok := norm.Credentials(); ok {
			opts.Username, opts.Password = user, pass
		}
	}
	return opts
}

// spiderOptions applies site overrides to the global scheduling settings.
func spiderOptions(cfg *config.Config, site config.SiteConfig, progress *report.Progress, logger *slog.Logger) []crawler.SpiderOption {
	workers := cfg.Workers
	if site.Workers > 0 {
		workers = site.Workers
	}
	delay := cfg.CrawlDelay
	if !site.Delay.IsZero() {
		delay = site.Delay.Duration
	}
	depth := cfg.MaxDepth
	if site.Depth != 0 {
		depth = site.Depth
	}

	opts := []crawler.SpiderOption{
		crawler.WithWorkers(workers),
		crawler.WithDelay(delay),
		crawler.WithIdleWait(cfg.IdleWait),
		crawler.WithMaxDepth(depth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithRateLimit(cfg.RateLimit),
		crawler.WithSubdomains(cfg.AllowSubdomains || site.Subdomains),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithLogger(logger),
	}
	if progress != nil {
		opts = append(opts, crawler.WithObserver(progress.Observe))
	}
	return opts
}

// summaryWriter returns the writer for the end-of-crawl summary. The
// returned close function must be called once all crawls are done.
func summaryWriter(cfg *config.Config, stdout io.Writer) (report.Writer, func(), error) {
	output := stdout
	closeFn := func() {}

	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(filepath.Clean(cfg.ReportFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		output = f
		closeFn = func() { _ = f.Close() } //nolint:errcheck
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	return report.NewLockedWriter(w), closeFn, nil
}

// syncWriter serializes writes to w.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// useColor reports whether progress lines on out should be colored.
// fatih/color sets color.NoColor when stdout is not a terminal or NO_COLOR
// is set.
func useColor(cfg *config.Config, out io.Writer) bool {
	if cfg.NoColor || color.NoColor {
		return false
	}
	f, ok := out.(*os.File)
	return ok && (f == os.Stdout || f == os.Stderr)
}
