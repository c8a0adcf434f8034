package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/linkwalk/internal/model"
	"github.com/nao1215/linkwalk/internal/report"
)

// Crawler crawls a seed. *crawler.Spider implements it.
type Crawler interface {
	Crawl(ctx context.Context, seed string) (*model.CrawlReport, error)
}

// CrawlStep runs a Crawler on the report's seed and fills the report with
// its results.
type CrawlStep struct {
	crawler Crawler
	logger  *slog.Logger
}

// NewCrawlStep creates a CrawlStep.
func NewCrawlStep(c Crawler, logger *slog.Logger) *CrawlStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlStep{crawler: c, logger: logger}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls report.Seed. A cancelled crawl is not a step failure: the
// partial results are kept and the pipeline notices the cancellation.
func (s *CrawlStep) Do(ctx context.Context, rep *model.CrawlReport) error {
	result, err := s.crawler.Crawl(ctx, rep.Seed)
	if result != nil {
		*rep = *result
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			rep.Cancelled = true
			return nil
		}
		return fmt.Errorf("crawl %s: %w", rep.Seed, err)
	}
	s.logger.Debug("crawl step finished", "seed", rep.Seed, "pages", len(rep.Results))
	return nil
}

// RunStore saves a crawl run. *database.CrawlDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// PersistStep saves the report to the history database.
type PersistStep struct {
	store  RunStore
	logger *slog.Logger
}

// NewPersistStep creates a PersistStep.
func NewPersistStep(store RunStore, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// RunsOnCancel reports true: partial crawls are saved as well.
func (s *PersistStep) RunsOnCancel() bool {
	return true
}

// Do saves the report. A report without results is not saved.
func (s *PersistStep) Do(ctx context.Context, rep *model.CrawlReport) error {
	if len(rep.Results) == 0 {
		s.logger.Debug("nothing to persist", "seed", rep.Seed)
		return nil
	}
	id, err := s.store.SaveRun(ctx, rep)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}
	s.logger.Debug("crawl run saved", "seed", rep.Seed, "run_id", id)
	return nil
}

// ExportStep writes the report through a report.Writer and, unless
// disabled, to a timestamped CSV file.
type ExportStep struct {
	writer report.Writer
	csvDir string
	csv    bool
	now    func() time.Time
	onCSV  func(path string)
	logger *slog.Logger
}

// ExportOption configures an ExportStep.
type ExportOption func(*ExportStep)

// WithWriter sets the writer that receives the report.
func WithWriter(w report.Writer) ExportOption {
	return func(s *ExportStep) {
		s.writer = w
	}
}

// WithCSVDir writes the CSV file to dir.
func WithCSVDir(dir string) ExportOption {
	return func(s *ExportStep) {
		s.csvDir = dir
		s.csv = true
	}
}

// WithoutCSV disables the CSV file.
func WithoutCSV() ExportOption {
	return func(s *ExportStep) {
		s.csv = false
	}
}

// WithClock sets the clock used for the CSV file name.
func WithClock(now func() time.Time) ExportOption {
	return func(s *ExportStep) {
		s.now = now
	}
}

// WithCSVCallback is called with the path of every CSV file written.
func WithCSVCallback(fn func(path string)) ExportOption {
	return func(s *ExportStep) {
		s.onCSV = fn
	}
}

// WithExportLogger sets the logger.
func WithExportLogger(logger *slog.Logger) ExportOption {
	return func(s *ExportStep) {
		s.logger = logger
	}
}

// NewExportStep creates an ExportStep that writes CSV to the working
// directory by default.
func NewExportStep(opts ...ExportOption) *ExportStep {
	s := &ExportStep{
		csvDir: ".",
		csv:    true,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// RunsOnCancel reports true: collected results are reported after an
// interrupt.
func (s *ExportStep) RunsOnCancel() bool {
	return true
}

// Do writes the report.
func (s *ExportStep) Do(_ context.Context, rep *model.CrawlReport) error {
	if s.csv {
		path, err := report.WriteCSVFile(s.csvDir, rep, s.now())
		if err != nil {
			return err
		}
		s.logger.Debug("CSV written", "seed", rep.Seed, "path", path)
		if s.onCSV != nil {
			s.onCSV(path)
		}
	}
	if s.writer != nil {
		if _, err := s.writer.Write(rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
