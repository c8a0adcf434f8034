package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/linkwalk/internal/model"
)

// Factory builds the pipeline for one seed. Every seed gets its own
// pipeline so that per-site settings and spider state never leak between
// crawls.
type Factory func(seed string) (*Pipeline, error)

// BatchProcessor crawls several seeds concurrently.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the batch logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many seeds are crawled at the same time.
// The default is 2; each crawl runs its own worker pool.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 2,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls every seed and returns one report per seed in input
// order. A failing seed does not stop the others; its error is recorded in
// its report. Seeds not yet started when ctx is cancelled get an empty
// cancelled report, and ProcessBatch returns ctx.Err().
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(report *model.CrawlReport, index int) {
		reports[index] = report
	})
	return reports, err
}

// ProcessBatchWithCallback crawls every seed and calls callback with each
// finished report and the seed's index. The callback runs on the crawling
// goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch", "seeds", len(seeds), "concurrency", bp.concurrency)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			report := model.NewCrawlReport(seed, "")
			defer callback(report, i)

			if ctx.Err() != nil {
				report.Cancelled = true
				return nil
			}

			p, err := bp.factory(seed)
			if err != nil {
				report.Error = err.Error()
				bp.logger.Warn("failed to build pipeline", "seed", seed, "error", err)
				return nil
			}

			bp.logger.Info("crawling", "seed", seed, "index", i+1, "total", len(seeds))
			if err := p.Execute(ctx, report); err != nil {
				bp.logger.Warn("crawl did not complete", "seed", seed, "error", err)
				return nil
			}
			bp.logger.Info("crawl completed", "seed", seed, "pages", len(report.Results))
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	bp.logger.Info("batch complete", "seeds", len(seeds), "elapsed", time.Since(start))
	return ctx.Err()
}
