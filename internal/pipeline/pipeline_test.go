package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/nao1215/linkwalk/internal/model"
)

// recordingStep records its invocations in a shared log.
type recordingStep struct {
	name     string
	final    bool
	err      error
	onDo     func()
	mu       *sync.Mutex
	log      *[]string
	ctxAlive *bool
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) RunsOnCancel() bool { return s.final }

func (s *recordingStep) Do(ctx context.Context, _ *model.CrawlReport) error {
	s.mu.Lock()
	*s.log = append(*s.log, s.name)
	if s.ctxAlive != nil {
		*s.ctxAlive = ctx.Err() == nil
	}
	s.mu.Unlock()
	if s.onDo != nil {
		s.onDo()
	}
	return s.err
}

func newRecorder() (func(name string) *recordingStep, func() []string) {
	var (
		mu  sync.Mutex
		log []string
	)
	mk := func(name string) *recordingStep {
		return &recordingStep{name: name, mu: &mu, log: &log}
	}
	get := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(log)
	}
	return mk, get
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		mk, got := newRecorder()
		p := New(WithLogger(quietLogger()))
		p.AddStep(mk("crawl"))
		p.AddSteps(mk("persist"), mk("export"))

		if err := p.Execute(context.Background(), model.NewCrawlReport("https://example.com/", "")); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if want := []string{"crawl", "persist", "export"}; !slices.Equal(got(), want) {
			t.Errorf("steps = %v, want %v", got(), want)
		}
		if p.StepCount() != 3 || !slices.Equal(p.StepNames(), []string{"crawl", "persist", "export"}) {
			t.Errorf("unexpected step bookkeeping: %d %v", p.StepCount(), p.StepNames())
		}
	})

	t.Run("stops at the first error", func(t *testing.T) {
		t.Parallel()

		mk, got := newRecorder()
		boom := errors.New("boom")
		failing := mk("crawl")
		failing.err = boom

		p := New(WithLogger(quietLogger()))
		p.AddSteps(failing, mk("export"))
		report := model.NewCrawlReport("https://example.com/", "")

		if err := p.Execute(context.Background(), report); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if !slices.Equal(got(), []string{"crawl"}) {
			t.Errorf("steps = %v", got())
		}
		if report.Error != "boom" {
			t.Errorf("report.Error = %q", report.Error)
		}
	})

	t.Run("continue on error runs the rest", func(t *testing.T) {
		t.Parallel()

		mk, got := newRecorder()
		first := mk("a")
		first.err = errors.New("first")
		second := mk("b")
		second.err = errors.New("second")

		p := New(WithLogger(quietLogger()), WithContinueOnError(true))
		p.AddSteps(first, second, mk("c"))
		report := model.NewCrawlReport("https://example.com/", "")

		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if !slices.Equal(got(), []string{"a", "b", "c"}) {
			t.Errorf("steps = %v", got())
		}
		if report.Error != "first" {
			t.Errorf("report.Error = %q, want the first error", report.Error)
		}
	})

	t.Run("cancellation runs only final steps with a live context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		mk, got := newRecorder()
		crawl := mk("crawl")
		crawl.onDo = cancel
		analyze := mk("analyze")
		persist := mk("persist")
		persist.final = true
		alive := false
		persist.ctxAlive = &alive

		p := New(WithLogger(quietLogger()))
		p.AddSteps(crawl, analyze, persist)
		report := model.NewCrawlReport("https://example.com/", "")

		if err := p.Execute(ctx, report); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !slices.Equal(got(), []string{"crawl", "persist"}) {
			t.Errorf("steps = %v", got())
		}
		if !alive {
			t.Error("final step received a cancelled context")
		}
		if !report.Cancelled {
			t.Error("report not marked cancelled")
		}
	})
}
