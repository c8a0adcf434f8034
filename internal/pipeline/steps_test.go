package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/linkwalk/internal/model"
)

type fakeCrawler struct {
	report *model.CrawlReport
	err    error
}

func (f *fakeCrawler) Crawl(_ context.Context, seed string) (*model.CrawlReport, error) {
	if f.report != nil {
		f.report.Seed = seed
	}
	return f.report, f.err
}

type fakeStore struct {
	saved []*model.CrawlReport
	err   error
}

func (f *fakeStore) SaveRun(_ context.Context, report *model.CrawlReport) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.saved = append(f.saved, report)
	report.ID = int64(len(f.saved))
	return report.ID, nil
}

type fakeWriter struct {
	reports []*model.CrawlReport
	err     error
}

func (f *fakeWriter) Write(report *model.CrawlReport) (int, error) {
	f.reports = append(f.reports, report)
	return 1, f.err
}

func sampleReport() *model.CrawlReport {
	r := model.NewCrawlReport("https://example.com/", "example.com")
	r.StartedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.FinishedAt = r.StartedAt.Add(time.Second)
	r.Results["https://example.com/"] = model.FetchResult{
		URL:        "https://example.com/",
		Outcome:    model.OutcomeHTTP,
		StatusCode: 200,
		Elapsed:    120 * time.Millisecond,
	}
	return r
}

func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("copies the crawl result", func(t *testing.T) {
		t.Parallel()

		report := model.NewCrawlReport("https://example.com", "")
		step := NewCrawlStep(&fakeCrawler{report: sampleReport()}, quietLogger())
		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
		if report.Host != "example.com" || len(report.Results) != 1 {
			t.Errorf("unexpected report: %+v", report)
		}
		if step.Name() != "crawl" {
			t.Errorf("Name() = %q", step.Name())
		}
	})

	t.Run("cancellation keeps partial results", func(t *testing.T) {
		t.Parallel()

		report := model.NewCrawlReport("https://example.com/", "")
		step := NewCrawlStep(&fakeCrawler{report: sampleReport(), err: context.Canceled}, nil)
		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
		if !report.Cancelled || len(report.Results) != 1 {
			t.Errorf("unexpected report: %+v", report)
		}
	})

	t.Run("crawl failure is returned", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("invalid seed")
		report := model.NewCrawlReport("::", "")
		err := NewCrawlStep(&fakeCrawler{err: boom}, nil).Do(context.Background(), report)
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped error, got %v", err)
		}
		if report.Seed != "::" {
			t.Errorf("report replaced on failure: %+v", report)
		}
	})
}

func TestPersistStep(t *testing.T) {
	t.Parallel()

	t.Run("saves reports with results", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		step := NewPersistStep(store, quietLogger())
		report := sampleReport()
		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
		if len(store.saved) != 1 || report.ID != 1 {
			t.Errorf("report not saved: %+v", store.saved)
		}
		if !step.RunsOnCancel() {
			t.Error("persist must run after cancellation")
		}
	})

	t.Run("skips empty reports", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		if err := NewPersistStep(store, nil).Do(context.Background(), model.NewCrawlReport("x", "")); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
		if len(store.saved) != 0 {
			t.Error("empty report was saved")
		}
	})

	t.Run("store failure is returned", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		err := NewPersistStep(&fakeStore{err: boom}, nil).Do(context.Background(), sampleReport())
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})
}

func TestExportStep(t *testing.T) {
	t.Parallel()

	t.Run("writes CSV and report", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		w := &fakeWriter{}
		var written string
		now := time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)

		step := NewExportStep(
			WithWriter(w),
			WithCSVDir(dir),
			WithClock(func() time.Time { return now }),
			WithCSVCallback(func(path string) { written = path }),
			WithExportLogger(quietLogger()),
		)
		if err := step.Do(context.Background(), sampleReport()); err != nil {
			t.Fatalf("Do() error: %v", err)
		}

		want := filepath.Join(dir, "linkwalk_example.com_20240501-130405.csv")
		if written != want {
			t.Errorf("CSV path = %q, want %q", written, want)
		}
		data, err := os.ReadFile(filepath.Clean(want))
		if err != nil {
			t.Fatalf("failed to read CSV: %v", err)
		}
		if !strings.Contains(string(data), "https://example.com/,0.120,200") {
			t.Errorf("unexpected CSV:\n%s", data)
		}
		if len(w.reports) != 1 {
			t.Errorf("writer called %d times", len(w.reports))
		}
		if !step.RunsOnCancel() {
			t.Error("export must run after cancellation")
		}
	})

	t.Run("CSV can be disabled", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		step := NewExportStep(WithCSVDir(dir), WithoutCSV(), WithExportLogger(quietLogger()))
		if err := step.Do(context.Background(), sampleReport()); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("expected no files, got %d", len(entries))
		}
	})

	t.Run("writer failure is returned", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("closed pipe")
		step := NewExportStep(WithoutCSV(), WithWriter(&fakeWriter{err: boom}))
		if err := step.Do(context.Background(), sampleReport()); !errors.Is(err, boom) {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})
}
