package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/linkwalk/internal/model"
)

// SimpleWriter outputs a plain-text summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints status classes that have no pages.
	showEmpty bool

	// verbose lists every visited URL, not only the broken ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty prints zero counts as well.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists every visited URL.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

const ruleWidth = 70

// Write outputs the summary.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder
	summary := report.Summary()

	sb.WriteString("\n" + strings.Repeat("=", ruleWidth) + "\n")
	sb.WriteString("CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n\n")

	fmt.Fprintf(&sb, "Seed:          %s\n", report.Seed)
	fmt.Fprintf(&sb, "Started:       %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Duration:      %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "Pages visited: %d\n", summary.Total)
	fmt.Fprintf(&sb, "Average time:  %s\n", summary.AverageElapsed.Round(time.Millisecond))
	if report.SkippedByLimit > 0 {
		fmt.Fprintf(&sb, "Not visited:   %d (page limit reached)\n", report.SkippedByLimit)
	}
	fmt.Fprintf(&sb, "Status:        %s\n\n", statusText(report))

	w.writeSection(&sb, "STATUS CLASSES")
	for _, c := range model.AllStatusClasses {
		n := summary.ByClass[c]
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(&sb, "  %-20s %d\n", statusLabel(c)+":", n)
	}
	sb.WriteString("\n")

	if len(summary.Slowest) > 0 {
		w.writeSection(&sb, "SLOWEST PAGES")
		for _, r := range summary.Slowest {
			fmt.Fprintf(&sb, "  %8ss  %s\n", formatSeconds(r.Elapsed), r.URL)
		}
		sb.WriteString("\n")
	}

	broken := report.BrokenResults()
	if len(broken) > 0 || w.showEmpty {
		w.writeSection(&sb, "BROKEN PAGES")
		if len(broken) == 0 {
			sb.WriteString("  None\n")
		}
		for _, r := range broken {
			fmt.Fprintf(&sb, "  [%s] %s\n", r.StatusText(), r.URL)
			if r.Error != "" {
				fmt.Fprintf(&sb, "        %s\n", r.Error)
			}
		}
		sb.WriteString("\n")
	}

	if w.verbose {
		w.writeSection(&sb, "ALL PAGES")
		for _, r := range report.Sorted() {
			fmt.Fprintf(&sb, "  %-16s %8ss  %s\n", r.StatusText(), formatSeconds(r.Elapsed), r.URL)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")
}
