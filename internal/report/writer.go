package report

import (
	"io"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/linkwalk/internal/model"
)

// Writer renders a crawl report to its destination.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// MultiWriter writes a report to several Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every Writer and stops at the first error.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// LockedWriter serializes writes to a Writer shared by concurrent crawls,
// so that reports never interleave.
type LockedWriter struct {
	mu sync.Mutex
	w  Writer
}

// NewLockedWriter wraps w.
func NewLockedWriter(w Writer) *LockedWriter {
	return &LockedWriter{w: w}
}

// Write writes the report while holding the lock.
func (l *LockedWriter) Write(report *model.CrawlReport) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(report)
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// label turns a machine label such as "skipped-non-html" into "Skipped Non Html".
func label(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r == '-' || r == '_' {
			out[i] = ' '
		}
	}
	return cases.Title(language.English).String(string(out))
}

// statusLabel is the display label of a status class.
func statusLabel(c model.StatusClass) string {
	switch c {
	case model.ClassSkipped:
		return "Skipped (non-HTML)"
	case model.ClassError:
		return "Transport error"
	case model.ClassOther:
		return label(c.String())
	default:
		return c.String()
	}
}
