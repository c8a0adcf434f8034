package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/linkwalk/internal/model"
)

// CSVHeader is the first line of every CSV export.
const CSVHeader = "scanned_links, response_time, response_status_code"

// csvTimeLayout is the timestamp embedded in CSV file names.
const csvTimeLayout = "20060102-150405"

// CSVWriter writes one row per visited URL, sorted by URL. The response
// time is in seconds with millisecond precision; the status column holds
// the status code, "skipped-non-html" or "error".
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report as CSV.
func (w *CSVWriter) Write(report *model.CrawlReport) (int, error) {
	cw := &countingWriter{w: w.output}

	// The header keeps its spaces verbatim; csv.Writer would quote them.
	if _, err := io.WriteString(cw, CSVHeader+"\n"); err != nil {
		return cw.n, err
	}

	enc := csv.NewWriter(cw)
	for _, r := range report.Sorted() {
		if err := enc.Write([]string{r.URL, formatSeconds(r.Elapsed), r.StatusText()}); err != nil {
			return cw.n, err
		}
	}
	enc.Flush()
	return cw.n, enc.Error()
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// CSVFileName returns "linkwalk_<host>_<YYYYMMDD-HHMMSS>.csv" with any
// character that is unsafe in file names replaced by '_'.
func CSVFileName(host string, t time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, host)
	return fmt.Sprintf("linkwalk_%s_%s.csv", safe, t.Format(csvTimeLayout))
}

// WriteCSVFile writes report to a new timestamped file in dir and returns
// its path.
func WriteCSVFile(dir string, report *model.CrawlReport, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create CSV directory: %w", err)
	}

	path := filepath.Join(dir, CSVFileName(report.Host, now))
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}
	if _, err := NewCSVWriter(f).Write(report); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close CSV file: %w", err)
	}
	return path, nil
}
