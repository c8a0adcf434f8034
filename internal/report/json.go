package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/linkwalk/internal/model"
)

// JSONWriter outputs reports as JSON for tool integration.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
	version      string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the linkwalk version in the document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the document written by JSONWriter.
type JSONReport struct {
	Version string             `json:"version,omitempty"`
	Report  *model.CrawlReport `json:"report"`
	Summary JSONSummary        `json:"summary"`
}

// JSONSummary is model.Summary with string keys.
type JSONSummary struct {
	Total            int            `json:"total"`
	Broken           int            `json:"broken"`
	ByStatusClass    map[string]int `json:"by_status_class"`
	ByLatencyBand    map[string]int `json:"by_latency_band"`
	AverageElapsedMS int64          `json:"average_elapsed_ms"`
	DurationMS       int64          `json:"duration_ms"`
}

// NewJSONReport wraps report with its summary.
func NewJSONReport(report *model.CrawlReport, version string) *JSONReport {
	s := report.Summary()
	js := JSONSummary{
		Total:            s.Total,
		Broken:           s.Broken,
		ByStatusClass:    make(map[string]int, len(s.ByClass)),
		ByLatencyBand:    make(map[string]int, len(s.ByBand)),
		AverageElapsedMS: s.AverageElapsed.Milliseconds(),
		DurationMS:       report.Duration().Milliseconds(),
	}
	for c, n := range s.ByClass {
		js.ByStatusClass[c.String()] = n
	}
	for b, n := range s.ByBand {
		js.ByLatencyBand[b.String()] = n
	}
	return &JSONReport{Version: version, Report: report, Summary: js}
}

// Write outputs the report with its summary.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}

// WriteValue outputs any value with the writer's formatting.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	return w.writeJSON(v)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
