package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/linkwalk/internal/model"
)

// MarkdownWriter outputs a crawl summary in Markdown, suited to pull
// requests and wikis.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := report.Summary()

	w.writeHeader(md, report, summary)
	w.writeStatusClasses(md, summary)
	w.writeLatency(md, summary)
	w.writeBroken(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport, summary model.Summary) {
	md.H1("linkwalk Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Seed + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Pages Visited", strconv.Itoa(summary.Total)},
			{"Average Response", summary.AverageElapsed.Round(time.Millisecond).String()},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	switch {
	case report.Error != "":
		md.Cautionf("The crawl failed: %s", report.Error)
	case report.Cancelled:
		md.Warningf("The crawl was interrupted; %d page(s) were visited before it stopped.", summary.Total)
	case summary.Broken > 0:
		md.Importantf("%d broken page(s) found.", summary.Broken)
	default:
		md.Tip("No broken pages found.")
	}
	md.PlainText("")
}

func statusText(report *model.CrawlReport) string {
	switch {
	case report.Error != "":
		return "Error - " + report.Error
	case report.Cancelled:
		return "Cancelled (partial results)"
	default:
		return "Complete"
	}
}

func (w *MarkdownWriter) writeStatusClasses(md *markdown.Markdown, summary model.Summary) {
	md.H2("Status Classes")
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllStatusClasses))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by Status Class"),
		piechart.WithShowData(true),
	)
	for _, c := range model.AllStatusClasses {
		n := summary.ByClass[c]
		rows = append(rows, []string{statusLabel(c), strconv.Itoa(n)})
		if n > 0 {
			chart.LabelAndIntValue(statusLabel(c), uint64(n))
		}
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(summary.Total) + "**"})

	md.Table(markdown.TableSet{Header: []string{"Class", "Pages"}, Rows: rows})
	md.PlainText("")

	if summary.Total > 0 {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeLatency(md *markdown.Markdown, summary model.Summary) {
	md.H2("Response Times")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Band", "Pages"},
		Rows: [][]string{
			{label(model.BandFast.String()) + " (<= 1s)", strconv.Itoa(summary.ByBand[model.BandFast])},
			{label(model.BandModerate.String()) + " (1-3s)", strconv.Itoa(summary.ByBand[model.BandModerate])},
			{label(model.BandSlow.String()) + " (> 3s)", strconv.Itoa(summary.ByBand[model.BandSlow])},
		},
	})
	md.PlainText("")

	if len(summary.Slowest) == 0 {
		return
	}
	md.PlainText("### Slowest Pages")
	md.PlainText("")
	rows := make([][]string, 0, len(summary.Slowest))
	for _, r := range summary.Slowest {
		rows = append(rows, []string{r.URL, formatSeconds(r.Elapsed) + "s", r.StatusText()})
	}
	md.Table(markdown.TableSet{Header: []string{"URL", "Time", "Status"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeBroken(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Broken Pages")
	md.PlainText("")

	broken := report.BrokenResults()
	if len(broken) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(broken))
	for _, r := range broken {
		rows = append(rows, []string{r.URL, r.StatusText(), strconv.Itoa(r.Depth)})
	}
	md.Table(markdown.TableSet{Header: []string{"URL", "Status", "Depth"}, Rows: rows})
	md.PlainText("")

	for _, r := range broken {
		if r.Error != "" {
			md.Details(r.URL, r.Error)
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [linkwalk](https://github.com/nao1215/linkwalk)*")
}
