package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/nao1215/linkwalk/internal/model"
)

// Progress prints one line per fetch attempt: URL, elapsed time and
// status. Status is green for 2xx, red for 4xx and 5xx, and yellow for
// everything else, including skipped resources and transport errors. Elapsed time is green up to one second, yellow up to
// three and red beyond. Progress is safe for concurrent use.
type Progress struct {
	mu  sync.Mutex
	out io.Writer

	green  *color.Color
	yellow *color.Color
	red    *color.Color
}

// NewProgress creates a Progress writing to out. With colored false no
// escape sequences are written.
func NewProgress(out io.Writer, colored bool) *Progress {
	p := &Progress{
		out:    out,
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.green, p.yellow, p.red} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Observe prints r. Its signature matches crawler.Observer.
func (p *Progress) Observe(r model.FetchResult) {
	elapsed := "-"
	if r.Outcome != model.OutcomeError {
		elapsed = p.latencyColor(r.Elapsed).Sprint(formatSeconds(r.Elapsed) + "s")
	}
	status := p.statusColor(r.Class()).Sprint(r.StatusText())

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s %s\n", r.URL, elapsed, status)
}

func (p *Progress) statusColor(c model.StatusClass) *color.Color {
	switch c {
	case model.ClassSuccess:
		return p.green
	case model.ClassClientError, model.ClassServerError:
		return p.red
	default:
		return p.yellow
	}
}

func (p *Progress) latencyColor(d time.Duration) *color.Color {
	switch model.BandFor(d) {
	case model.BandFast:
		return p.green
	case model.BandModerate:
		return p.yellow
	default:
		return p.red
	}
}
