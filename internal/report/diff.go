package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/nao1215/linkwalk/internal/model"
)

const diffDateLayout = "2006-01-02 15:04:05"

// WriteDiffText writes a comparison of two runs as plain text.
func WriteDiffText(w io.Writer, diff *model.RunDiff) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Crawl Comparison: %s\n", diff.Host)
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&sb, "Trend: %s\n\n", trendText(diff.Trend))

	fmt.Fprintf(&sb, "  %-10s  %-20s  %-6s  %s\n", "", "Started", "Pages", "Broken")
	fmt.Fprintf(&sb, "  %-10s  %-20s  %-6d  %d\n", "Previous",
		diff.Previous.StartedAt.Format(diffDateLayout), diff.Previous.Pages, diff.Previous.Broken)
	fmt.Fprintf(&sb, "  %-10s  %-20s  %-6d  %d (%s)\n", "Current",
		diff.Current.StartedAt.Format(diffDateLayout), diff.Current.Pages, diff.Current.Broken,
		formatDelta(diff.Current.Broken-diff.Previous.Broken))

	writeURLList(&sb, "New pages", "+", diff.NewURLs)
	writeURLList(&sb, "Vanished pages", "-", diff.VanishedURLs)
	if len(diff.StatusChanges) > 0 {
		fmt.Fprintf(&sb, "\nStatus changes (%d):\n", len(diff.StatusChanges))
		for _, c := range diff.StatusChanges {
			fmt.Fprintf(&sb, "  [~] %s: %s -> %s\n", c.URL, c.Previous, c.Current)
		}
	}
	writeURLList(&sb, "Content changes", "*", diff.ContentChanges)

	if !diff.HasChanges() {
		sb.WriteString("\nNo differences.\n")
	}
	fmt.Fprintf(&sb, "\nUnchanged: %d pages\n", diff.UnchangedCount)

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeURLList(sb *strings.Builder, title, marker string, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s (%d):\n", title, len(urls))
	for _, u := range urls {
		fmt.Fprintf(sb, "  [%s] %s\n", marker, u)
	}
}

// WriteDiffJSON writes a comparison of two runs as indented JSON.
func WriteDiffJSON(w io.Writer, diff *model.RunDiff) error {
	_, err := NewJSONWriter(w, WithPrettyPrint()).WriteValue(diff)
	return err
}

// WriteDiffMarkdown writes a comparison of two runs as Markdown.
func WriteDiffMarkdown(w io.Writer, diff *model.RunDiff) error {
	md := markdown.NewMarkdown(w)

	md.H1("Crawl Comparison: " + diff.Host)
	md.PlainText("")
	md.PlainText("**Trend:** " + trendText(diff.Trend))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Started", diff.Previous.StartedAt.Format(diffDateLayout), diff.Current.StartedAt.Format(diffDateLayout), "-"},
			{"Pages", strconv.Itoa(diff.Previous.Pages), strconv.Itoa(diff.Current.Pages),
				formatDelta(diff.Current.Pages - diff.Previous.Pages)},
			{"Broken", strconv.Itoa(diff.Previous.Broken), strconv.Itoa(diff.Current.Broken),
				formatDelta(diff.Current.Broken - diff.Previous.Broken)},
		},
	})
	md.PlainText("")

	if len(diff.NewURLs) > 0 {
		md.H2(fmt.Sprintf("New Pages (%d)", len(diff.NewURLs)))
		md.BulletList(diff.NewURLs...)
		md.PlainText("")
	}
	if len(diff.VanishedURLs) > 0 {
		md.H2(fmt.Sprintf("Vanished Pages (%d)", len(diff.VanishedURLs)))
		md.BulletList(diff.VanishedURLs...)
		md.PlainText("")
	}
	if len(diff.StatusChanges) > 0 {
		md.H2(fmt.Sprintf("Status Changes (%d)", len(diff.StatusChanges)))
		rows := make([][]string, 0, len(diff.StatusChanges))
		for _, c := range diff.StatusChanges {
			rows = append(rows, []string{c.URL, c.Previous, c.Current})
		}
		md.Table(markdown.TableSet{Header: []string{"URL", "Previous", "Current"}, Rows: rows})
		md.PlainText("")
	}
	if len(diff.ContentChanges) > 0 {
		md.H2(fmt.Sprintf("Content Changes (%d)", len(diff.ContentChanges)))
		md.BulletList(diff.ContentChanges...)
		md.PlainText("")
	}

	if !diff.HasChanges() {
		md.Note("No differences between the two runs.")
		md.PlainText("")
	}
	md.PlainTextf("*%d pages unchanged*", diff.UnchangedCount)

	return md.Build()
}

func trendText(trend string) string {
	switch trend {
	case model.TrendImproved:
		return "IMPROVED (fewer broken pages)"
	case model.TrendWorsened:
		return "WORSENED (more broken pages)"
	default:
		return "UNCHANGED"
	}
}

func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
