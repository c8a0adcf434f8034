package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkwalk/internal/config"
	"github.com/nao1215/linkwalk/internal/crawler"
	"github.com/nao1215/linkwalk/internal/database"
	"github.com/nao1215/linkwalk/internal/model"
	"github.com/nao1215/linkwalk/internal/report"
)

const sinceLayout = "2006-01-02"

// historyOptions selects what the history command shows.
type historyOptions struct {
	host      string
	listHosts bool
	list      bool
	withRunID int64
	since     string
	json      bool
	markdown  bool
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [hostname]",
		Short: "Compare a crawl with earlier runs of the same site",
		Long: `History reads the crawl database and shows how a site changed between runs:
- pages that appeared or vanished
- pages whose status changed (e.g. 200 -> 404)
- pages whose content changed

By default the latest two runs of the host are compared.

Examples:
  # Compare the latest two crawls
  linkwalk history example.com

  # List all runs of a host
  linkwalk history --list example.com

  # Compare the latest run with run 5
  linkwalk history --with-run-id 5 example.com

  # Compare with the first run since a date
  linkwalk history --since 2026-01-01 example.com

  # List every crawled host
  linkwalk history --list-hosts`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false, "List the runs of the given host")
	cmd.Flags().BoolP("list-hosts", "L", false, "List every host in the database")
	cmd.Flags().Int64P("with-run-id", "i", 0, "Compare the latest run with this run ID")
	cmd.Flags().StringP("since", "s", "", "Compare with the first run on or after this date (YYYY-MM-DD)")
	cmd.Flags().BoolP("json", "j", false, "Output the comparison as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output the comparison as Markdown")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := historyFlags(cmd, args)
	if err != nil {
		return err
	}

	// Validate before opening the database.
	if !opts.listHosts {
		if opts.host == "" {
			return errors.New("hostname is required (use --list-hosts to see crawled hosts)")
		}
		norm, err := crawler.NewNormalizer(opts.host, false)
		if err != nil {
			return err
		}
		opts.host = norm.Host()
	}
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), db, opts, cmd.OutOrStdout())
}

func historyFlags(cmd *cobra.Command, args []string) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	flags := cmd.Flags()
	if opts.list, err = flags.GetBool("list"); err != nil {
		return opts, err
	}
	if opts.listHosts, err = flags.GetBool("list-hosts"); err != nil {
		return opts, err
	}
	if opts.withRunID, err = flags.GetInt64("with-run-id"); err != nil {
		return opts, err
	}
	if opts.since, err = flags.GetString("since"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if len(args) > 0 {
		opts.host = args[0]
	}
	return opts, nil
}

// runHistory executes a history query against db.
func runHistory(ctx context.Context, db *database.CrawlDB, opts historyOptions, out io.Writer) error {
	switch {
	case opts.listHosts:
		return listHosts(ctx, db, out)
	case opts.list:
		return listRuns(ctx, db, opts.host, out)
	default:
		return compareRuns(ctx, db, opts, out)
	}
}

func listHosts(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	hosts, err := db.ListHosts(ctx)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No crawled hosts found in the database.")
		fmt.Fprintln(out, "\nUse 'linkwalk crawl <hostname>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled hosts (%d):\n\n", len(hosts))
	for _, h := range hosts {
		fmt.Fprintf(out, "  • %s\n", h)
	}
	fmt.Fprintln(out, "\nUse 'linkwalk history --list <hostname>' to see the runs of a host.")
	return nil
}

func listRuns(ctx context.Context, db *database.CrawlDB, host string, out io.Writer) error {
	runs, err := db.GetRunHistory(ctx, host)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", host)
		return nil
	}

	fmt.Fprintf(out, "Runs of %s (%d):\n\n", host, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %s\n", "ID", "Started", "Pages", "Status classes")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, run := range runs {
		line := fmt.Sprintf("  %-6d  %-20s  %-6d  %s", run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.PageCount, formatClassSummary(run.Summary))
		if run.Cancelled {
			line += " (cancelled)"
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, "\nUse 'linkwalk history <hostname>' to compare the latest two runs.")
	return nil
}

// formatClassSummary renders counts in status class order, e.g. "2xx=12 4xx=1".
func formatClassSummary(summary map[string]int) string {
	var parts []string
	for _, c := range model.AllStatusClasses {
		if n := summary[c.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	if len(parts) == 0 {
		return "no pages"
	}
	return strings.Join(parts, " ")
}

// compareRuns compares the latest run of the host with an earlier one.
func compareRuns(ctx context.Context, db *database.CrawlDB, opts historyOptions, out io.Writer) error {
	runs, err := db.GetRunHistory(ctx, opts.host)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no crawl history found for %s", opts.host)
	}
	if len(runs) < 2 && opts.withRunID == 0 && opts.since == "" {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	previousID, err := pickPrevious(runs, opts)
	if err != nil {
		return err
	}

	current, err := db.GetRun(ctx, runs[0].ID)
	if err != nil {
		return err
	}
	previous, err := db.GetRun(ctx, previousID)
	if err != nil {
		return err
	}
	if current == nil || previous == nil {
		return fmt.Errorf("run %d not found", previousID)
	}
	if previous.Host != opts.host {
		return fmt.Errorf("run %d belongs to %s, not %s", previousID, previous.Host, opts.host)
	}

	diff := model.CompareReports(previous, current)
	switch {
	case opts.json:
		return report.WriteDiffJSON(out, diff)
	case opts.markdown:
		return report.WriteDiffMarkdown(out, diff)
	default:
		return report.WriteDiffText(out, diff)
	}
}

// pickPrevious chooses the run to compare against. runs is newest first.
func pickPrevious(runs []database.RunMetadata, opts historyOptions) (int64, error) {
	latest := runs[0].ID
	switch {
	case opts.withRunID > 0:
		if opts.withRunID == latest {
			return 0, fmt.Errorf("run %d is the latest run; choose an earlier one", latest)
		}
		return opts.withRunID, nil
	case opts.since != "":
		since, err := time.ParseInLocation(sinceLayout, opts.since, time.Local)
		if err != nil {
			return 0, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		for i := len(runs) - 1; i >= 0; i-- {
			if !runs[i].StartedAt.Before(since) {
				if runs[i].ID == latest {
					return 0, fmt.Errorf("only one run found since %s; at least 2 runs are required", opts.since)
				}
				return runs[i].ID, nil
			}
		}
		return 0, fmt.Errorf("no runs found since %s", opts.since)
	default:
		return runs[1].ID, nil
	}
}
