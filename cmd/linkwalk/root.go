package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkwalk.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkwalk",
		Short: "Same-origin web crawler that reports broken and slow pages",
		Long: `linkwalk crawls a website starting from a seed URL. It follows every
anchor that stays on the seed's origin, fetches each page exactly once,
and records the status code and response time of every URL it visits.

Results are printed as they arrive, written to a timestamped CSV file,
and kept in a local history database for later comparison.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with status 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
