package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkwalk/internal/config"
)

//go:embed templates/linkwalk.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .linkwalk configuration file",
		Long: `Init writes an annotated .linkwalk configuration file.

The file holds defaults for every crawl and per-site settings such as
cookies, headers, Basic auth, depth, worker count and URL patterns.

Examples:
  # Create .linkwalk in the current directory
  linkwalk init

  # Write to a specific path
  linkwalk init -o ~/.config/linkwalk/config.yaml

  # Overwrite an existing file
  linkwalk init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/linkwalk.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to set per-site options such as:")
	fmt.Fprintln(out, "  - Cookies, headers and Basic auth")
	fmt.Fprintln(out, "  - Crawl depth, workers and delay")
	fmt.Fprintln(out, "  - URL patterns to ignore or follow")
	return nil
}
