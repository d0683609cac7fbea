package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-book-catalog/config"
	"github.com/aluiziolira/go-book-catalog/report"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate exported tables into a markdown report",
		Long: `Report reads the category tables produced by crawl and writes a markdown
summary with per-category record counts, average prices, and average ratings.

Examples:
  # Summarize the default export directory into report.md
  bookcatalog report

  # Print the report to stdout
  bookcatalog report --output -`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	defaults := config.DefaultConfig()
	cmd.Flags().String("csv-dir", defaults.CSVDir, "Directory holding exported category tables")
	cmd.Flags().StringP("output", "o", defaults.ReportFile, "Report file path, or - for stdout")

	return cmd
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	csvDir, err := cmd.Flags().GetString("csv-dir")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	summaries, err := report.Load(csvDir)
	if err != nil {
		return fmt.Errorf("aggregate tables: %w", err)
	}

	output := os.Stdout
	if outputPath != "" && outputPath != "-" {
		dir := filepath.Dir(outputPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create report directory: %w", err)
			}
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		output = f
	}

	if err := report.WriteMarkdown(output, summaries); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
