package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/report"
	"github.com/user/minerscan/internal/storage"
)

var (
	reportScan   bool
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a Markdown fleet report",
	Long: `Generate a Markdown fleet report with model breakdown, top producers and
hot miners. The report is built from the last persisted pass unless --scan
is given.

Examples:
  minerscan report
  minerscan report --scan -o -`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportScan, "scan", false, "Scan the saved ranges before reporting")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "",
		"Output directory, or - for stdout (default: <data_dir>/reports)")
}

func runReport(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	if err := populate(e, !reportScan); err != nil {
		return err
	}

	var latest *model.PassSummary
	if db := e.DB(); db != nil {
		latest, err = storage.NewPassStorage(db).GetLatest()
		if err != nil {
			return fmt.Errorf("failed to load latest pass: %w", err)
		}
	}

	data := report.NewGenerator(e.Registry()).Generate(latest)

	if reportOutput == "-" {
		fmt.Print(report.FormatMarkdown(data))
		return nil
	}

	dir := reportOutput
	if dir == "" {
		dir = filepath.Join(cfg.DataDir, "reports")
	}
	path, err := report.WriteMarkdownFile(data, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}
