package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/registry"
	"github.com/user/minerscan/internal/report"
)

var (
	exportStored bool
	exportOutput string
	exportSearch string
	exportSort   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the miner table as CSV",
	Long: `Export the miner table as CSV. By default the saved ranges are scanned
first; --stored exports the miners persisted by the last pass instead.

Examples:
  minerscan export -o fleet.csv
  minerscan export --stored --search S19 > s19.csv`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportStored, "stored", false, "Export the last persisted pass without scanning")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportSearch, "search", "", "Only export rows matching this text")
	exportCmd.Flags().StringVar(&exportSort, "sort", "address", "Sort column")
}

func runExport(cmd *cobra.Command, args []string) error {
	col, err := registry.ParseColumn(exportSort)
	if err != nil {
		return err
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	if err := populate(e, exportStored); err != nil {
		return err
	}

	entries := e.Registry().Query(registry.Query{Search: exportSearch, SortBy: col})

	if exportOutput == "" || exportOutput == "-" {
		return report.WriteCSV(os.Stdout, entries)
	}
	if err := report.ExportFile(exportOutput, entries); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d miners to %s\n", len(entries), exportOutput)
	return nil
}

// populate fills the registry either from storage or from a fresh pass over
// the saved ranges.
func populate(e *daemon.Engine, stored bool) error {
	if stored {
		n, err := loadStored(e)
		if err != nil {
			return fmt.Errorf("failed to load stored miners: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("no stored miners; run `minerscan scan` first")
		}
		return nil
	}

	ranges := cfg.Ranges()
	if len(ranges) == 0 {
		return daemon.ErrNoRanges
	}
	if _, err := e.ScanAndWait(e.Context(), ranges); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}
