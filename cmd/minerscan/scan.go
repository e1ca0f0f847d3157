package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/registry"
	"github.com/user/minerscan/internal/report"
)

var (
	scanStart  string
	scanEnd    string
	scanSaved  []string
	scanExport string
	scanSort   string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one discovery pass",
	Long: `Run one discovery pass in the foreground and print the miners found.

Without --start/--end or --saved every saved range is scanned.

Examples:
  minerscan scan --start 10.0.81.1 --end 10.0.81.254
  minerscan scan --saved rack-a,rack-b --export fleet.csv`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanStart, "start", "", "First address of the range")
	scanCmd.Flags().StringVar(&scanEnd, "end", "", "Last address of the range")
	scanCmd.Flags().StringSliceVar(&scanSaved, "saved", nil, "Saved range names to scan")
	scanCmd.Flags().StringVar(&scanExport, "export", "", "Write the results as CSV to this file")
	scanCmd.Flags().StringVar(&scanSort, "sort", "address", "Sort column for the printed table")
}

func selectRanges(start, end string, saved []string) ([]iprange.Range, error) {
	if start != "" || end != "" {
		r, err := iprange.Parse(start, end)
		if err != nil {
			return nil, err
		}
		return []iprange.Range{r}, nil
	}

	if len(saved) > 0 {
		out := make([]iprange.Range, 0, len(saved))
		for _, name := range saved {
			sr, ok := cfg.FindRange(name)
			if !ok {
				return nil, fmt.Errorf("saved range %q not found", name)
			}
			r, err := iprange.Decode(sr.Range)
			if err != nil {
				return nil, fmt.Errorf("saved range %q: %w", name, err)
			}
			out = append(out, r)
		}
		return out, nil
	}

	ranges := cfg.Ranges()
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no saved ranges; use --start/--end or `minerscan ranges add`")
	}
	return ranges, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ranges, err := selectRanges(scanStart, scanEnd, scanSaved)
	if err != nil {
		return err
	}
	col, err := registry.ParseColumn(scanSort)
	if err != nil {
		return err
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	total := 0
	for _, r := range ranges {
		total += r.Count()
	}
	fmt.Printf("Scanning %d ranges (%d addresses)...\n", len(ranges), total)

	done := make(chan struct{})
	go printProgress(e, done)

	summary, err := e.ScanAndWait(ctx, ranges)
	close(done)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	entries := e.Registry().Query(registry.Query{SortBy: col})
	printMiners(entries)

	fmt.Println()
	fmt.Printf("Found %d miners in %s", summary.Found, summary.Duration.Round(time.Millisecond))
	if summary.FailedRanges > 0 {
		fmt.Printf(" (%d ranges failed)", summary.FailedRanges)
	}
	fmt.Println()

	if scanExport != "" {
		if err := report.ExportFile(scanExport, entries); err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", scanExport)
	}

	return nil
}

func printProgress(e *daemon.Engine, done <-chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			st := e.Progress().Snapshot()
			if !st.Scanning {
				continue
			}
			fmt.Printf("\r  %5.1f%%  %d/%d  found %d  %-15s",
				st.Fraction()*100, st.ScannedAddresses, st.TotalAddresses, st.Found, st.CurrentAddress)
		}
	}
}

func printMiners(entries []model.MinerEntry) {
	if len(entries) == 0 {
		fmt.Println("No miners found")
		return
	}

	fmt.Printf("%-16s %-22s %-10s %-8s %-6s %-8s %-10s %s\n",
		"Address", "Model", "TH/s", "Power", "W/TH", "Temp", "Fan", "Worker")
	for _, e := range entries {
		d := e.Display
		fmt.Printf("%-16s %-22s %-10s %-8s %-6s %-8s %-10s %s\n",
			e.Address, truncate(d.Model, 22), d.Hashrate, d.Wattage, d.Efficiency,
			d.Temperature, d.FanSpeed, d.Worker)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
