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
)

var (
	watchRecord bool
	watchOutput string
)

var watchCmd = &cobra.Command{
	Use:   "watch <ip>",
	Short: "Observe one miner in the foreground",
	Long: `Identify one miner, then refresh it on the detail refresh interval and
print every new reading. With --record each reading is appended to a CSV
recording that is kept after exit.`,
	Example: "  minerscan watch 10.0.81.12 --record",
	Args:    cobra.ExactArgs(1),
	RunE:    runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchRecord, "record", false, "Record readings to CSV")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "Copy the recording here on exit")
}

func runWatch(cmd *cobra.Command, args []string) error {
	addr := args[0]
	r, err := iprange.Parse(addr, addr)
	if err != nil {
		return err
	}

	if watchRecord {
		cfg.DiscardRecordingOnClose = false
	}

	e, err := newEngine(daemon.WithoutPersistence())
	if err != nil {
		return err
	}
	defer e.Stop()

	summary, err := e.ScanAndWait(e.Context(), []iprange.Range{r})
	if err != nil {
		return err
	}
	if summary.Found == 0 {
		return fmt.Errorf("no miner answered at %s", addr)
	}

	if err := e.Observer().Open(addr); err != nil {
		return err
	}
	if watchRecord {
		state, err := e.Observer().StartRecording(addr)
		if err != nil {
			return err
		}
		fmt.Printf("Recording to %s\n", state.Path())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.Start(daemon.RunOptions{HeadlessSampling: true}); err != nil {
		return err
	}

	fmt.Printf("Watching %s every %s. Press Ctrl+C to stop.\n", addr, cfg.DetailRefreshInterval())

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var last time.Time
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			entry, ok := e.Registry().Get(addr)
			if !ok || entry.Reading == nil || !entry.Reading.ReadAt.After(last) {
				continue
			}
			last = entry.Reading.ReadAt
			printReading(entry)
		}
	}

	if state, ok := e.Observer().Recording(addr); ok {
		fmt.Printf("Recorded %d rows to %s\n", state.Rows(), state.Path())
		if watchOutput != "" {
			if err := e.Observer().ExportRecording(addr, watchOutput); err != nil {
				return err
			}
			fmt.Printf("Exported to %s\n", watchOutput)
		}
	}
	return nil
}

func printReading(e model.MinerEntry) {
	d := e.Display
	boards := ""
	for _, b := range e.Reading.Hashboards {
		if b.Hashrate != nil {
			boards += fmt.Sprintf(" %.2f", *b.Hashrate)
		}
	}
	fmt.Printf("%s  %s TH/s  %s  %s W/TH  %s  boards:%s\n",
		e.Reading.ReadAt.Format("15:04:05"), d.Hashrate, d.Wattage, d.Efficiency, d.Temperature, boards)
}
