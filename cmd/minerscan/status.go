package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/storage"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	stoppedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  "Show the current status of the minerscan daemon and the latest stored pass.",
	RunE:  runStatus,
}

func field(label, value string) {
	fmt.Printf("  %s %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

func runStatus(cmd *cobra.Command, args []string) error {
	// Check daemon status
	running, pid := daemon.CheckRunning(cfg.DataDir)

	fmt.Println(titleStyle.Render("minerscan status"))
	fmt.Println()

	// Daemon status
	fmt.Print(labelStyle.Render("Daemon: "))
	if running {
		fmt.Println(runningStyle.Render(fmt.Sprintf("Running (PID %d)", pid)))
	} else {
		fmt.Println(stoppedStyle.Render("Stopped"))
	}

	// Try to read status file for more details
	if sf, err := daemon.ReadStatusFile(cfg.DataDir); err == nil && running {
		field("Started:", sf.StartTime)
		field("Uptime:", sf.Uptime)
		field("Miners:", fmt.Sprintf("%d", sf.Miners))
		field("Hashrate:", fmt.Sprintf("%.2f TH/s", sf.TotalHashrate))
		if len(sf.Observed) > 0 {
			field("Watching:", fmt.Sprintf("%v", sf.Observed))
		}
		if sf.Scan.Scanning {
			field("Scanning:", fmt.Sprintf("%d/%d addresses, %d found (%s)",
				sf.Scan.ScannedAddresses, sf.Scan.TotalAddresses, sf.Scan.Found, sf.Scan.CurrentAddress))
		}

		if len(sf.Jobs) > 0 {
			fmt.Println()
			fmt.Println(titleStyle.Render("Jobs"))

			for _, job := range sf.Jobs {
				statusStr := "idle"
				if job.Running {
					statusStr = "running"
				}
				fmt.Printf("  %s: %s (last: %s, errors: %d)\n",
					labelStyle.Render(job.Name),
					valueStyle.Render(statusStr),
					job.LastRun.Format("15:04:05"),
					job.ErrorCount)
			}
		}
	}

	// Get database stats
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return nil
	}
	defer db.Close()

	fmt.Println()
	fmt.Println(titleStyle.Render("Stored data"))

	passes := storage.NewPassStorage(db)
	if count, err := passes.Count(); err == nil {
		field("Passes:", fmt.Sprintf("%d", count))
	}

	miners := storage.NewMinerStorage(db)
	if count, err := miners.Count(); err == nil {
		field("Miners:", fmt.Sprintf("%d", count))
	}
	if models, err := miners.CountByModel(); err == nil {
		for _, m := range models {
			field("  "+m.Model+":", fmt.Sprintf("%d", m.Count))
		}
	}

	// Show latest pass
	if latest, err := passes.GetLatest(); err == nil && latest != nil {
		fmt.Println()
		fmt.Println(titleStyle.Render("Latest pass"))
		field("ID:", latest.ID)
		field("Finished:", latest.FinishedAt.Format(time.DateTime))
		field("Duration:", latest.Duration.Round(time.Millisecond).String())
		field("Ranges:", fmt.Sprintf("%v", latest.Ranges))
		field("Found:", fmt.Sprintf("%d of %d addresses", latest.Found, latest.TotalAddresses))
		if latest.FailedRanges > 0 {
			field("Failed ranges:", fmt.Sprintf("%d", latest.FailedRanges))
		}
	}

	return nil
}
