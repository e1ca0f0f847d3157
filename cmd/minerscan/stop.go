package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/daemon"
)

var stopTimeout time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the minerscan daemon",
	Long: `Stop the running minerscan daemon with SIGTERM.

A pass in progress is abandoned between ranges and the previous miner
snapshot is kept. Observations end, so recordings that were never
exported are deleted unless discard_recording_on_close is false.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 30*time.Second,
		"How long to wait for the daemon to exit")
}

func runStop(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)
	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	fmt.Printf("Stopping daemon (PID %d)...\n", pid)

	if err := daemon.SendStop(cfg.DataDir); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(500 * time.Millisecond)
		if running, _ := daemon.CheckRunning(cfg.DataDir); !running {
			fmt.Println("Daemon stopped")
			return nil
		}
	}

	return fmt.Errorf("daemon (PID %d) still running after %s", pid, stopTimeout)
}
