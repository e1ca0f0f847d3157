package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/util"
	"github.com/user/minerscan/internal/web"
)

var (
	foreground   bool
	withWeb      bool
	startWebPort int
	startWatch   []string
	startRecord  bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the minerscan daemon",
	Long: `Start the minerscan daemon in the background. It scans the saved ranges on
the auto-scan interval, persists every pass and keeps refreshing watched miners.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false,
		"Run in foreground instead of daemonizing")
	startCmd.Flags().BoolVar(&withWeb, "with-web", false,
		"Also start the web dashboard server")
	startCmd.Flags().IntVar(&startWebPort, "web-port", 0,
		"Port for web server (default: web_port from config)")
	startCmd.Flags().StringSliceVar(&startWatch, "watch", nil,
		"Miner addresses to observe once discovered")
	startCmd.Flags().BoolVar(&startRecord, "record", false,
		"Record watched miners to CSV")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Check if already running
	running, pid := daemon.CheckRunning(cfg.DataDir)
	if running {
		fmt.Printf("Daemon is already running (PID %d)\n", pid)
		return nil
	}

	if startWebPort == 0 {
		startWebPort = cfg.WebPort
	}

	if foreground {
		return runForeground()
	}

	return runDaemon()
}

func runForeground() error {
	fmt.Println("Starting minerscan in foreground mode...")

	// Recordings requested on the command line outlive the observation.
	if startRecord {
		cfg.DiscardRecordingOnClose = false
	}

	e, err := newEngine()
	if err != nil {
		return err
	}

	if err := e.Start(daemon.RunOptions{
		PIDFile:          true,
		HandleSignals:    true,
		HeadlessSampling: true,
		WatchConfig:      true,
	}); err != nil {
		e.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Start web server if requested
	if withWeb {
		go func() {
			srv := web.NewServer(e, startWebPort)
			fmt.Printf("Web dashboard: http://localhost:%d\n", startWebPort)
			if err := srv.Start(e.Context()); err != nil {
				util.Error("Web server error: %v", err)
			}
		}()
	}

	for _, addr := range startWatch {
		go watchWhenDiscovered(e.Context(), e, addr, startRecord)
	}

	fmt.Println("minerscan daemon started. Press Ctrl+C to stop.")

	// Wait for daemon to finish
	e.Wait()
	return e.Stop()
}

// watchWhenDiscovered opens addr as soon as a pass registers it.
func watchWhenDiscovered(ctx context.Context, e *daemon.Engine, addr string, record bool) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if _, ok := e.Registry().Get(addr); ok {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	if err := e.Observer().Open(addr); err != nil {
		util.Warn("Failed to watch %s: %v", addr, err)
		return
	}
	util.Info("Watching %s", addr)

	if record {
		state, err := e.Observer().StartRecording(addr)
		if err != nil {
			util.Warn("Failed to record %s: %v", addr, err)
			return
		}
		util.Info("Recording %s to %s", addr, state.Path())
	}
}

func runDaemon() error {
	// Re-execute self in background
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Prepare arguments
	args := []string{"start", "--foreground"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if withWeb {
		args = append(args, "--with-web", "--web-port", fmt.Sprintf("%d", startWebPort))
	}
	for _, addr := range startWatch {
		args = append(args, "--watch", addr)
	}
	if startRecord {
		args = append(args, "--record")
	}

	// Create log file for daemon output
	if err := util.EnsureDir(cfg.DataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	// Start background process
	procAttr := &os.ProcAttr{
		Dir:   "/",
		Env:   os.Environ(),
		Files: []*os.File{nil, logFile, logFile},
		Sys: &syscall.SysProcAttr{
			Setsid: true,
		},
	}

	proc, err := os.StartProcess(executable, append([]string{executable}, args...), procAttr)
	if err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	// Detach from parent
	if err := proc.Release(); err != nil {
		util.Warn("Failed to release process: %v", err)
	}

	fmt.Printf("minerscan daemon started (PID %d)\n", proc.Pid)
	fmt.Printf("Logs: %s\n", cfg.LogFile)
	if withWeb {
		fmt.Printf("Web dashboard: http://localhost:%d\n", startWebPort)
	}

	return nil
}
