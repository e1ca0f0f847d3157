package main

import (
	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/tui"
	"github.com/user/minerscan/internal/util"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the terminal dashboard",
	Long: `Open the interactive terminal dashboard. The miner table can be searched,
sorted and selected; enter opens a detail pane with live charts.`,
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	// Console output would corrupt the alternate screen.
	util.InitLogger(cfg.LogLevel, cfg.LogFile, false)

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	if _, err := loadStored(e); err != nil {
		util.Debug("No stored miners loaded: %v", err)
	}

	if err := e.Start(daemon.RunOptions{WatchConfig: true}); err != nil {
		return err
	}

	return tui.NewApp(e).Run()
}
