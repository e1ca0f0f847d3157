package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/control"
)

var controlCmd = &cobra.Command{
	Use:       "control <resume|pause|identify> <ip>...",
	Short:     "Send a command to one or more miners",
	Long:      "Send resume, pause or identify to miners. Identify toggles the locate light.",
	Example:   "  minerscan control pause 10.0.81.12 10.0.81.13",
	ValidArgs: []string{string(control.ActionResume), string(control.ActionPause), string(control.ActionIdentify)},
	Args:      cobra.MinimumNArgs(2),
	RunE:      runControl,
}

func runControl(cmd *cobra.Command, args []string) error {
	action, err := control.ParseAction(args[0])
	if err != nil {
		return err
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	// The stored snapshot carries the last known light state for identify.
	if _, err := loadStored(e); err != nil && action == control.ActionIdentify {
		fmt.Printf("No stored snapshot, identify will turn lights on: %v\n", err)
	}

	res := e.Controller().Run(context.Background(), action, args[1:])
	printResult(res)

	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d commands failed", len(res.Failed), len(args)-1)
	}
	return nil
}

func printResult(res control.Result) {
	for _, addr := range res.Succeeded {
		fmt.Printf("  %s %s\n", runningStyle.Render("✓"), addr)
	}

	failed := make([]string, 0, len(res.Failed))
	for addr := range res.Failed {
		failed = append(failed, addr)
	}
	sort.Strings(failed)
	for _, addr := range failed {
		fmt.Printf("  %s %s: %s\n", stoppedStyle.Render("✗"), addr, res.Failed[addr])
	}
}
