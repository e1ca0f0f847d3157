package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/util"
)

var rangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Manage saved address ranges",
}

var rangesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved ranges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.SavedRanges) == 0 {
			fmt.Println("No saved ranges")
			return nil
		}
		for _, sr := range cfg.SavedRanges {
			fmt.Printf("%-20s %s\n", sr.Name, sr.Range)
		}
		return nil
	},
}

var rangesAddCmd = &cobra.Command{
	Use:     "add <name> <start> <end>",
	Short:   "Save a named range",
	Example: "  minerscan ranges add rack-a 10.0.81.1 10.0.81.254",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		saved, err := cfg.AddRange(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		if err := util.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Saved %s (%s)\n", saved.Name, saved.Range)
		return nil
	},
}

var rangesRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a saved range",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveRange(args[0]); err != nil {
			return err
		}
		if err := util.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var rangesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a saved range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sr, ok := cfg.FindRange(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", util.ErrRangeNotFound, args[0])
		}
		r, err := iprange.Decode(sr.Range)
		if err != nil {
			return err
		}
		start, end := r.Bounds()
		fmt.Printf("Name:      %s\n", sr.Name)
		fmt.Printf("Start:     %s\n", start)
		fmt.Printf("End:       %s\n", end)
		fmt.Printf("Addresses: %d\n", r.Count())
		return nil
	},
}

func init() {
	rangesCmd.AddCommand(rangesListCmd, rangesAddCmd, rangesRemoveCmd, rangesShowCmd)
}
