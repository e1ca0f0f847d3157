package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/storage"
	"github.com/user/minerscan/internal/util"
)

var version = "dev"

var (
	cfgFile string
	cfg     *util.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "minerscan",
	Short: "ASIC miner discovery and telemetry",
	Long: `minerscan discovers ASIC miners on local IPv4 ranges and tracks them:
- Scans saved address ranges on an interval
- Keeps a fleet registry with hashrate, power, efficiency and temperatures
- Samples per-miner and fleet hashrate history
- Records detailed telemetry to CSV and exports fleet snapshots
- Sends resume, pause and identify commands in bulk

It runs as a background daemon, in a terminal dashboard, or as a web API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.minerscan/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rangesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(controlCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(versionCmd)

	// Add shell completion
	rootCmd.AddCommand(completionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	var err error
	cfg, err = util.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	util.InitLogger(cfg.LogLevel, cfg.LogFile, true)
	util.RaiseFileLimit()
}

// newEngine builds an engine from the loaded configuration.
func newEngine(opts ...daemon.Option) (*daemon.Engine, error) {
	e, err := daemon.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return e, nil
}

// loadStored seeds the engine registry from the last persisted pass.
func loadStored(e *daemon.Engine) (int, error) {
	db := e.DB()
	if db == nil {
		return 0, fmt.Errorf("no database available in %s", cfg.DataDir)
	}
	readings, err := storage.NewMinerStorage(db).GetAll()
	if err != nil {
		return 0, err
	}
	byAddr := make(map[string]model.DeviceReading, len(readings))
	for _, r := range readings {
		byAddr[r.Address] = r
	}
	e.Registry().ReplaceAll(byAddr)
	return len(byAddr), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("minerscan version %s\n", version)
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for minerscan.

To load completions:

Bash:
  $ source <(minerscan completion bash)

Zsh:
  $ source <(minerscan completion zsh)

Fish:
  $ minerscan completion fish | source

PowerShell:
  PS> minerscan completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}
