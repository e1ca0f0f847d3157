package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/web"
)

var webPort int

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Start the web dashboard and JSON API",
	Long: `Start the engine with the web dashboard and JSON API in the foreground.
Use 'minerscan start --with-web' to run it alongside the daemon instead.`,
	RunE: runWeb,
}

func init() {
	webCmd.Flags().IntVarP(&webPort, "port", "p", 0, "Port to listen on (default: web_port from config)")
}

func runWeb(cmd *cobra.Command, args []string) error {
	if webPort == 0 {
		webPort = cfg.WebPort
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	if _, err := loadStored(e); err != nil {
		fmt.Printf("No stored miners loaded: %v\n", err)
	}

	if err := e.Start(daemon.RunOptions{
		HandleSignals:    true,
		HeadlessSampling: true,
		WatchConfig:      true,
	}); err != nil {
		return err
	}

	fmt.Printf("Web dashboard: http://localhost:%d\n", webPort)
	return web.NewServer(e, webPort).Start(e.Context())
}
