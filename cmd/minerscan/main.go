// Command minerscan discovers ASIC miners on local IPv4 ranges and tracks
// their telemetry from a daemon, a terminal dashboard or a web API.
package main

import (
	"os"
	"runtime/debug"
)

func main() {
	// Builds installed with `go install` carry their module version.
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}

	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
