//go:build unix

package util

import "golang.org/x/sys/unix"

// RaiseFileLimit lifts the soft open-file limit to the hard limit so wide
// scans are not starved of sockets.
func RaiseFileLimit() {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		Warn("Failed to read file descriptor limit: %v", err)
		return
	}
	if lim.Cur >= lim.Max {
		return
	}

	prev := lim.Cur
	lim.Cur = lim.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		Warn("Failed to raise file descriptor limit: %v", err)
		return
	}
	Debug("Raised file descriptor limit from %d to %d", prev, lim.Cur)
}
