//go:build !unix

package util

// RaiseFileLimit is a no-op on platforms without rlimits.
func RaiseFileLimit() {}
