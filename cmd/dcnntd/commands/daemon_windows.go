//go:build windows

package commands

import "fmt"

// startDaemon is not supported on Windows; run with --foreground instead.
func startDaemon() error {
	return fmt.Errorf("daemon mode is not supported on Windows, use --foreground")
}
