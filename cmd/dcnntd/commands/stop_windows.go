//go:build windows

package commands

import (
	"fmt"
	"os"
)

// stopProcess stops dcnntd on Windows. Signals are not available, so a
// graceful stop sends os.Interrupt and a forced stop kills the process
// outright.
func stopProcess(process *os.Process, pid int, force bool) error {
	if force {
		fmt.Printf("Killing process %d...\n", pid)
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to kill process: %w", err)
		}
		return nil
	}

	fmt.Printf("Sending interrupt to process %d...\n", pid)
	if err := process.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("failed to interrupt process: %w", err)
	}
	return nil
}
