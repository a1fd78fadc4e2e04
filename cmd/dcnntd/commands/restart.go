package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart dcnntd",
	Long: `Stop a running dcnntd instance, if any, then start a new one in the
background. Equivalent to "dcnntd stop" followed by "dcnntd start".

Examples:
  dcnntd restart
  dcnntd restart --pid-file /var/run/dcnntd.pid`,
	RunE: runRestart,
}

func init() {
	restartCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/dcnnt/dcnntd.pid)")
	restartCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/dcnnt/dcnntd.log)")
}

func runRestart(cmd *cobra.Command, args []string) error {
	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if pidData, err := os.ReadFile(pidPath); err == nil {
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(pidData)))
		if parseErr == nil {
			if process, findErr := os.FindProcess(pid); findErr == nil {
				if err := stopProcess(process, pid, false); err != nil && err != errProcessDone {
					return fmt.Errorf("failed to stop existing instance: %w", err)
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	fmt.Println("Starting dcnntd...")
	return startDaemon()
}
