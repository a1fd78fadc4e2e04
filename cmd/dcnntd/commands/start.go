package commands

import (
	"github.com/spf13/cobra"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start dcnntd",
	Long: `Start dcnntd. By default the server forks into the background (daemon
mode); use --foreground to run attached to the current terminal instead.

Examples:
  dcnntd start
  dcnntd start --foreground
  dcnntd start --configuration-directory /etc/dcnnt`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in the foreground instead of forking a daemon")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/dcnnt/dcnntd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/dcnnt/dcnntd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}
	foregroundPidFile = pidFile
	return runForeground(cmd, args)
}
