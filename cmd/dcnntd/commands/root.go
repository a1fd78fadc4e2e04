// Package commands implements the dcnntd CLI's cobra subcommands, one per
// spec §6 mode (start, stop, restart, pair, doc, foreground). Grounded on
// cmd/dfs/commands/{root,start,stop,daemon_unix,util}.go's root/persistent
// flag/daemon-process layout.
package commands

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcnnt/dcnntd/internal/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	configDir string
)

// ErrUsage marks a cobra RunE failure as a CLI argument error, so main can
// map it to exit code 2 per spec §6.
var ErrUsage = errors.New("usage error")

var rootCmd = &cobra.Command{
	Use:   "dcnntd",
	Short: "dcnntd - pairing daemon for dcnnt-compatible mobile clients",
	Long: `dcnntd answers UDP discovery broadcasts, completes device pairing, and
serves encrypted JSON-RPC sessions to paired phones over TCP.

Use "dcnntd [mode] --help" for more information about a mode.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "configuration-directory", config.DefaultConfigDir(),
		"Directory holding conf.json, devices/, and plugins/ (default: $HOME/.config/dcnnt)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(foregroundCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(docCmd)
}

// GetConfigDir returns the --configuration-directory flag's value.
func GetConfigDir() string { return configDir }

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command { return rootCmd }

// PrintErr prints an error message to stderr via the root command.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and terminates the process with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
