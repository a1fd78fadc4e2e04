package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dcnnt/dcnntd/cmd/dcnntd/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, commands.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
