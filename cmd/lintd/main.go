// Package main is the entry point for the lintd CLI.
package main

import (
	"errors"
	"os"

	"github.com/proselab/lintd/internal/cli"
	"github.com/proselab/lintd/internal/logging"
)

// Build-time variables set via ldflags.
//
//nolint:gochecknoglobals // Version variables must be package-level for ldflags injection
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	info := cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	rootCmd := cli.NewRootCommand(info)

	if err := rootCmd.Execute(); err != nil {
		// ErrIssuesFound is just an exit-code signal, not a failure to log.
		if !errors.Is(err, cli.ErrIssuesFound) {
			logging.Default().Error("command failed", logging.FieldError, err)
		}
		return 1
	}
	return 0
}
