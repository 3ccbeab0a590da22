// Package cli provides the Cobra command structure for lintd.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/proselab/lintd/internal/logging"
)

// BuildInfo holds build-time version information.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand creates the root lintd command with all subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "lintd",
		Short: "A text-lint language server with one-click fixes",
		Long: `lintd runs a pluggable text-lint engine against your documents and
surfaces results as editor diagnostics with one-click fixes.

It speaks the Language Server Protocol over stdio (lintd serve) and also
works as a one-shot command-line checker (lintd check).`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debug {
				logging.SetLevel("debug")
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "path to lint config file")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newVersionCommand(info))

	return rootCmd
}
