package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proselab/lintd/internal/logging"
	"github.com/proselab/lintd/internal/lsp"
	"github.com/proselab/lintd/pkg/engine"
	"github.com/proselab/lintd/pkg/engine/prose"
	"github.com/proselab/lintd/pkg/validate"
)

func newServeCommand() *cobra.Command {
	var (
		engineName string
		ignoreFile string
		targetPath string
		noWatch    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server over stdio",
		Long: `Run lintd as a language server, reading JSON-RPC from stdin and writing
to stdout. Intended to be launched by an editor, not interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("get config flag: %w", err)
			}

			registry := engine.NewRegistry()
			if err := prose.Register(registry); err != nil {
				return fmt.Errorf("register built-in engine: %w", err)
			}

			server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
				Registry: registry,
				Logger:   logging.Default(),
				Settings: validate.Settings{
					Engine:     engineName,
					ConfigPath: configPath,
					IgnoreFile: ignoreFile,
					TargetPath: targetPath,
				},
				WatchFiles: !noWatch,
			})

			err = server.Run(cmd.Context())
			if errors.Is(err, lsp.ErrExit) || errors.Is(err, lsp.ErrExitWithoutShutdown) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&engineName, "engine", prose.Name, "lint engine to run")
	cmd.Flags().StringVar(&ignoreFile, "ignore-file", "", "path to ignore file")
	cmd.Flags().StringVar(&targetPath, "target", "", "glob limiting linting to matching paths")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable watching config and ignore files")

	return cmd
}
