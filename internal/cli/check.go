package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/proselab/lintd/internal/logging"
	"github.com/proselab/lintd/internal/ui/pretty"
	"github.com/proselab/lintd/pkg/diag"
	"github.com/proselab/lintd/pkg/engine"
	"github.com/proselab/lintd/pkg/engine/prose"
	"github.com/proselab/lintd/pkg/fixes"
	"github.com/proselab/lintd/pkg/fsutil"
	"github.com/proselab/lintd/pkg/ignore"
	"github.com/proselab/lintd/pkg/lintconfig"
)

// ErrIssuesFound is returned when check finds problems; it only carries the
// exit code, so the root command does not log it.
var ErrIssuesFound = errors.New("lint issues found")

type checkFlags struct {
	engineName string
	ignoreFile string
	targetPath string
	color      string
	fix        bool
	strict     bool
}

func newCheckCommand() *cobra.Command {
	flags := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Lint files once and print the findings",
		Long: `Lint the given files or directories once, without a language server.

Examples:
  lintd check README.md          # Check a single file
  lintd check docs/              # Check a directory tree
  lintd check --fix docs/        # Apply non-overlapping fixes in place
  lintd check --strict notes.md  # Warnings fail the run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.engineName, "engine", prose.Name, "lint engine to run")
	cmd.Flags().StringVar(&flags.ignoreFile, "ignore-file", "", "path to ignore file")
	cmd.Flags().StringVar(&flags.targetPath, "target", "", "glob limiting linting to matching paths")
	cmd.Flags().StringVar(&flags.color, "color", "auto", "colorize output: auto, always, never")
	cmd.Flags().BoolVar(&flags.fix, "fix", false, "apply fixes in place")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "treat warnings as errors for exit code")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string, flags *checkFlags) error {
	logger := logging.Default()

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	explicit, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("get config flag: %w", err)
	}

	registry := engine.NewRegistry()
	if err := prose.Register(registry); err != nil {
		return fmt.Errorf("register built-in engine: %w", err)
	}
	factory, ok := registry.Lookup(flags.engineName)
	if !ok {
		return fmt.Errorf("unknown engine %q", flags.engineName)
	}

	resolver := &lintconfig.Resolver{
		Workspace: workDir,
		Explicit:  explicit,
		OnMissing: func() { logger.Debug("no lint configuration found, using defaults") },
	}
	configPath := resolver.Find()
	if configPath != "" {
		logger.Debug("using configuration", logging.FieldConfig, configPath)
	}

	eng, err := factory(configPath)
	if err != nil {
		return fmt.Errorf("bind engine: %w", err)
	}

	filter := ignore.New(workDir)
	if err := filter.Configure(flags.targetPath, flags.ignoreFile); err != nil {
		return err
	}

	files, err := collectFiles(args, workDir, eng, filter)
	if err != nil {
		return err
	}

	styles := pretty.NewStyles(pretty.IsColorEnabled(flags.color, cmd.OutOrStdout()))
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	var all []engine.Finding
	fixable, fixed := 0, 0
	mapper := diag.Mapper{Source: "lintd"}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		findings, err := eng.ExecuteOnText(ctx, string(content), filepath.Ext(path))
		if err != nil {
			return fmt.Errorf("lint %s: %w", path, err)
		}

		rel, relErr := filepath.Rel(workDir, path)
		if relErr != nil {
			rel = path
		}
		repo := fixes.NewRepository(path)
		for i := range findings {
			fmt.Fprint(out, styles.FormatFinding(rel, &findings[i]))
			d, f := mapper.ToDiagnostic(findings[i])
			if repo.Register(0, d, f) {
				fixable++
			}
		}
		all = append(all, findings...)

		if flags.fix && !repo.IsEmpty() {
			batch := fixes.Edits(repo.Separated(nil))
			if err := fixes.ValidateEdits(batch, len(content)); err != nil {
				return fmt.Errorf("fix %s: %w", path, err)
			}
			fixedContent := fixes.ApplyEdits(content, batch)
			if _, err := fsutil.WriteAtomicIfChanged(path, fixedContent); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fixed += len(batch)
		}
	}

	fmt.Fprint(out, styles.FormatSummary(len(files), len(all), fixable, fixed))

	if ExitCodeFromFindings(all, flags.strict) != ExitSuccess {
		return ErrIssuesFound
	}
	return nil
}

// collectFiles expands the path arguments into eligible files supported by
// the engine, sorted and deduplicated.
func collectFiles(args []string, workDir string, eng engine.Engine, filter *ignore.Filter) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, arg := range args {
		abs := arg
		if !filepath.IsAbs(arg) {
			abs = filepath.Join(workDir, arg)
		}
		abs = filepath.Clean(abs)

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			if engine.Supports(eng, filepath.Ext(abs)) && filter.IsTarget(abs) {
				add(abs)
			}
			continue
		}
		err = filepath.WalkDir(abs, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if os.IsPermission(walkErr) {
					return nil
				}
				return walkErr
			}
			if entry.IsDir() {
				return nil
			}
			if engine.Supports(eng, filepath.Ext(path)) && filter.IsTarget(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return files, nil
}
