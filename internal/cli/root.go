// Package cli implements the cobra command tree for assetpipe.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/assetpipe/internal/config"
	"github.com/hupe1980/assetpipe/internal/logging"
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode maps an error to the process exit code: 2 for configuration
// errors, 1 for everything else.
func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	if config.IsConfigurationError(err) {
		return 2
	}

	return 1
}

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	return ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the command tree with args.
func ExecuteArgs(args []string) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return exitCode(err)
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "assetpipe [task...]",
		Short: "Build stylesheets and scripts from a task graph",
		Long: `assetpipe builds front-end assets from a build descriptor
(.assetpipe.yaml or package.json).

Tasks form a dependency graph. The built-in tasks are:

  scss     compile the entry stylesheet, add vendor prefixes, write it
  bundle   bundle the main script and its imports into one file
  watch    re-run tasks when their source files change
  default  run scss and bundle, then watch

Without arguments the default task runs. Descriptor "tasks" add shell
tasks that may depend on the built-in ones.`,
		Example: `  assetpipe                 # build everything, then watch
  assetpipe scss bundle     # one-shot build
  assetpipe --dry-run scss  # show what would change`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			logger := logging.SetupWithWriter(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("descriptor", cfg.ConfigFile),
				slog.String("baseDir", cfg.BaseDir),
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
			)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(cmd, args)
		},
		ValidArgsFunction: completeTasks(&cfgFile),
	}

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "build descriptor (default: .assetpipe.yaml, .assetpipe.yml or package.json)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")
	pf.BoolP("dry-run", "n", false, "print pending writes as diffs instead of writing")
	pf.IntP("parallel", "j", 0, "maximum number of concurrently running tasks (default: number of CPUs)")
	pf.Bool("minify", false, "minify stylesheet and bundle output")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	// Register subcommands.
	cmd.AddCommand(
		newRunCommand(&cfgFile),
		newTasksCommand(),
		newConfigCommand(),
		newVersionCommand(),
		newCompletionCommand(),
	)

	return cmd
}
