package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/assetpipe/internal/build"
	"github.com/hupe1980/assetpipe/internal/config"
	"github.com/hupe1980/assetpipe/internal/logging"
)

func newRunCommand(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <task...>",
		Short: "Run tasks and their dependencies",
		Long: `Run executes the named tasks. Each dependency runs once, before the
tasks that need it; independent tasks run in parallel.

All task names and the descriptor fields the tasks need are checked before
anything runs. Configuration problems exit with code 2, task failures with
code 1.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeTasks(cfgFile),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(cmd, args)
		},
	}
}

// newPipeline builds the task registry for the loaded descriptor.
func newPipeline(cmd *cobra.Command) (*build.Pipeline, error) {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)

	statusOut := cmd.ErrOrStderr()
	if cfg.Quiet {
		statusOut = io.Discard
	}

	p, err := build.New(cfg,
		build.WithStdio(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		build.WithStatus(logging.NewStatus(statusOut, cfg.NoColor)),
		build.WithLogger(logging.FromContext(ctx)),
	)
	if err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}

	return p, nil
}

func runTasks(cmd *cobra.Command, names []string) error {
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			logging.FromContext(cmd.Context()).Warn("stopping sass compiler", slog.String("error", closeErr.Error()))
		}
	}()

	if err := p.Run(cmd.Context(), names...); err != nil {
		return &ExitError{Code: exitCode(err), Err: err}
	}

	return nil
}

// completeTasks completes task names from the descriptor in effect.
func completeTasks(cfgFile *string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		cfg, err := config.Load(cmd, *cfgFile)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		p, err := build.New(cfg, build.WithLogger(logging.Discard()))
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		var names []string
		for _, t := range p.Registry().Tasks() {
			names = append(names, fmt.Sprintf("%s\t%s", t.Name, t.Description))
		}

		return names, cobra.ShellCompDirectiveNoFileComp
	}
}
