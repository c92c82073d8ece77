package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/assetpipe/internal/task"
)

// taskInfo is the JSON form of a task.
type taskInfo struct {
	Name        string   `json:"name"`
	Deps        []string `json:"deps,omitempty"`
	Description string   `json:"description,omitempty"`
}

func newTasksCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the available tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}

			tasks := p.Registry().Tasks()

			switch format {
			case "table":
				return printTaskTable(cmd.OutOrStdout(), tasks)
			case "json":
				return printTaskJSON(cmd.OutOrStdout(), tasks)
			}

			return &ExitError{Code: 2, Err: fmt.Errorf("invalid format %q: must be table or json", format)}
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json")

	return cmd
}

func printTaskTable(w io.Writer, tasks []*task.Task) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tDEPENDS ON\tDESCRIPTION")

	for _, t := range tasks {
		deps := strings.Join(t.Deps, ", ")
		if deps == "" {
			deps = "-"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, deps, t.Description)
	}

	return tw.Flush()
}

func printTaskJSON(w io.Writer, tasks []*task.Task) error {
	out := make([]taskInfo, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskInfo{Name: t.Name, Deps: t.Deps, Description: t.Description})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding tasks: %w", err)
	}

	return nil
}
