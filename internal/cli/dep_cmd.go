package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"taskboard/internal/cli/formatter"
	"taskboard/pkg/task"
)

func newDepCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage task dependencies",
	}

	cmd.AddCommand(
		newDepSetCmd(app),
		newDepListCmd(app),
	)

	return cmd
}

func newDepSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <task-id> [prerequisite-id...]",
		Short: "Replace the prerequisites of a task (none clears them)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dependsOn, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			if _, err := app.Tasks.Get(cmd.Context(), id); err != nil {
				return fmt.Errorf("task %d: %w", id, err)
			}
			if err := app.Tasks.SetDependencies(cmd.Context(), id, dependsOn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task #%d now depends on %d task(s)\n", id, len(dependsOn))
			return nil
		},
	}
}

func newDepListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every dependency edge",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, deps, err := loadGraph(cmd, app)
			if err != nil {
				return err
			}
			names := make(map[int64]string, len(tasks))
			for _, t := range tasks {
				names[t.ID] = t.TaskName
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatDependencies(deps, names))
			return nil
		},
	}
}

// loadGraph fetches every task and edge concurrently.
func loadGraph(cmd *cobra.Command, app *App) ([]task.Task, []task.Dependency, error) {
	var tasks []task.Task
	var deps []task.Dependency
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		var err error
		tasks, err = app.Tasks.List(ctx, task.Filters{})
		return err
	})
	g.Go(func() error {
		var err error
		deps, err = app.Tasks.ListDependencies(ctx)
		return err
	})
	return tasks, deps, g.Wait()
}
