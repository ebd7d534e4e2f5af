package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskboard/internal/cli/formatter"
	"taskboard/pkg/task"
)

func newTaskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(app),
		newTaskGetCmd(app),
		newTaskAddCmd(app),
		newTaskUpdateCmd(app),
		newTaskDeleteCmd(app),
	)

	return cmd
}

func newTaskListCmd(app *App) *cobra.Command {
	var f task.Filters
	var from, to string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := app.now()
			if from != "" {
				t, err := task.ParseDateBound(from, now)
				if err != nil {
					return err
				}
				f.From = &t
			}
			if to != "" {
				t, err := task.ParseDateBound(to, now)
				if err != nil {
					return err
				}
				f.To = &t
			}
			tasks, err := app.Tasks.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTaskList(tasks, now))
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.Search, "query", "q", "", "substring of name or goal")
	cmd.Flags().StringVar(&f.AutomationLevel, "automation", "", "automation level (◎, △, ×)")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority (高, 中, 低)")
	cmd.Flags().StringVar(&f.Owner, "owner", "", "to-be or as-is owner")
	cmd.Flags().StringVar(&from, "from", "", `updated on or after (YYYY-MM-DD or e.g. "last week")`)
	cmd.Flags().StringVar(&to, "to", "", "updated on or before")
	cmd.Flags().StringVar(&f.SortField, "sort", "updated_at", "sort field (updated_at, id)")
	cmd.Flags().StringVar(&f.SortOrder, "order", "desc", "sort order (asc, desc)")

	return cmd
}

func newTaskGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := app.Tasks.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("task %d: %w", id, err)
			}
			deps, err := app.Tasks.DependenciesOf(cmd.Context(), id)
			if err != nil {
				return err
			}
			dependsOn := make([]int64, len(deps))
			for i, d := range deps {
				dependsOn[i] = d.DependsOnTaskID
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTaskDetail(t, dependsOn, app.now()))
			return nil
		},
	}
}

func newTaskAddCmd(app *App) *cobra.Command {
	var name, goal, automation, owner, asisOwner, priority, unit, confidentiality, comments string
	var targetTime int64
	var dependsOn []int64

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := &task.Task{TaskName: name}
			setString(&t.TaskGoal, goal)
			setString(&t.AutomationLevel, automation)
			setString(&t.ToBeOwner, owner)
			setString(&t.AsIsOwner, asisOwner)
			setString(&t.Priority, priority)
			setString(&t.TargetTimeUnit, unit)
			setString(&t.Confidentiality, confidentiality)
			setString(&t.Comments, comments)
			if cmd.Flags().Changed("target-time") {
				t.TargetTime = &targetTime
			}

			created, err := app.Tasks.Create(cmd.Context(), t)
			if err != nil {
				return err
			}
			if len(dependsOn) > 0 {
				if err := app.Tasks.SetDependencies(cmd.Context(), created.ID, dependsOn); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task #%d %s\n", created.ID, created.TaskName)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "task name (required)")
	cmd.Flags().StringVar(&goal, "goal", "", "purpose or goal")
	cmd.Flags().StringVar(&automation, "automation", "", "automation level (◎, △, ×)")
	cmd.Flags().StringVar(&owner, "owner", "", "to-be owner (エージェント, 人間, 共同)")
	cmd.Flags().StringVar(&asisOwner, "asis-owner", "", "current owner")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (高, 中, 低); default 中")
	cmd.Flags().Int64Var(&targetTime, "target-time", 0, "target processing time")
	cmd.Flags().StringVar(&unit, "unit", "", "target time unit (秒, 分, 時間)")
	cmd.Flags().StringVar(&confidentiality, "confidentiality", "", "confidentiality (高, 中, 低)")
	cmd.Flags().StringVar(&comments, "comments", "", "free-form comments")
	cmd.Flags().Int64SliceVar(&dependsOn, "depends-on", nil, "prerequisite task ids")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func setString[T ~string](dst **T, v string) {
	if v == "" {
		return
	}
	s := T(v)
	*dst = &s
}

func newTaskUpdateCmd(app *App) *cobra.Command {
	var sets []string
	var dependsOn []int64

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change task fields",
		Long: `Change task fields with --set column=value. Use "null" to clear a field.

Example:
  taskctl task update 3 --set priority=高 --set target_time=15 --set comments=null`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			updates, err := parseSets(sets)
			if err != nil {
				return err
			}
			depsChanged := cmd.Flags().Changed("depends-on")
			if len(updates) == 0 && !depsChanged {
				return fmt.Errorf("nothing to update: pass --set or --depends-on")
			}

			ctx := cmd.Context()
			if len(updates) > 0 {
				if _, err := app.Tasks.Update(ctx, id, updates); err != nil {
					return fmt.Errorf("task %d: %w", id, err)
				}
			} else if _, err := app.Tasks.Get(ctx, id); err != nil {
				return fmt.Errorf("task %d: %w", id, err)
			}
			if depsChanged {
				if err := app.Tasks.SetDependencies(ctx, id, dependsOn); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task #%d\n", id)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "column=value (repeatable)")
	cmd.Flags().Int64SliceVar(&dependsOn, "depends-on", nil, "replace prerequisite task ids")

	return cmd
}

// parseSets turns column=value pairs into an update map with JSON-like
// value types: numbers for numeric columns, booleans for audit_log_required.
func parseSets(sets []string) (map[string]any, error) {
	updates := make(map[string]any, len(sets))
	for _, s := range sets {
		key, raw, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want column=value", s)
		}
		if raw == "null" {
			updates[key] = nil
			continue
		}
		switch key {
		case "target_time", "cost_benefit":
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not a number", key, raw)
			}
			updates[key] = f
		case "audit_log_required":
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not a boolean", key, raw)
			}
			updates[key] = b
		default:
			updates[key] = raw
		}
	}
	return updates, nil
}

func newTaskDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task with its dependencies and memos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := app.Tasks.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%d\n", id)
			return nil
		},
	}
}
