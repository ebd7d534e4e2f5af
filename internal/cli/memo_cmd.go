package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskboard/internal/cli/formatter"
	"taskboard/pkg/memo"
)

func newMemoCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memo",
		Short: "Quick memos",
	}

	cmd.AddCommand(
		newMemoAddCmd(app),
		newMemoListCmd(app),
	)

	return cmd
}

func newMemoAddCmd(app *App) *cobra.Command {
	var taskID int64
	var taskName string

	cmd := &cobra.Command{
		Use:   "add <text...>",
		Short: "Record a memo, optionally about a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := &memo.Memo{MemoContent: strings.Join(args, " ")}
			if cmd.Flags().Changed("task") {
				m.TaskID = &taskID
			}
			if cmd.Flags().Changed("task-name") {
				m.TaskName = &taskName
			}
			created, err := app.Memos.Create(cmd.Context(), m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved memo #%d\n", created.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&taskID, "task", 0, "related task id")
	cmd.Flags().StringVar(&taskName, "task-name", "", "related task name")

	return cmd
}

func newMemoListCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent memos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			memos, err := app.Memos.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatMemos(memos, app.now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", memo.MaxRecent, "number of memos (max 50)")

	return cmd
}
